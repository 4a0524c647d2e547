package models

// CorrelationType classifies a candidate finding by the entities it links.
type CorrelationType string

const (
	CorrelationDrugSymptom     CorrelationType = "drug_symptom"
	CorrelationLabSymptom      CorrelationType = "lab_symptom"
	CorrelationDrugLab         CorrelationType = "drug_lab"
	CorrelationTemporalCluster CorrelationType = "temporal_cluster"
	CorrelationMedSymptomSeq   CorrelationType = "medication_symptom_sequence"
)

// Severity buckets a finding or notification.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Weight maps severity to the numeric weight used in priority scoring.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityHigh:
		return 1.0
	case SeverityMedium:
		return 0.7
	default:
		return 0.4
	}
}

// EvidenceSource records where a correlation's evidence came from.
type EvidenceSource string

const (
	SourceFDAValidated      EvidenceSource = "FDA_VALIDATED"
	SourceLLMFallback       EvidenceSource = "LLM_FALLBACK"
	SourceFallbackKnowledge EvidenceSource = "FALLBACK_KNOWLEDGE"
)

// Correlation is a candidate finding produced by one of the correlation
// engines. Correlations are created per analysis run and never persisted
// individually; only the final notifications and the audit log keep
// derived summaries.
type Correlation struct {
	Type               CorrelationType `json:"type"`
	Medication         string          `json:"medication,omitempty"`
	Symptom            string          `json:"symptom,omitempty"`
	LabTest            string          `json:"lab_test,omitempty"`
	Entities           []string        `json:"entities,omitempty"`
	Confidence         float64         `json:"confidence"`
	Severity           Severity        `json:"severity"`
	Source             EvidenceSource  `json:"source"`
	Recommendation     string          `json:"recommendation,omitempty"`
	Detail             string          `json:"detail,omitempty"`
	Engine             string          `json:"engine,omitempty"`
	TimingScore        float64         `json:"timing_score,omitempty"`
	SupportingEvidence []string        `json:"supporting_evidence,omitempty"`
	PriorityScore      float64         `json:"priority_score,omitempty"`
}

// EntityNames returns every entity this correlation touches, lowercased.
// Combination medication names are split on "+" so that "amlodipine+valsartan"
// supports findings about either component.
func (c Correlation) EntityNames() []string {
	names := make([]string, 0, 4)
	for _, part := range splitCombination(c.Medication) {
		names = append(names, part)
	}
	if c.Symptom != "" {
		names = append(names, normalizeEntity(c.Symptom))
	}
	if c.LabTest != "" {
		names = append(names, normalizeEntity(c.LabTest))
	}
	for _, e := range c.Entities {
		names = append(names, normalizeEntity(e))
	}
	return names
}

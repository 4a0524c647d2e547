package correlation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medsignal/medsignal/internal/config"
	"github.com/medsignal/medsignal/internal/pharmacovigilance"
	"github.com/medsignal/medsignal/pkg/models"
)

const EngineDrugSymptom = "drug_symptom"

// Report-volume cutoffs for bucketing severity of report-count evidence.
const (
	reportsHighSeverity   = 500
	reportsMediumSeverity = 100
)

// DrugSymptomEngine correlates active medications with recent symptoms.
// Evidence comes from the pharmacovigilance source first; pairs the source
// has no data for are escalated to a bounded LLM fallback.
type DrugSymptomEngine struct {
	source      pharmacovigilance.Source
	provider    models.AIProvider
	maxPairs    int
	minLLMConf  float64
	pairTimeout time.Duration
}

func NewDrugSymptomEngine(source pharmacovigilance.Source, provider models.AIProvider, cfg config.AnalysisConfig) *DrugSymptomEngine {
	return &DrugSymptomEngine{
		source:      source,
		provider:    provider,
		maxPairs:    cfg.MaxLLMPairs,
		minLLMConf:  cfg.MinLLMConfidence,
		pairTimeout: cfg.PairCallTimeout,
	}
}

func (e *DrugSymptomEngine) Name() string { return EngineDrugSymptom }

type drugSymptomPair struct {
	med models.MedicationSnapshot
	sym models.SymptomSnapshot
}

// Analyze evaluates every (active medication, recent symptom) pair.
// A pharmacovigilance failure on one pair skips the source for that pair
// rather than failing the run.
func (e *DrugSymptomEngine) Analyze(ctx context.Context, profile models.MedicalProfile) ([]models.Correlation, error) {
	var correlations []models.Correlation
	var uncovered []drugSymptomPair

	for _, med := range profile.Medications {
		for _, sym := range sortSymptomsByPriority(profile.RecentSymptoms) {
			evidence, err := e.source.Lookup(ctx, med.Name, sym.Name)
			if err != nil {
				slog.Warn("pharmacovigilance lookup failed, escalating pair",
					"medication", med.Name, "symptom", sym.Name, "error", err)
				uncovered = append(uncovered, drugSymptomPair{med, sym})
				continue
			}
			if evidence == nil {
				uncovered = append(uncovered, drugSymptomPair{med, sym})
				continue
			}
			correlations = append(correlations, e.fromEvidence(med, sym, evidence))
		}
	}

	correlations = append(correlations, e.llmFallback(ctx, uncovered)...)
	return correlations, nil
}

// fromEvidence scores a pair backed by adverse-event report counts.
// Confidence scales with report volume, then is rescaled by how well the
// symptom's timing fits the documented onset window.
func (e *DrugSymptomEngine) fromEvidence(med models.MedicationSnapshot, sym models.SymptomSnapshot, ev *pharmacovigilance.Evidence) models.Correlation {
	confidence := float64(ev.TotalReports) / 1000
	if confidence > 0.9 {
		confidence = 0.9
	}
	if confidence < 0.5 {
		confidence = 0.5
	}

	severity := models.SeverityLow
	switch {
	case ev.TotalReports > reportsHighSeverity:
		severity = models.SeverityHigh
	case ev.TotalReports > reportsMediumSeverity:
		severity = models.SeverityMedium
	}

	timing := TimingScore(med.StartDate, sym.ReportedAt, ev.OnsetMinDays, ev.OnsetMaxDays)

	return models.Correlation{
		Type:        models.CorrelationDrugSymptom,
		Medication:  med.Name,
		Symptom:     sym.Name,
		Confidence:  confidence * timing,
		Severity:    severity,
		Source:      evidenceLabel(ev),
		Engine:      EngineDrugSymptom,
		TimingScore: timing,
		Detail: fmt.Sprintf("%d adverse event reports link %s and %s (%d serious)",
			ev.TotalReports, med.Name, sym.Name, ev.SeriousReports),
	}
}

// llmFallback assesses pairs the data source had no coverage for, capped at
// the configured pair budget. Pairs arrive pre-ranked by symptom priority.
func (e *DrugSymptomEngine) llmFallback(ctx context.Context, pairs []drugSymptomPair) []models.Correlation {
	if len(pairs) > e.maxPairs {
		pairs = pairs[:e.maxPairs]
	}

	var correlations []models.Correlation
	for _, p := range pairs {
		prompt := fmt.Sprintf("Medication: %s", p.med.Name)
		if !p.med.StartDate.IsZero() {
			prompt += fmt.Sprintf(" (started %s)", p.med.StartDate.Format("2006-01-02"))
		}
		prompt += fmt.Sprintf("\nSymptom: %s", p.sym.Name)
		if !p.sym.ReportedAt.IsZero() {
			prompt += fmt.Sprintf(" (reported %s)", p.sym.ReportedAt.Format("2006-01-02"))
		}
		prompt += "\n\nIs this symptom a plausible adverse effect of this medication?"

		assessment := askPair(ctx, e.provider, prompt, e.pairTimeout)
		if assessment == nil || !assessment.Associated || assessment.Confidence < e.minLLMConf {
			continue
		}

		onsetMin, onsetMax := assessment.onsetWindow()
		timing := TimingScore(p.med.StartDate, p.sym.ReportedAt, onsetMin, onsetMax)

		correlations = append(correlations, models.Correlation{
			Type:           models.CorrelationDrugSymptom,
			Medication:     p.med.Name,
			Symptom:        p.sym.Name,
			Confidence:     assessment.Confidence * timing,
			Severity:       parseSeverity(assessment.Severity),
			Source:         models.SourceLLMFallback,
			Recommendation: assessment.Recommendation,
			Engine:         EngineDrugSymptom,
			TimingScore:    timing,
		})
	}
	return correlations
}

// evidenceLabel maps evidence provenance to the tag carried on correlations.
// Chained sources answer per pair, so the label follows the evidence, not the
// configured source.
func evidenceLabel(ev *pharmacovigilance.Evidence) models.EvidenceSource {
	if strings.HasPrefix(ev.SourceName, "static") {
		return models.SourceFallbackKnowledge
	}
	return models.SourceFDAValidated
}

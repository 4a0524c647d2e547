package correlation

import (
	"math"
	"strings"
	"testing"

	"github.com/medsignal/medsignal/pkg/models"
)

func TestPrioritize_SupportBoost(t *testing.T) {
	correlations := []models.Correlation{
		{Type: models.CorrelationDrugSymptom, Medication: "lisinopril", Symptom: "dry cough",
			Confidence: 0.6, Severity: models.SeverityHigh, Engine: EngineDrugSymptom},
		{Type: models.CorrelationMedSymptomSeq, Medication: "lisinopril", Symptom: "dry cough",
			Confidence: 0.7, Severity: models.SeverityMedium, Engine: EngineTemporal},
		{Type: models.CorrelationLabSymptom, LabTest: "tsh", Symptom: "fatigue",
			Confidence: 0.8, Severity: models.SeverityLow, Engine: EngineLabSymptom},
	}

	ranked := NewCrossValidator().Prioritize(correlations, models.TriggerEvent{})

	var boosted, unsupported *models.Correlation
	for i := range ranked {
		switch {
		case ranked[i].Medication == "lisinopril" && ranked[i].Type == models.CorrelationDrugSymptom:
			boosted = &ranked[i]
		case ranked[i].LabTest == "tsh":
			unsupported = &ranked[i]
		}
	}
	if boosted == nil || unsupported == nil {
		t.Fatal("expected all correlations in output")
	}

	if math.Abs(boosted.Confidence-0.6*1.2) > 1e-9 {
		t.Errorf("supported correlation must be boosted x1.2, got %v", boosted.Confidence)
	}
	if len(boosted.SupportingEvidence) != 1 {
		t.Errorf("expected 1 supporter, got %v", boosted.SupportingEvidence)
	}
	if unsupported.Confidence != 0.8 {
		t.Errorf("unsupported correlation must keep its confidence, got %v", unsupported.Confidence)
	}
	if len(unsupported.SupportingEvidence) != 0 {
		t.Errorf("unexpected supporters: %v", unsupported.SupportingEvidence)
	}
}

func TestPrioritize_BoostCap(t *testing.T) {
	correlations := []models.Correlation{
		{Medication: "warfarin", Symptom: "bruising", Confidence: 0.9, Severity: models.SeverityHigh},
		{Medication: "warfarin", Symptom: "bruising", Confidence: 0.9, Severity: models.SeverityHigh},
	}
	ranked := NewCrossValidator().Prioritize(correlations, models.TriggerEvent{})
	for _, c := range ranked {
		if c.Confidence != 0.95 {
			t.Errorf("boost must cap at 0.95, got %v", c.Confidence)
		}
	}
}

func TestPrioritize_CombinationDrugSupport(t *testing.T) {
	correlations := []models.Correlation{
		{Medication: "amlodipine+valsartan", Symptom: "swelling", Confidence: 0.6, Severity: models.SeverityMedium},
		{Medication: "amlodipine", Symptom: "dizziness", Confidence: 0.6, Severity: models.SeverityLow},
	}
	ranked := NewCrossValidator().Prioritize(correlations, models.TriggerEvent{})
	for _, c := range ranked {
		if len(c.SupportingEvidence) == 0 {
			t.Errorf("combination components must corroborate each other: %+v", c)
		}
	}
}

func TestPrioritize_ScoreBoundsAndOrder(t *testing.T) {
	correlations := []models.Correlation{
		{Medication: "a", Confidence: 0.2, Severity: models.SeverityLow},
		{Medication: "b", Confidence: 1.0, Severity: models.SeverityHigh},
		{Medication: "c", Confidence: 0.5, Severity: models.SeverityMedium},
	}
	ranked := NewCrossValidator().Prioritize(correlations, models.TriggerEvent{EntityName: "b"})

	for i, c := range ranked {
		if c.PriorityScore < 0 || c.PriorityScore > 1 {
			t.Errorf("priority score out of [0,1]: %v", c.PriorityScore)
		}
		if i > 0 && ranked[i-1].PriorityScore < c.PriorityScore {
			t.Errorf("output not sorted descending at index %d", i)
		}
	}
	if ranked[0].Medication != "b" {
		t.Errorf("highest confidence, severity, and trigger relevance must rank first, got %s", ranked[0].Medication)
	}
}

func TestPrioritize_TriggerRelevance(t *testing.T) {
	base := models.Correlation{Type: models.CorrelationDrugSymptom, Symptom: "nausea",
		Confidence: 0.6, Severity: models.SeverityMedium}

	matching := base
	matching.Medication = "metformin"
	other := base
	other.Medication = "omeprazole"

	ranked := NewCrossValidator().Prioritize(
		[]models.Correlation{other, matching},
		models.TriggerEvent{TriggerType: "new_medication", EntityName: "Metformin"},
	)

	if ranked[0].Medication != "metformin" {
		t.Errorf("trigger-matching correlation must rank first, got %s", ranked[0].Medication)
	}
	// Identical except for relevance: the gap must be exactly the relevance
	// weight times the 0.5 relevance difference.
	gap := ranked[0].PriorityScore - ranked[1].PriorityScore
	if math.Abs(gap-weightRelevance*0.5) > 1e-9 {
		t.Errorf("expected priority gap %v, got %v", weightRelevance*0.5, gap)
	}
}

func TestPrioritize_StableSortOnTies(t *testing.T) {
	correlations := []models.Correlation{
		{Medication: "first", Confidence: 0.5, Severity: models.SeverityLow},
		{Medication: "second", Confidence: 0.5, Severity: models.SeverityLow},
	}
	ranked := NewCrossValidator().Prioritize(correlations, models.TriggerEvent{})
	if ranked[0].Medication != "first" || ranked[1].Medication != "second" {
		t.Error("equal priorities must keep input order")
	}
}

func TestGenerateInsights(t *testing.T) {
	v := NewCrossValidator()

	ranked := v.Prioritize([]models.Correlation{
		{Type: models.CorrelationDrugSymptom, Medication: "warfarin", Symptom: "bruising",
			Confidence: 0.9, Severity: models.SeverityHigh, Recommendation: "Check INR"},
		{Type: models.CorrelationDrugSymptom, Medication: "warfarin", Symptom: "bruising",
			Confidence: 0.9, Severity: models.SeverityHigh},
		{Type: models.CorrelationLabSymptom, LabTest: "tsh", Symptom: "fatigue",
			Confidence: 0.6, Severity: models.SeverityLow},
	}, models.TriggerEvent{EntityName: "warfarin"})

	insights := v.GenerateInsights(ranked)
	if insights.Summary == "" {
		t.Error("summary must not be empty")
	}
	if len(insights.RiskAlerts) == 0 {
		t.Error("boosted high-severity trigger-matching findings must raise risk alerts")
	}
	if len(insights.MonitoringSuggestions) == 0 {
		t.Error("lower-priority findings must become monitoring suggestions")
	}
	if len(insights.Recommendations) != 1 || insights.Recommendations[0] != "Check INR" {
		t.Errorf("recommendations must be carried through, got %v", insights.Recommendations)
	}
}

func TestGenerateInsights_Empty(t *testing.T) {
	insights := NewCrossValidator().GenerateInsights(nil)
	if !strings.Contains(insights.Summary, "No significant correlations") {
		t.Errorf("empty input needs an explicit no-findings summary, got %q", insights.Summary)
	}
	if len(insights.RiskAlerts) != 0 || len(insights.Recommendations) != 0 {
		t.Error("empty input must yield no alerts or recommendations")
	}
}

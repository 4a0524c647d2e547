package correlation

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medsignal/medsignal/internal/ai/mock"
	"github.com/medsignal/medsignal/pkg/models"
)

func TestLabSymptom_AssociatedPairAccepted(t *testing.T) {
	var prompt string
	provider := &mock.Provider{
		Name_: "mock-capture",
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (models.Completion, error) {
			prompt = req.Prompt
			return models.Completion{Text: `{"associated": true, "confidence": 0.8,` +
				` "severity": "medium", "recommendation": "Repeat the panel in two weeks"}`}, nil
		},
	}
	engine := NewLabSymptomEngine(provider, engineConfig())

	now := time.Now().UTC()
	correlations, err := engine.Analyze(context.Background(), models.MedicalProfile{
		LabResults: []models.LabSnapshot{
			{TestName: "glucose", Value: 7, Unit: "mmol/L", ReferenceRange: "70-100", Date: now.AddDate(0, 0, -3)},
		},
		RecentSymptoms: []models.SymptomSnapshot{
			{Name: "fatigue", ReportedAt: now},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(correlations) != 1 {
		t.Fatalf("expected 1 correlation, got %d", len(correlations))
	}

	// 7 mmol/L glucose must reach the model converted to 126 mg/dL.
	if !strings.Contains(prompt, "126") || !strings.Contains(prompt, "mg/dL") {
		t.Errorf("prompt must carry the canonical unit, got %q", prompt)
	}

	c := correlations[0]
	if c.LabTest != "glucose" || c.Symptom != "fatigue" {
		t.Errorf("pair lost: %+v", c)
	}
	if c.Source != models.SourceLLMFallback {
		t.Errorf("expected LLM_FALLBACK source, got %s", c.Source)
	}
	if c.Severity != models.SeverityMedium {
		t.Errorf("expected medium severity, got %s", c.Severity)
	}
	if c.Recommendation != "Repeat the panel in two weeks" {
		t.Errorf("recommendation lost: %q", c.Recommendation)
	}
}

func TestLabSymptom_DiscardsUnassociated(t *testing.T) {
	provider := mock.NewCannedProvider(`{"associated": false, "confidence": 0.9, "severity": "high"}`)
	engine := NewLabSymptomEngine(provider, engineConfig())

	correlations, err := engine.Analyze(context.Background(), models.MedicalProfile{
		LabResults:     []models.LabSnapshot{{TestName: "tsh", Value: 2.1, Unit: "mIU/L"}},
		RecentSymptoms: []models.SymptomSnapshot{{Name: "headache"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(correlations) != 0 {
		t.Errorf("associated=false must be discarded, got %+v", correlations)
	}
}

func TestLabSymptom_PairBudget(t *testing.T) {
	var calls atomic.Int64
	provider := &mock.Provider{
		Name_: "mock-counting",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.Completion, error) {
			calls.Add(1)
			return models.Completion{Text: `{"associated": false, "confidence": 0}`}, nil
		},
	}
	engine := NewLabSymptomEngine(provider, engineConfig())

	// 3 labs x 3 symptoms = 9 pairs, budget is 6.
	profile := models.MedicalProfile{}
	for _, l := range []string{"glucose", "creatinine", "alt"} {
		profile.LabResults = append(profile.LabResults, models.LabSnapshot{TestName: l, Value: 1})
	}
	for _, s := range []string{"fatigue", "nausea", "dizziness"} {
		profile.RecentSymptoms = append(profile.RecentSymptoms, models.SymptomSnapshot{Name: s})
	}

	if _, err := engine.Analyze(context.Background(), profile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 6 {
		t.Errorf("expected exactly 6 LLM calls, got %d", got)
	}
}

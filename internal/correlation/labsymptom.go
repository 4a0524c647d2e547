package correlation

import (
	"context"
	"fmt"
	"time"

	"github.com/medsignal/medsignal/internal/config"
	"github.com/medsignal/medsignal/pkg/models"
)

const EngineLabSymptom = "lab_symptom"

// LabSymptomEngine correlates out-of-pattern lab values with recent
// symptoms. LLM-only: no public adverse-event data covers lab/symptom
// co-occurrence.
type LabSymptomEngine struct {
	provider    models.AIProvider
	maxPairs    int
	minConf     float64
	pairTimeout time.Duration
}

func NewLabSymptomEngine(provider models.AIProvider, cfg config.AnalysisConfig) *LabSymptomEngine {
	return &LabSymptomEngine{
		provider:    provider,
		maxPairs:    cfg.MaxLLMPairs,
		minConf:     cfg.MinLLMConfidence,
		pairTimeout: cfg.PairCallTimeout,
	}
}

func (e *LabSymptomEngine) Name() string { return EngineLabSymptom }

func (e *LabSymptomEngine) Analyze(ctx context.Context, profile models.MedicalProfile) ([]models.Correlation, error) {
	type pair struct {
		lab models.LabSnapshot
		sym models.SymptomSnapshot
	}

	var pairs []pair
	for _, lab := range profile.LabResults {
		normalized := NormalizeLab(lab)
		for _, sym := range sortSymptomsByPriority(profile.RecentSymptoms) {
			pairs = append(pairs, pair{normalized, sym})
		}
	}
	if len(pairs) > e.maxPairs {
		pairs = pairs[:e.maxPairs]
	}

	var correlations []models.Correlation
	for _, p := range pairs {
		prompt := fmt.Sprintf("Lab result: %s = %g %s", p.lab.TestName, p.lab.Value, p.lab.Unit)
		if p.lab.ReferenceRange != "" {
			prompt += fmt.Sprintf(" (reference %s)", p.lab.ReferenceRange)
		}
		prompt += fmt.Sprintf("\nSymptom: %s", p.sym.Name)
		if !p.sym.ReportedAt.IsZero() {
			prompt += fmt.Sprintf(" (reported %s)", p.sym.ReportedAt.Format("2006-01-02"))
		}
		prompt += "\n\nCould this lab value explain or relate to this symptom?"

		assessment := askPair(ctx, e.provider, prompt, e.pairTimeout)
		if assessment == nil || !assessment.Associated || assessment.Confidence < e.minConf {
			continue
		}

		correlations = append(correlations, models.Correlation{
			Type:           models.CorrelationLabSymptom,
			LabTest:        p.lab.TestName,
			Symptom:        p.sym.Name,
			Confidence:     assessment.Confidence,
			Severity:       parseSeverity(assessment.Severity),
			Source:         models.SourceLLMFallback,
			Recommendation: assessment.Recommendation,
			Engine:         EngineLabSymptom,
		})
	}
	return correlations, nil
}

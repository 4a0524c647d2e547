package correlation

import (
	"context"
	"fmt"
	"time"

	"github.com/medsignal/medsignal/internal/config"
	"github.com/medsignal/medsignal/pkg/models"
)

const EngineDrugLab = "drug_lab"

// DrugLabEngine correlates active medications with lab value changes the
// medication is known to cause. LLM-only, bounded like the other engines.
type DrugLabEngine struct {
	provider    models.AIProvider
	maxPairs    int
	minConf     float64
	pairTimeout time.Duration
}

func NewDrugLabEngine(provider models.AIProvider, cfg config.AnalysisConfig) *DrugLabEngine {
	return &DrugLabEngine{
		provider:    provider,
		maxPairs:    cfg.MaxLLMPairs,
		minConf:     cfg.MinLLMConfidence,
		pairTimeout: cfg.PairCallTimeout,
	}
}

func (e *DrugLabEngine) Name() string { return EngineDrugLab }

func (e *DrugLabEngine) Analyze(ctx context.Context, profile models.MedicalProfile) ([]models.Correlation, error) {
	type pair struct {
		med models.MedicationSnapshot
		lab models.LabSnapshot
	}

	var pairs []pair
	for _, med := range profile.Medications {
		for _, lab := range profile.LabResults {
			pairs = append(pairs, pair{med, NormalizeLab(lab)})
		}
	}
	if len(pairs) > e.maxPairs {
		pairs = pairs[:e.maxPairs]
	}

	var correlations []models.Correlation
	for _, p := range pairs {
		prompt := fmt.Sprintf("Medication: %s", p.med.Name)
		if !p.med.StartDate.IsZero() {
			prompt += fmt.Sprintf(" (started %s)", p.med.StartDate.Format("2006-01-02"))
		}
		prompt += fmt.Sprintf("\nLab result: %s = %g %s", p.lab.TestName, p.lab.Value, p.lab.Unit)
		if !p.lab.Date.IsZero() {
			prompt += fmt.Sprintf(" (collected %s)", p.lab.Date.Format("2006-01-02"))
		}
		prompt += "\n\nCould this medication plausibly affect this lab value?"

		assessment := askPair(ctx, e.provider, prompt, e.pairTimeout)
		if assessment == nil || !assessment.Associated || assessment.Confidence < e.minConf {
			continue
		}

		correlations = append(correlations, models.Correlation{
			Type:           models.CorrelationDrugLab,
			Medication:     p.med.Name,
			LabTest:        p.lab.TestName,
			Confidence:     assessment.Confidence,
			Severity:       parseSeverity(assessment.Severity),
			Source:         models.SourceLLMFallback,
			Recommendation: assessment.Recommendation,
			Engine:         EngineDrugLab,
		})
	}
	return correlations, nil
}

package correlation

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/medsignal/medsignal/internal/ai"
	"github.com/medsignal/medsignal/pkg/models"
)

// pairAssessment is the strict schema LLM-backed engines require for one
// candidate pair. Anything the model returns outside this shape is dropped.
type pairAssessment struct {
	Associated     bool    `json:"associated"`
	Confidence     float64 `json:"confidence"`
	OnsetDays      []int   `json:"onset_days"`
	Severity       string  `json:"severity"`
	Recommendation string  `json:"recommendation"`
}

func (a pairAssessment) onsetWindow() (int, int) {
	if len(a.OnsetDays) == 2 && a.OnsetDays[0] <= a.OnsetDays[1] {
		return a.OnsetDays[0], a.OnsetDays[1]
	}
	return 1, 30
}

const pairSystemPrompt = `You are a clinical pharmacology assistant assessing whether two observations
in a patient record are plausibly related. Respond with a single JSON object and nothing else:
{"associated": true|false, "confidence": 0.0-1.0, "onset_days": [min, max], "severity": "low|medium|high", "recommendation": "..."}`

// askPair sends one bounded pair query. A timeout or provider failure is a
// nil result (pair skipped), never an error: the pipeline degrades to fewer
// correlations instead of aborting.
func askPair(ctx context.Context, provider models.AIProvider, prompt string, timeout time.Duration) *pairAssessment {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	completion, err := provider.Complete(callCtx, models.CompletionRequest{
		System:    pairSystemPrompt,
		Prompt:    prompt,
		MaxTokens: 300,
	})
	if err != nil {
		slog.Warn("pair assessment call failed", "error", err)
		return nil
	}

	doc, method := ai.Parse(completion.Text)
	if method == models.ParseRawFallback {
		slog.Warn("pair assessment unparseable", "method", method)
		return nil
	}

	var assessment pairAssessment
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(encoded, &assessment); err != nil {
		return nil
	}
	return &assessment
}

// symptomRank orders symptoms for the bounded LLM budget: higher reported
// severity first, most recent first within a severity.
func symptomRank(s models.SymptomSnapshot) int {
	switch s.Severity {
	case "severe", "high":
		return 3
	case "moderate", "medium":
		return 2
	case "mild", "low":
		return 1
	}
	return 0
}

func sortSymptomsByPriority(symptoms []models.SymptomSnapshot) []models.SymptomSnapshot {
	sorted := make([]models.SymptomSnapshot, len(symptoms))
	copy(sorted, symptoms)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := symptomRank(sorted[i]), symptomRank(sorted[j])
		if ri != rj {
			return ri > rj
		}
		return sorted[i].ReportedAt.After(sorted[j].ReportedAt)
	})
	return sorted
}

func parseSeverity(s string) models.Severity {
	switch s {
	case "high":
		return models.SeverityHigh
	case "medium":
		return models.SeverityMedium
	case "low":
		return models.SeverityLow
	}
	return models.SeverityMedium
}

package correlation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/medsignal/medsignal/pkg/models"
)

const (
	supportBoost       = 1.2
	supportBoostCap    = 0.95
	riskAlertThreshold = 0.85
	topInsightCount    = 5
)

// Priority formula weights.
const (
	weightConfidence = 0.4
	weightSeverity   = 0.3
	weightRelevance  = 0.2
	weightSupport    = 0.1
)

// Insights is the digest generated from the highest-priority correlations.
type Insights struct {
	Summary               string   `json:"summary"`
	Recommendations       []string `json:"recommendations,omitempty"`
	RiskAlerts            []string `json:"risk_alerts,omitempty"`
	MonitoringSuggestions []string `json:"monitoring_suggestions,omitempty"`
}

// CrossValidator boosts correlations corroborated by other engines and
// ranks the combined output by priority.
type CrossValidator struct{}

func NewCrossValidator() *CrossValidator { return &CrossValidator{} }

// Prioritize cross-references every correlation against the rest, applies
// the support boost, computes priority scores, and returns the full list
// sorted descending by priority. Sorting is stable: ties keep engine order.
func (v *CrossValidator) Prioritize(correlations []models.Correlation, trigger models.TriggerEvent) []models.Correlation {
	ranked := make([]models.Correlation, len(correlations))
	copy(ranked, correlations)

	for i := range ranked {
		supporters := findSupport(ranked, i)
		if len(supporters) > 0 {
			ranked[i].Confidence = boostConfidence(ranked[i].Confidence)
			ranked[i].SupportingEvidence = supporters
		}
		ranked[i].PriorityScore = priorityScore(ranked[i], trigger, len(supporters))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PriorityScore > ranked[j].PriorityScore
	})
	return ranked
}

// findSupport returns descriptions of the other correlations sharing an
// entity with correlations[idx]. Medication names are split on "+" inside
// EntityNames, so combination drugs corroborate findings on components.
func findSupport(correlations []models.Correlation, idx int) []string {
	own := map[string]bool{}
	for _, name := range correlations[idx].EntityNames() {
		own[name] = true
	}

	var supporters []string
	for j, other := range correlations {
		if j == idx {
			continue
		}
		for _, name := range other.EntityNames() {
			if own[name] {
				supporters = append(supporters, fmt.Sprintf("%s/%s shares %q", other.Engine, other.Type, name))
				break
			}
		}
	}
	return supporters
}

func boostConfidence(confidence float64) float64 {
	boosted := confidence * supportBoost
	if boosted > supportBoostCap {
		return supportBoostCap
	}
	return boosted
}

func priorityScore(c models.Correlation, trigger models.TriggerEvent, supportCount int) float64 {
	support := 0.5 * float64(supportCount)
	if support > 1 {
		support = 1
	}
	return weightConfidence*c.Confidence +
		weightSeverity*c.Severity.Weight() +
		weightRelevance*triggerRelevance(c, trigger) +
		weightSupport*support
}

// triggerRelevance is 1.0 when the correlation's primary entity matches the
// entity named by the triggering event, else 0.5.
func triggerRelevance(c models.Correlation, trigger models.TriggerEvent) float64 {
	target := strings.ToLower(strings.TrimSpace(trigger.EntityName))
	if target == "" {
		return 0.5
	}
	for _, name := range c.EntityNames() {
		if name == target {
			return 1.0
		}
	}
	return 0.5
}

// GenerateInsights digests the top prioritized correlations into a summary,
// recommendations, risk alerts, and monitoring suggestions.
func (v *CrossValidator) GenerateInsights(ranked []models.Correlation) Insights {
	top := ranked
	if len(top) > topInsightCount {
		top = top[:topInsightCount]
	}

	insights := Insights{}
	if len(top) == 0 {
		insights.Summary = "No significant correlations found in this analysis."
		return insights
	}

	high := 0
	for _, c := range top {
		if c.Severity == models.SeverityHigh {
			high++
		}
		if c.Recommendation != "" {
			insights.Recommendations = append(insights.Recommendations, c.Recommendation)
		}
		if c.PriorityScore > riskAlertThreshold {
			insights.RiskAlerts = append(insights.RiskAlerts, describeCorrelation(c))
		} else {
			insights.MonitoringSuggestions = append(insights.MonitoringSuggestions,
				"Monitor: "+describeCorrelation(c))
		}
	}

	insights.Summary = fmt.Sprintf("Found %d notable correlation(s), %d high severity. Top finding: %s.",
		len(ranked), high, describeCorrelation(top[0]))
	return insights
}

func describeCorrelation(c models.Correlation) string {
	switch c.Type {
	case models.CorrelationDrugSymptom, models.CorrelationMedSymptomSeq:
		return fmt.Sprintf("%s may be related to %s", c.Symptom, c.Medication)
	case models.CorrelationLabSymptom:
		return fmt.Sprintf("%s may relate to %s result", c.Symptom, c.LabTest)
	case models.CorrelationDrugLab:
		return fmt.Sprintf("%s may affect %s", c.Medication, c.LabTest)
	}
	return fmt.Sprintf("event cluster: %s", strings.Join(c.Entities, ", "))
}

package correlation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/medsignal/medsignal/pkg/models"
)

const EngineTemporal = "temporal"

const (
	clusterWindowDays  = 7
	sequenceMinDays    = 1
	sequenceMaxDays    = 30
	sequenceConfidence = 0.7
)

type timelineEvent struct {
	kind string // "medication_start", "symptom", "lab_result"
	name string
	at   time.Time
}

// TemporalEngine detects clusters and medication-to-symptom sequences on a
// unified event timeline. Purely algorithmic, no LLM involved.
type TemporalEngine struct{}

func NewTemporalEngine() *TemporalEngine { return &TemporalEngine{} }

func (e *TemporalEngine) Name() string { return EngineTemporal }

func (e *TemporalEngine) Analyze(_ context.Context, profile models.MedicalProfile) ([]models.Correlation, error) {
	timeline := buildTimeline(profile)

	var correlations []models.Correlation
	correlations = append(correlations, detectClusters(timeline)...)
	correlations = append(correlations, detectSequences(timeline)...)
	return correlations, nil
}

// buildTimeline merges medication starts, symptom reports, and lab results
// into one chronologically sorted slice. Entries without a parseable date
// are dropped, never defaulted to the current time.
func buildTimeline(profile models.MedicalProfile) []timelineEvent {
	var events []timelineEvent
	for _, m := range profile.Medications {
		if !m.StartDate.IsZero() {
			events = append(events, timelineEvent{"medication_start", m.Name, m.StartDate})
		}
	}
	for _, s := range profile.RecentSymptoms {
		if !s.ReportedAt.IsZero() {
			events = append(events, timelineEvent{"symptom", s.Name, s.ReportedAt})
		}
	}
	for _, l := range profile.LabResults {
		if !l.Date.IsZero() {
			events = append(events, timelineEvent{"lab_result", l.TestName, l.Date})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })
	return events
}

// detectClusters finds runs of two or more events inside a 7-day window.
// Each event belongs to at most one cluster (windows do not overlap).
func detectClusters(timeline []timelineEvent) []models.Correlation {
	var correlations []models.Correlation

	for i := 0; i < len(timeline); {
		j := i
		for j+1 < len(timeline) &&
			timeline[j+1].at.Sub(timeline[i].at) <= clusterWindowDays*24*time.Hour {
			j++
		}

		count := j - i + 1
		if count >= 2 {
			cluster := timeline[i : j+1]
			confidence := 0.3 * float64(count)
			if confidence > 0.9 {
				confidence = 0.9
			}

			severity := models.SeverityLow
			if count >= 3 {
				severity = models.SeverityMedium
			}

			names := make([]string, len(cluster))
			for k, ev := range cluster {
				names[k] = ev.name
			}

			correlations = append(correlations, models.Correlation{
				Type:       models.CorrelationTemporalCluster,
				Entities:   names,
				Confidence: confidence,
				Severity:   severity,
				Source:     models.SourceFallbackKnowledge,
				Engine:     EngineTemporal,
				Detail: fmt.Sprintf("%d events within %d days starting %s: %s",
					count, clusterWindowDays, cluster[0].at.Format("2006-01-02"), strings.Join(names, ", ")),
			})
		}
		i = j + 1
	}
	return correlations
}

// detectSequences finds medication starts followed by a symptom report 1 to
// 30 days later, a classic onset pattern.
func detectSequences(timeline []timelineEvent) []models.Correlation {
	var correlations []models.Correlation

	for i, ev := range timeline {
		if ev.kind != "medication_start" {
			continue
		}
		for _, later := range timeline[i+1:] {
			if later.kind != "symptom" {
				continue
			}
			gap := int(later.at.Sub(ev.at).Hours() / 24)
			if gap < sequenceMinDays {
				continue
			}
			if gap > sequenceMaxDays {
				break
			}
			correlations = append(correlations, models.Correlation{
				Type:       models.CorrelationMedSymptomSeq,
				Medication: ev.name,
				Symptom:    later.name,
				Confidence: sequenceConfidence,
				Severity:   models.SeverityMedium,
				Source:     models.SourceFallbackKnowledge,
				Engine:     EngineTemporal,
				Detail: fmt.Sprintf("%s reported %d days after starting %s",
					later.name, gap, ev.name),
			})
		}
	}
	return correlations
}

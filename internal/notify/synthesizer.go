// Package notify turns analysis outcomes into user-facing notifications.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medsignal/medsignal/pkg/models"
)

// Default severity applied when an analysis result carries none.
const defaultSeverity = models.SeverityMedium

// Synthesizer maps analysis results and prioritized correlations to
// notifications. It only builds the records; persisting them is the
// caller's job, keeping the synthesizer pure and easy to test.
type Synthesizer struct{}

func NewSynthesizer() *Synthesizer { return &Synthesizer{} }

// FromAnalysis builds one notification per finding category in the result.
// A result without findings, or a parse-error envelope, yields nothing.
func (s *Synthesizer) FromAnalysis(trigger models.TriggerEvent, result models.AnalysisResult) []*models.Notification {
	if result.ParseError || !result.HasFindings() {
		return nil
	}

	severity := result.Severity
	if severity == "" {
		severity = defaultSeverity
	}

	var notifications []*models.Notification
	if len(result.DrugInteractions) > 0 {
		notifications = append(notifications, s.build(trigger, models.NotificationDrugInteraction, severity,
			"Possible drug interaction",
			"Your current medications may interact: "+strings.Join(result.DrugInteractions, "; ")))
	}
	if len(result.SideEffects) > 0 {
		notifications = append(notifications, s.build(trigger, models.NotificationSideEffect, severity,
			"Possible medication side effect",
			"Recent symptoms may relate to your medications: "+strings.Join(result.SideEffects, "; ")))
	}
	if len(result.HealthTrends) > 0 {
		notifications = append(notifications, s.build(trigger, models.NotificationHealthTrend, severity,
			"Health trend noticed",
			strings.Join(result.HealthTrends, "; ")))
	}
	if len(result.Recommendations) > 0 {
		notifications = append(notifications, s.build(trigger, models.NotificationRecommendation, models.SeverityLow,
			"Suggestions for you",
			strings.Join(result.Recommendations, "; ")))
	}
	return notifications
}

// FromCorrelations builds one alert per prioritized correlation, preserving
// the ranking order.
func (s *Synthesizer) FromCorrelations(trigger models.TriggerEvent, correlations []models.Correlation) []*models.Notification {
	var notifications []*models.Notification
	for _, c := range correlations {
		severity := c.Severity
		if severity == "" {
			severity = defaultSeverity
		}
		n := s.build(trigger, models.NotificationCorrelationAlert, severity,
			correlationTitle(c), correlationMessage(c))
		n.Metadata = map[string]any{
			"correlation_type": string(c.Type),
			"engine":           c.Engine,
			"confidence":       c.Confidence,
			"priority_score":   c.PriorityScore,
			"evidence_source":  string(c.Source),
		}
		notifications = append(notifications, n)
	}
	return notifications
}

// build assembles the common notification envelope. Related entity ids come
// from the trigger event, never re-derived from entity names.
func (s *Synthesizer) build(trigger models.TriggerEvent, typ string, severity models.Severity, title, message string) *models.Notification {
	now := time.Now().UTC()
	return &models.Notification{
		ID:        uuid.New(),
		UserID:    trigger.UserID,
		Type:      typ,
		Severity:  severity,
		Title:     title,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(models.ExpiryFor(severity)),

		RelatedMedicationID: trigger.RelatedIDs.MedicationID,
		RelatedSymptomID:    trigger.RelatedIDs.SymptomID,
		RelatedLabResultID:  trigger.RelatedIDs.LabResultID,
		RelatedDocumentID:   trigger.RelatedIDs.DocumentID,
	}
}

func correlationTitle(c models.Correlation) string {
	switch c.Type {
	case models.CorrelationDrugSymptom, models.CorrelationMedSymptomSeq:
		return fmt.Sprintf("%s may be linked to %s", capitalize(c.Symptom), c.Medication)
	case models.CorrelationLabSymptom:
		return fmt.Sprintf("%s may relate to your %s result", capitalize(c.Symptom), c.LabTest)
	case models.CorrelationDrugLab:
		return fmt.Sprintf("%s may affect your %s", c.Medication, c.LabTest)
	}
	return "Pattern noticed in your health timeline"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func correlationMessage(c models.Correlation) string {
	var b strings.Builder
	if c.Detail != "" {
		b.WriteString(c.Detail)
	} else {
		b.WriteString(correlationTitle(c))
	}
	fmt.Fprintf(&b, " (confidence %.0f%%).", c.Confidence*100)
	if c.Recommendation != "" {
		b.WriteString(" " + c.Recommendation)
	}
	return b.String()
}

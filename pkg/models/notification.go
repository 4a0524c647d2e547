package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types produced by the synthesizer.
const (
	NotificationDrugInteraction  = "drug_interaction"
	NotificationSideEffect       = "side_effect"
	NotificationHealthTrend      = "health_trend"
	NotificationRecommendation   = "recommendation"
	NotificationCorrelationAlert = "correlation_alert"
)

// Notification is a proactive message surfaced to the user. Created by the
// notification synthesizer; mutated only by read/dismiss actions from
// outside the core.
type Notification struct {
	ID          uuid.UUID      `db:"id"           json:"id"`
	UserID      uuid.UUID      `db:"user_id"      json:"user_id"`
	Type        string         `db:"type"         json:"type"`
	Severity    Severity       `db:"severity"     json:"severity"`
	Title       string         `db:"title"        json:"title"`
	Message     string         `db:"message"      json:"message"`
	Metadata    map[string]any `db:"metadata"     json:"metadata,omitempty"`
	IsRead      bool           `db:"is_read"      json:"is_read"`
	IsDismissed bool           `db:"is_dismissed" json:"is_dismissed"`
	CreatedAt   time.Time      `db:"created_at"   json:"created_at"`
	ExpiresAt   time.Time      `db:"expires_at"   json:"expires_at"`

	RelatedMedicationID *uuid.UUID `db:"related_medication_id" json:"related_medication_id,omitempty"`
	RelatedSymptomID    *uuid.UUID `db:"related_symptom_id"    json:"related_symptom_id,omitempty"`
	RelatedLabResultID  *uuid.UUID `db:"related_lab_result_id" json:"related_lab_result_id,omitempty"`
	RelatedDocumentID   *uuid.UUID `db:"related_document_id"   json:"related_document_id,omitempty"`
}

// ExpiryFor returns how long a notification of the given severity stays live.
func ExpiryFor(sev Severity) time.Duration {
	switch sev {
	case SeverityHigh:
		return 7 * 24 * time.Hour
	case SeverityMedium:
		return 14 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

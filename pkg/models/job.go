package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusCompleted = "completed"
	JobStatusRunning   = "running"
	JobStatusFailed    = "failed"
)

// Job types.
const (
	JobTypeEventAnalysis = "event_analysis"
	JobTypeComprehensive = "comprehensive_analysis"
)

// Job tracks one background analysis run. The API returns a job_id when an
// event is ingested; the client polls until status is completed or failed.
// A failed analysis never propagates to the operation that triggered it.
type Job struct {
	ID            uuid.UUID  `db:"id"              json:"id"`
	UserID        uuid.UUID  `db:"user_id"         json:"user_id"`
	Type          string     `db:"type"            json:"type"`
	Status        string     `db:"status"          json:"status"`
	TriggerType   string     `db:"trigger_type"    json:"trigger_type"`
	AnalysisLogID *uuid.UUID `db:"analysis_log_id" json:"analysis_log_id,omitempty"`
	ErrorMessage  *string    `db:"error_message"   json:"error_message,omitempty"`
	CreatedAt     time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"      json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// SimilarityMatch records one semantic-cache candidate observed during a run.
type SimilarityMatch struct {
	SituationID uuid.UUID `json:"situation_id"`
	Similarity  float64   `json:"similarity"`
}

// AnalysisLog is the append-only audit record written once per analysis run,
// whether the run was served from cache or from a fresh LLM call.
type AnalysisLog struct {
	ID                uuid.UUID         `db:"id"                 json:"id"`
	UserID            uuid.UUID         `db:"user_id"            json:"user_id"`
	TriggerType       string            `db:"trigger_type"       json:"trigger_type"`
	ProfileHash       string            `db:"profile_hash"       json:"profile_hash"`
	Embedding         []float32         `db:"embedding"          json:"-"`
	SimilarityMatches []SimilarityMatch `db:"similarity_matches" json:"similarity_matches,omitempty"`
	LLMCalled         bool              `db:"llm_called"         json:"llm_called"`
	LLMCostUSD        float64           `db:"llm_cost_usd"       json:"llm_cost_usd"`
	ProcessingTimeMs  int64             `db:"processing_time_ms" json:"processing_time_ms"`
	AnalysisResult    AnalysisResult    `db:"analysis_result"    json:"analysis_result"`
	CreatedAt         time.Time         `db:"created_at"         json:"created_at"`
}

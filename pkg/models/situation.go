package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSimilarityThreshold is the cosine similarity a cached situation
// must meet before it may substitute for a fresh LLM call.
const DefaultSimilarityThreshold = 0.85

// MedicalSituation is the unit stored in the semantic cache: an embedding of
// an anonymized medical context together with the analysis it produced.
// Immutable after creation except for UsageCount and LastUsedAt.
type MedicalSituation struct {
	ID                  uuid.UUID         `db:"id"                   json:"id"`
	Embedding           []float32         `db:"embedding"            json:"-"`
	AnonymizedContext   AnonymizedContext `db:"anonymized_context"   json:"anonymized_context"`
	AnalysisResult      AnalysisResult    `db:"analysis_result"      json:"analysis_result"`
	ConfidenceScore     float64           `db:"confidence_score"     json:"confidence_score"`
	SimilarityThreshold float64           `db:"similarity_threshold" json:"similarity_threshold"`
	UsageCount          int               `db:"usage_count"          json:"usage_count"`
	CreatedAt           time.Time         `db:"created_at"           json:"created_at"`
	LastUsedAt          time.Time         `db:"last_used_at"         json:"last_used_at"`

	// Similarity is populated on search results only; it is the cosine
	// similarity between the query embedding and this situation.
	Similarity float64 `db:"-" json:"similarity,omitempty"`
}

// Package audit writes the append-only analysis log.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/medsignal/medsignal/internal/store"
	"github.com/medsignal/medsignal/pkg/models"
)

// How many cache candidates to record per run. The top matches are enough
// to reconstruct why a hit or miss happened.
const maxRecordedMatches = 2

// Entry collects everything one analysis run wants audited.
type Entry struct {
	UserID      uuid.UUID
	TriggerType string
	ProfileHash string
	Embedding   []float32
	Matches     []*models.MedicalSituation
	LLMCalled   bool
	LLMCostUSD  float64
	StartedAt   time.Time
	Result      models.AnalysisResult
}

// Logger persists analysis log rows and mirrors a summary to slog.
type Logger struct {
	store store.Store
}

func NewLogger(s store.Store) *Logger {
	return &Logger{store: s}
}

// Record writes one audit row. Returns the log id so the job row can link
// back to it.
func (l *Logger) Record(ctx context.Context, e Entry) (uuid.UUID, error) {
	matches := e.Matches
	if len(matches) > maxRecordedMatches {
		matches = matches[:maxRecordedMatches]
	}
	recorded := make([]models.SimilarityMatch, 0, len(matches))
	for _, m := range matches {
		recorded = append(recorded, models.SimilarityMatch{
			SituationID: m.ID,
			Similarity:  m.Similarity,
		})
	}

	log := &models.AnalysisLog{
		ID:                uuid.New(),
		UserID:            e.UserID,
		TriggerType:       e.TriggerType,
		ProfileHash:       e.ProfileHash,
		Embedding:         e.Embedding,
		SimilarityMatches: recorded,
		LLMCalled:         e.LLMCalled,
		LLMCostUSD:        e.LLMCostUSD,
		ProcessingTimeMs:  time.Since(e.StartedAt).Milliseconds(),
		AnalysisResult:    e.Result,
		CreatedAt:         time.Now().UTC(),
	}

	if err := l.store.CreateAnalysisLog(ctx, log); err != nil {
		return uuid.Nil, fmt.Errorf("writing analysis log: %w", err)
	}

	slog.Info("analysis run recorded",
		"log_id", log.ID,
		"user_id", e.UserID,
		"trigger_type", e.TriggerType,
		"llm_called", e.LLMCalled,
		"llm_cost_usd", e.LLMCostUSD,
		"cache_candidates", len(recorded),
		"processing_time_ms", log.ProcessingTimeMs,
	)
	return log.ID, nil
}

// Package situations is the semantic cache: a similarity-indexed store of
// prior (profile, analysis) pairs used to avoid redundant LLM calls.
package situations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/medsignal/medsignal/internal/config"
	"github.com/medsignal/medsignal/internal/embedding"
	"github.com/medsignal/medsignal/internal/store"
	"github.com/medsignal/medsignal/pkg/models"
)

var (
	// ErrDimensionMismatch is returned when a query or write vector does not
	// match the cache's declared dimension. Cross-dimension comparisons are
	// rejected explicitly, never silently truncated.
	ErrDimensionMismatch = errors.New("situations: embedding dimension mismatch")

	// ErrBelowStorageThreshold is returned when an analysis is not confident
	// enough to be worth caching.
	ErrBelowStorageThreshold = errors.New("situations: confidence below storage threshold")

	// ErrPlaceholderVector is returned on attempts to cache an empty-profile
	// placeholder embedding.
	ErrPlaceholderVector = errors.New("situations: placeholder vectors are not cacheable")
)

// Cache wraps the vector store with the engine's cache policy: similarity
// and confidence thresholds, dimension guarding, and usage-weighted eviction.
type Cache struct {
	store               store.Store
	dimension           int
	similarityThreshold float64
	storageThreshold    float64
	minConfidence       float64
}

func NewCache(s store.Store, dimension int, cfg config.AnalysisConfig) *Cache {
	return &Cache{
		store:               s,
		dimension:           dimension,
		similarityThreshold: cfg.SimilarityThreshold,
		storageThreshold:    cfg.StorageThreshold,
		minConfidence:       cfg.MinCacheConfidence,
	}
}

// Dimension returns the cache's declared vector dimension.
func (c *Cache) Dimension() int { return c.dimension }

// Store persists a new situation built from an anonymized profile and its
// analysis. Only results meeting the storage threshold are cached.
func (c *Cache) Store(ctx context.Context, emb embedding.Result, profile models.MedicalProfile, result models.AnalysisResult, confidence float64) (uuid.UUID, error) {
	if emb.Placeholder {
		return uuid.Nil, ErrPlaceholderVector
	}
	if len(emb.Vector) != c.dimension {
		return uuid.Nil, fmt.Errorf("%w: got %d, cache expects %d", ErrDimensionMismatch, len(emb.Vector), c.dimension)
	}
	if confidence < c.storageThreshold {
		return uuid.Nil, ErrBelowStorageThreshold
	}

	now := time.Now().UTC()
	sit := &models.MedicalSituation{
		ID:                  uuid.New(),
		Embedding:           emb.Vector,
		AnonymizedContext:   profile.Anonymize(),
		AnalysisResult:      result,
		ConfidenceScore:     confidence,
		SimilarityThreshold: c.similarityThreshold,
		UsageCount:          1,
		CreatedAt:           now,
		LastUsedAt:          now,
	}
	if err := c.store.CreateSituation(ctx, sit); err != nil {
		return uuid.Nil, fmt.Errorf("store situation: %w", err)
	}
	return sit.ID, nil
}

// Search returns cached situations similar to the query embedding, best
// first. A vector-store failure degrades to a cache miss (empty result) so
// the LLM path is never blocked on cache availability. A dimension mismatch
// is an explicit error.
func (c *Cache) Search(ctx context.Context, vector []float32, limit int) ([]*models.MedicalSituation, error) {
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: got %d, cache expects %d", ErrDimensionMismatch, len(vector), c.dimension)
	}
	if limit <= 0 {
		limit = 5
	}

	matches, err := c.store.SearchSituations(ctx, vector, c.minConfidence, limit)
	if err != nil {
		slog.Warn("situations: search failed, treating as cache miss", "error", err)
		return nil, nil
	}
	return matches, nil
}

// Touch increments usage_count and refreshes last_used_at. Called once per
// cache hit, decoupled from the read path.
func (c *Cache) Touch(ctx context.Context, id uuid.UUID) error {
	return c.store.TouchSituation(ctx, id)
}

// Cleanup evicts stale, low-value entries: unused for daysOld days and
// matched at most twice. Returns the number of rows removed.
func (c *Cache) Cleanup(ctx context.Context, daysOld int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)
	return c.store.DeleteStaleSituations(ctx, cutoff, 2)
}

// Package analysis orchestrates the two analysis entry points: the
// single-event fast path (profile, embedding, semantic cache, LLM) and the
// comprehensive path (correlation engines plus cross-validation).
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/medsignal/medsignal/internal/ai"
	"github.com/medsignal/medsignal/internal/audit"
	"github.com/medsignal/medsignal/internal/cache"
	"github.com/medsignal/medsignal/internal/config"
	"github.com/medsignal/medsignal/internal/correlation"
	"github.com/medsignal/medsignal/internal/embedding"
	"github.com/medsignal/medsignal/internal/notify"
	"github.com/medsignal/medsignal/internal/profile"
	"github.com/medsignal/medsignal/internal/situations"
	"github.com/medsignal/medsignal/internal/store"
	"github.com/medsignal/medsignal/pkg/models"
)

const (
	// Cache-hit adaptation: the cached result substitutes for a fresh LLM
	// call at a fixed confidence discount.
	adaptationDecay        = 0.1
	adaptedConfidenceFloor = 0.7

	cacheSearchLimit = 5
	jobStatusTTL     = 30 * time.Minute

	// Repeat triggers on an unchanged profile inside this window reuse the
	// prior audit row instead of re-analyzing.
	profileDedupeTTL = 5 * time.Minute

	// How many prioritized correlations become notifications per
	// comprehensive run. Matches the insight window.
	maxCorrelationAlerts = 5
)

// Engine is one correlation engine, independently invocable.
type Engine interface {
	Name() string
	Analyze(ctx context.Context, profile models.MedicalProfile) ([]models.Correlation, error)
}

// Embedder abstracts the embedding service for tests.
type Embedder interface {
	Embed(ctx context.Context, text string) (embedding.Result, error)
	Dimension() int
}

// Service runs analyses as background jobs. A trigger returns a job id
// immediately; failures mark the job failed and never propagate to the
// operation that raised the trigger.
type Service struct {
	store       store.Store
	cache       cache.Cache
	profiles    *profile.Builder
	embedder    Embedder
	situations  *situations.Cache
	provider    models.AIProvider
	engines     []Engine
	validator   *correlation.CrossValidator
	synthesizer *notify.Synthesizer
	audit       *audit.Logger
	timeout     time.Duration
}

func NewService(
	st store.Store,
	ca cache.Cache,
	embedder Embedder,
	sit *situations.Cache,
	provider models.AIProvider,
	engines []Engine,
	cfg config.AIConfig,
) *Service {
	return &Service{
		store:       st,
		cache:       ca,
		profiles:    profile.NewBuilder(st),
		embedder:    embedder,
		situations:  sit,
		provider:    provider,
		engines:     engines,
		validator:   correlation.NewCrossValidator(),
		synthesizer: notify.NewSynthesizer(),
		audit:       audit.NewLogger(st),
		timeout:     cfg.InferenceTimeout,
	}
}

// ProcessEvent creates a pending job and dispatches the single-event fast
// path in a background goroutine. Returns the job immediately.
func (s *Service) ProcessEvent(ctx context.Context, trigger models.TriggerEvent) (*models.Job, error) {
	return s.dispatch(ctx, trigger, models.JobTypeEventAnalysis, s.runEventAnalysis)
}

// RunComprehensive creates a pending job and dispatches all four correlation
// engines plus cross-validation in a background goroutine.
func (s *Service) RunComprehensive(ctx context.Context, trigger models.TriggerEvent) (*models.Job, error) {
	return s.dispatch(ctx, trigger, models.JobTypeComprehensive, s.runComprehensive)
}

func (s *Service) dispatch(ctx context.Context, trigger models.TriggerEvent, jobType string,
	run func(trigger models.TriggerEvent, jobID uuid.UUID)) (*models.Job, error) {

	if trigger.UserID == uuid.Nil {
		return nil, fmt.Errorf("invalid trigger: user id is required")
	}

	job := &models.Job{
		ID:          uuid.New(),
		UserID:      trigger.UserID,
		Type:        jobType,
		Status:      models.JobStatusPending,
		TriggerType: trigger.TriggerType,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, jobStatusTTL)

	go run(trigger, job.ID)

	return job, nil
}

// runEventAnalysis executes the fast path in a goroutine with its own
// context: the triggering request must never be blocked or rolled back by
// its analysis.
func (s *Service) runEventAnalysis(trigger models.TriggerEvent, jobID uuid.UUID) {
	ctx := context.Background()
	defer s.recoverJob(ctx, jobID)

	s.setJobStatus(ctx, jobID, models.JobStatusRunning)

	logID, err := s.analyzeEvent(ctx, trigger)
	if err != nil {
		slog.Error("event analysis failed", "job_id", jobID, "error", err)
		s.failJob(ctx, jobID, err.Error())
		return
	}
	s.completeJob(ctx, jobID, logID)
}

// analyzeEvent is the fast path: build profile, embed, search the semantic
// cache, and either adapt a cached result or call the LLM. The cache lookup
// always precedes any LLM call.
func (s *Service) analyzeEvent(ctx context.Context, trigger models.TriggerEvent) (uuid.UUID, error) {
	started := time.Now()

	prof := s.profiles.Build(ctx, trigger)
	if prof.IsEmpty() {
		// Nothing to analyze. Record the run so the job can still link
		// to an audit row.
		return s.audit.Record(ctx, audit.Entry{
			UserID:      trigger.UserID,
			TriggerType: trigger.TriggerType,
			StartedAt:   started,
		})
	}

	summary := profile.Summary(prof)
	hash := profile.Hash(prof)
	entry := audit.Entry{
		UserID:      trigger.UserID,
		TriggerType: trigger.TriggerType,
		ProfileHash: hash,
		StartedAt:   started,
	}

	// An unchanged profile within the dedupe window reuses the prior audit
	// row instead of re-running the pipeline.
	dedupeKey := cache.ProfileHashKey(trigger.UserID, hash)
	if raw, ok, err := s.cache.Get(ctx, dedupeKey); err == nil && ok {
		if logID, perr := uuid.Parse(string(raw)); perr == nil {
			return logID, nil
		}
	}

	var result models.AnalysisResult
	emb, embErr := s.embedder.Embed(ctx, summary)
	if embErr != nil {
		// Without an embedding there is no cache to consult. The LLM
		// path still runs at reduced coverage.
		slog.Warn("embedding unavailable, skipping semantic cache", "error", embErr)
	} else {
		entry.Embedding = emb.Vector
		matches, err := s.situations.Search(ctx, emb.Vector, cacheSearchLimit)
		if err != nil {
			// The only search error is a dimension mismatch, e.g. after a
			// fallback embedding. Proceed as a cache miss.
			slog.Warn("semantic cache search rejected query", "error", err)
		}
		entry.Matches = matches
	}

	if len(entry.Matches) > 0 {
		best := entry.Matches[0]
		result = adaptCached(best)

		// Usage accounting is decoupled from the read path.
		go func() {
			if err := s.situations.Touch(context.Background(), best.ID); err != nil {
				slog.Warn("situation touch failed", "situation_id", best.ID, "error", err)
			}
		}()
	} else {
		var err error
		result, err = s.freshAnalysis(ctx, prof, emb, embErr == nil, &entry)
		if err != nil {
			return uuid.Nil, err
		}
	}
	entry.Result = result

	s.persistNotifications(ctx, s.synthesizer.FromAnalysis(trigger, result))

	logID, err := s.audit.Record(ctx, entry)
	if err == nil {
		_ = s.cache.Set(ctx, dedupeKey, []byte(logID.String()), profileDedupeTTL)
	}
	return logID, err
}

// freshAnalysis calls the LLM and stores a high-confidence structured result
// in the semantic cache.
func (s *Service) freshAnalysis(ctx context.Context, prof models.MedicalProfile,
	emb embedding.Result, cacheable bool, entry *audit.Entry) (models.AnalysisResult, error) {

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := s.provider.Complete(callCtx, ai.BuildAnalysisRequest(prof))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("llm analysis: %w", ai.ClassifyError(err))
	}
	if completion.Text == "" {
		return models.AnalysisResult{}, fmt.Errorf("llm analysis: %w", ai.ErrEmptyResponse)
	}
	entry.LLMCalled = true
	entry.LLMCostUSD = completion.CostUSD

	result := ai.DecodeAnalysis(completion.Text)

	if cacheable && !result.ParseError {
		if _, err := s.situations.Store(ctx, emb, prof, result, result.Confidence); err != nil {
			switch {
			case errors.Is(err, situations.ErrBelowStorageThreshold):
				// Low-confidence results are served but not cached.
			default:
				slog.Warn("semantic cache store failed", "error", err)
			}
		}
	}
	return result, nil
}

// adaptCached substitutes a cached analysis for a fresh LLM call, at a fixed
// confidence discount.
func adaptCached(sit *models.MedicalSituation) models.AnalysisResult {
	result := sit.AnalysisResult
	result.Confidence = sit.ConfidenceScore - adaptationDecay
	if result.Confidence < adaptedConfidenceFloor {
		result.Confidence = adaptedConfidenceFloor
	}
	id := sit.ID
	result.AdaptedFrom = &id
	result.SimilarityScore = sit.Similarity
	return result
}

// runComprehensive executes every engine, cross-validates, and notifies on
// the top-priority findings. A single engine failing degrades coverage, it
// never fails the run.
func (s *Service) runComprehensive(trigger models.TriggerEvent, jobID uuid.UUID) {
	ctx := context.Background()
	defer s.recoverJob(ctx, jobID)

	s.setJobStatus(ctx, jobID, models.JobStatusRunning)
	started := time.Now()

	prof := s.profiles.Build(ctx, trigger)

	var all []models.Correlation
	for _, engine := range s.engines {
		found, err := engine.Analyze(ctx, prof)
		if err != nil {
			slog.Warn("correlation engine failed", "engine", engine.Name(), "error", err)
			continue
		}
		all = append(all, found...)
	}

	ranked := s.validator.Prioritize(all, trigger)
	insights := s.validator.GenerateInsights(ranked)

	alerts := ranked
	if len(alerts) > maxCorrelationAlerts {
		alerts = alerts[:maxCorrelationAlerts]
	}
	s.persistNotifications(ctx, s.synthesizer.FromCorrelations(trigger, alerts))

	logID, err := s.audit.Record(ctx, audit.Entry{
		UserID:      trigger.UserID,
		TriggerType: trigger.TriggerType,
		ProfileHash: profile.Hash(prof),
		LLMCalled:   usedLLM(ranked),
		StartedAt:   started,
		Result:      summarizeComprehensive(ranked, insights),
	})
	if err != nil {
		slog.Error("comprehensive analysis audit failed", "job_id", jobID, "error", err)
		s.failJob(ctx, jobID, err.Error())
		return
	}
	s.completeJob(ctx, jobID, logID)
}

// summarizeComprehensive folds prioritized correlations and insights into
// the audit log's result shape.
func summarizeComprehensive(ranked []models.Correlation, insights correlation.Insights) models.AnalysisResult {
	result := models.AnalysisResult{
		HealthTrends:    append(insights.RiskAlerts, insights.MonitoringSuggestions...),
		Recommendations: insights.Recommendations,
	}
	if len(ranked) > 0 {
		result.Confidence = ranked[0].Confidence
		result.Severity = ranked[0].Severity
	}
	return result
}

func usedLLM(correlations []models.Correlation) bool {
	for _, c := range correlations {
		if c.Source == models.SourceLLMFallback {
			return true
		}
	}
	return false
}

func (s *Service) persistNotifications(ctx context.Context, notifications []*models.Notification) {
	for _, n := range notifications {
		if err := s.store.CreateNotification(ctx, n); err != nil {
			slog.Warn("notification write failed", "type", n.Type, "error", err)
		}
	}
}

func (s *Service) recoverJob(ctx context.Context, jobID uuid.UUID) {
	if r := recover(); r != nil {
		slog.Error("panic in analysis run", "job_id", jobID, "panic", r)
		s.failJob(ctx, jobID, fmt.Sprintf("panic: %v", r))
	}
}

func (s *Service) setJobStatus(ctx context.Context, jobID uuid.UUID, status string) {
	_ = s.store.UpdateJobStatus(ctx, jobID, status)
	_ = s.cache.SetJobStatus(ctx, jobID, status, jobStatusTTL)
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, message string) {
	_ = s.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(message))
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, jobStatusTTL)
}

func (s *Service) completeJob(ctx context.Context, jobID uuid.UUID, logID uuid.UUID) {
	opts := []store.JobUpdateOption{}
	if logID != uuid.Nil {
		opts = append(opts, store.WithAnalysisLogID(logID))
	}
	_ = s.store.UpdateJobStatus(ctx, jobID, models.JobStatusCompleted, opts...)
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, jobStatusTTL)
}

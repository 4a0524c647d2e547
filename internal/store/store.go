package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/medsignal/medsignal/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
// The engine reads domain entities (medications, symptoms, labs, conditions)
// but never writes them; it writes only situations, notifications, analysis
// logs, and jobs.
type Store interface {
	Ping(ctx context.Context) error

	// Domain reads (profile building).
	ListActiveMedications(ctx context.Context, userID uuid.UUID) ([]models.MedicationSnapshot, error)
	ListRecentSymptoms(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]models.SymptomSnapshot, error)
	ListRecentLabResults(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]models.LabSnapshot, error)
	ListActiveConditions(ctx context.Context, userID uuid.UUID) ([]models.ConditionSnapshot, error)

	// Semantic cache rows.
	CreateSituation(ctx context.Context, s *models.MedicalSituation) error
	SearchSituations(ctx context.Context, embedding []float32, minConfidence float64, limit int) ([]*models.MedicalSituation, error)
	GetSituation(ctx context.Context, id uuid.UUID) (*models.MedicalSituation, error)
	TouchSituation(ctx context.Context, id uuid.UUID) error
	DeleteStaleSituations(ctx context.Context, lastUsedBefore time.Time, maxUsageCount int) (int64, error)

	// Notifications.
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error
	DismissNotification(ctx context.Context, id, userID uuid.UUID) error

	// Audit trail (append-only).
	CreateAnalysisLog(ctx context.Context, l *models.AnalysisLog) error
	ListAnalysisLogs(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AnalysisLog, error)

	// Background jobs.
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id, userID uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error

	// API keys.
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id, userID uuid.UUID) error
}

type jobUpdateParams struct {
	ErrorMessage  *string
	AnalysisLogID *uuid.UUID
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithAnalysisLogID(id uuid.UUID) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.AnalysisLogID = &id
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medsignal/medsignal/pkg/models"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Domain reads ---

func (s *PostgresStore) ListActiveMedications(ctx context.Context, userID uuid.UUID) ([]models.MedicationSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, dosage, frequency, start_date, end_date, status
		 FROM medications WHERE user_id = $1 AND status = 'active'
		 ORDER BY start_date DESC NULLS LAST`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active medications: %w", err)
	}
	defer rows.Close()

	var meds []models.MedicationSnapshot
	for rows.Next() {
		var m models.MedicationSnapshot
		var start, end *time.Time
		if err := rows.Scan(&m.Name, &m.Dosage, &m.Frequency, &start, &end, &m.Status); err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		if start != nil {
			m.StartDate = *start
		}
		if end != nil {
			m.EndDate = *end
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}

func (s *PostgresStore) ListRecentSymptoms(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]models.SymptomSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, severity, notes, reported_at
		 FROM symptoms WHERE user_id = $1 AND reported_at >= $2
		 ORDER BY reported_at DESC LIMIT $3`, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent symptoms: %w", err)
	}
	defer rows.Close()

	var syms []models.SymptomSnapshot
	for rows.Next() {
		var sym models.SymptomSnapshot
		var reported *time.Time
		if err := rows.Scan(&sym.Name, &sym.Severity, &sym.Notes, &reported); err != nil {
			return nil, fmt.Errorf("scan symptom: %w", err)
		}
		if reported != nil {
			sym.ReportedAt = *reported
		}
		syms = append(syms, sym)
	}
	return syms, rows.Err()
}

func (s *PostgresStore) ListRecentLabResults(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]models.LabSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT test_name, value, unit, reference_range, date
		 FROM lab_results WHERE user_id = $1 AND date >= $2
		 ORDER BY date DESC LIMIT $3`, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent lab results: %w", err)
	}
	defer rows.Close()

	var labs []models.LabSnapshot
	for rows.Next() {
		var lab models.LabSnapshot
		var date *time.Time
		if err := rows.Scan(&lab.TestName, &lab.Value, &lab.Unit, &lab.ReferenceRange, &date); err != nil {
			return nil, fmt.Errorf("scan lab result: %w", err)
		}
		if date != nil {
			lab.Date = *date
		}
		labs = append(labs, lab)
	}
	return labs, rows.Err()
}

func (s *PostgresStore) ListActiveConditions(ctx context.Context, userID uuid.UUID) ([]models.ConditionSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, diagnosed_at, status
		 FROM health_conditions WHERE user_id = $1 AND status = 'active'
		 ORDER BY diagnosed_at DESC NULLS LAST`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active conditions: %w", err)
	}
	defer rows.Close()

	var conds []models.ConditionSnapshot
	for rows.Next() {
		var c models.ConditionSnapshot
		var diagnosed *time.Time
		if err := rows.Scan(&c.Name, &diagnosed, &c.Status); err != nil {
			return nil, fmt.Errorf("scan condition: %w", err)
		}
		if diagnosed != nil {
			c.DiagnosedAt = *diagnosed
		}
		conds = append(conds, c)
	}
	return conds, rows.Err()
}

// --- Medical situations (semantic cache) ---

func (s *PostgresStore) CreateSituation(ctx context.Context, sit *models.MedicalSituation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO medical_situations
		   (id, embedding, anonymized_context, analysis_result, confidence_score,
		    similarity_threshold, usage_count, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sit.ID, pgvector.NewVector(sit.Embedding), sit.AnonymizedContext, sit.AnalysisResult,
		sit.ConfidenceScore, sit.SimilarityThreshold, sit.UsageCount, sit.CreatedAt, sit.LastUsedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create situation: %w", err)
	}
	return nil
}

// SearchSituations returns situations ordered by cosine similarity descending.
// A row qualifies only if its similarity meets its own stored threshold and
// its confidence meets minConfidence.
func (s *PostgresStore) SearchSituations(ctx context.Context, embedding []float32, minConfidence float64, limit int) ([]*models.MedicalSituation, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx,
		`SELECT id, embedding, anonymized_context, analysis_result, confidence_score,
		        similarity_threshold, usage_count, created_at, last_used_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM medical_situations
		 WHERE confidence_score >= $2
		   AND 1 - (embedding <=> $1) >= similarity_threshold
		 ORDER BY embedding <=> $1
		 LIMIT $3`, vec, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("search situations: %w", err)
	}
	defer rows.Close()

	var out []*models.MedicalSituation
	for rows.Next() {
		sit, err := scanSituation(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, sit)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetSituation(ctx context.Context, id uuid.UUID) (*models.MedicalSituation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, embedding, anonymized_context, analysis_result, confidence_score,
		        similarity_threshold, usage_count, created_at, last_used_at
		 FROM medical_situations WHERE id = $1`, id)
	sit, err := scanSituation(row, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get situation: %w", err)
	}
	return sit, nil
}

func (s *PostgresStore) TouchSituation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE medical_situations
		 SET usage_count = usage_count + 1, last_used_at = NOW()
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch situation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStaleSituations removes low-value entries: not used since
// lastUsedBefore AND matched at most maxUsageCount times. Usage-weighted
// eviction, not LRU.
func (s *PostgresStore) DeleteStaleSituations(ctx context.Context, lastUsedBefore time.Time, maxUsageCount int) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM medical_situations
		 WHERE last_used_at < $1 AND usage_count <= $2`, lastUsedBefore, maxUsageCount)
	if err != nil {
		return 0, fmt.Errorf("delete stale situations: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSituation(row rowScanner, withSimilarity bool) (*models.MedicalSituation, error) {
	var sit models.MedicalSituation
	var vec pgvector.Vector
	dest := []any{
		&sit.ID, &vec, &sit.AnonymizedContext, &sit.AnalysisResult, &sit.ConfidenceScore,
		&sit.SimilarityThreshold, &sit.UsageCount, &sit.CreatedAt, &sit.LastUsedAt,
	}
	if withSimilarity {
		dest = append(dest, &sit.Similarity)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	sit.Embedding = vec.Slice()
	return &sit, nil
}

// --- Notifications ---

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications
		   (id, user_id, type, severity, title, message, metadata, is_read, is_dismissed,
		    created_at, expires_at, related_medication_id, related_symptom_id,
		    related_lab_result_id, related_document_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		n.ID, n.UserID, n.Type, n.Severity, n.Title, n.Message, n.Metadata, n.IsRead,
		n.IsDismissed, n.CreatedAt, n.ExpiresAt, n.RelatedMedicationID, n.RelatedSymptomID,
		n.RelatedLabResultID, n.RelatedDocumentID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error) {
	query := `SELECT id, user_id, type, severity, title, message, metadata, is_read,
	                 is_dismissed, created_at, expires_at, related_medication_id,
	                 related_symptom_id, related_lab_result_id, related_document_id
	          FROM notifications
	          WHERE user_id = $1 AND is_dismissed = FALSE AND expires_at > NOW()`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Severity, &n.Title, &n.Message,
			&n.Metadata, &n.IsRead, &n.IsDismissed, &n.CreatedAt, &n.ExpiresAt,
			&n.RelatedMedicationID, &n.RelatedSymptomID, &n.RelatedLabResultID,
			&n.RelatedDocumentID); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DismissNotification(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_dismissed = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("dismiss notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Analysis logs ---

func (s *PostgresStore) CreateAnalysisLog(ctx context.Context, l *models.AnalysisLog) error {
	var vec any
	if len(l.Embedding) > 0 {
		vec = pgvector.NewVector(l.Embedding)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_logs
		   (id, user_id, trigger_type, profile_hash, embedding, similarity_matches,
		    llm_called, llm_cost_usd, processing_time_ms, analysis_result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.ID, l.UserID, l.TriggerType, l.ProfileHash, vec, l.SimilarityMatches,
		l.LLMCalled, l.LLMCostUSD, l.ProcessingTimeMs, l.AnalysisResult, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("create analysis log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnalysisLogs(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AnalysisLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, trigger_type, profile_hash, similarity_matches,
		        llm_called, llm_cost_usd, processing_time_ms, analysis_result, created_at
		 FROM analysis_logs WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analysis logs: %w", err)
	}
	defer rows.Close()

	var out []*models.AnalysisLog
	for rows.Next() {
		var l models.AnalysisLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.TriggerType, &l.ProfileHash,
			&l.SimilarityMatches, &l.LLMCalled, &l.LLMCostUSD, &l.ProcessingTimeMs,
			&l.AnalysisResult, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis log: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, user_id, type, status, trigger_type, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.UserID, job.Type, job.Status, job.TriggerType, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id, userID uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, type, status, trigger_type, analysis_log_id, error_message,
		        created_at, updated_at
		 FROM jobs WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&j.ID, &j.UserID, &j.Type, &j.Status, &j.TriggerType, &j.AnalysisLogID,
		&j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	var params jobUpdateParams
	for _, opt := range opts {
		opt(&params)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2,
		        error_message = COALESCE($3, error_message),
		        analysis_log_id = COALESCE($4, analysis_log_id),
		        updated_at = NOW()
		 WHERE id = $1`, id, status, params.ErrorMessage, params.AnalysisLogID)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- API keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ Store = (*PostgresStore)(nil)

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medsignal/medsignal/internal/api"
	"github.com/medsignal/medsignal/internal/api/handler"
	mw "github.com/medsignal/medsignal/internal/api/middleware"
	"github.com/medsignal/medsignal/internal/cache"
	"github.com/medsignal/medsignal/internal/store"
	"github.com/medsignal/medsignal/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- test fixtures ---

var (
	testUserID  = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	testRawKey  = "msk_test_contract_key_1234567890"
	testPrefix  = testRawKey[:8]
	testReadKey = "msk_read_only_key_1234567890"
	testJobID   = uuid.MustParse("dddddddd-dddd-dddd-dddd-dddddddddddd")
	testNotifID = uuid.MustParse("eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee")
	otherUserID = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
)

func testKeyHash(raw string) string {
	h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	return string(h)
}

// --- mock store ---

type mockStore struct {
	mu            sync.Mutex
	keys          []*models.APIKey
	jobs          map[uuid.UUID]*models.Job
	notifications map[uuid.UUID]*models.Notification
	revoked       []uuid.UUID
}

func newMockStore() *mockStore {
	return &mockStore{
		keys: []*models.APIKey{
			{
				ID:        uuid.New(),
				UserID:    testUserID,
				Name:      "test-key",
				KeyHash:   testKeyHash(testRawKey),
				KeyPrefix: testPrefix,
				Scopes:    []string{"read", "write", "admin"},
			},
			{
				ID:        uuid.New(),
				UserID:    testUserID,
				Name:      "read-key",
				KeyHash:   testKeyHash(testReadKey),
				KeyPrefix: testReadKey[:8],
				Scopes:    []string{"read"},
			},
		},
		jobs:          make(map[uuid.UUID]*models.Job),
		notifications: make(map[uuid.UUID]*models.Notification),
	}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (s *mockStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func (s *mockStore) ListAPIKeys(_ context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockStore) RevokeAPIKey(_ context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id && k.UserID == userID {
			s.revoked = append(s.revoked, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *mockStore) ListActiveMedications(_ context.Context, _ uuid.UUID) ([]models.MedicationSnapshot, error) {
	return nil, nil
}

func (s *mockStore) ListRecentSymptoms(_ context.Context, _ uuid.UUID, _ time.Time, _ int) ([]models.SymptomSnapshot, error) {
	return nil, nil
}

func (s *mockStore) ListRecentLabResults(_ context.Context, _ uuid.UUID, _ time.Time, _ int) ([]models.LabSnapshot, error) {
	return nil, nil
}

func (s *mockStore) ListActiveConditions(_ context.Context, _ uuid.UUID) ([]models.ConditionSnapshot, error) {
	return nil, nil
}

func (s *mockStore) CreateSituation(_ context.Context, _ *models.MedicalSituation) error { return nil }

func (s *mockStore) SearchSituations(_ context.Context, _ []float32, _ float64, _ int) ([]*models.MedicalSituation, error) {
	return nil, nil
}

func (s *mockStore) GetSituation(_ context.Context, _ uuid.UUID) (*models.MedicalSituation, error) {
	return nil, store.ErrNotFound
}

func (s *mockStore) TouchSituation(_ context.Context, _ uuid.UUID) error { return nil }

func (s *mockStore) DeleteStaleSituations(_ context.Context, _ time.Time, _ int) (int64, error) {
	return 0, nil
}

func (s *mockStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = n
	return nil
}

func (s *mockStore) ListNotifications(_ context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || n.IsDismissed {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *mockStore) MarkNotificationRead(_ context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.notifications[id]; ok && n.UserID == userID {
		n.IsRead = true
		return nil
	}
	return store.ErrNotFound
}

func (s *mockStore) DismissNotification(_ context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.notifications[id]; ok && n.UserID == userID {
		n.IsDismissed = true
		return nil
	}
	return store.ErrNotFound
}

func (s *mockStore) CreateAnalysisLog(_ context.Context, _ *models.AnalysisLog) error { return nil }

func (s *mockStore) ListAnalysisLogs(_ context.Context, _ uuid.UUID, _ int) ([]*models.AnalysisLog, error) {
	return nil, nil
}

func (s *mockStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *mockStore) GetJob(_ context.Context, id, userID uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok && j.UserID == userID {
		return j, nil
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, _ ...store.JobUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = status
		return nil
	}
	return store.ErrNotFound
}

var _ store.Store = (*mockStore)(nil)

// --- mock cache ---

type mockCache struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMockCache() *mockCache {
	return &mockCache{counters: make(map[string]int64)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }
func (c *mockCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (c *mockCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (c *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

var _ cache.Cache = (*mockCache)(nil)

// --- stub analyzer ---

type stubAnalyzer struct {
	mu       sync.Mutex
	triggers []models.TriggerEvent
	err      error
}

func (a *stubAnalyzer) record(trigger models.TriggerEvent, jobType string) (*models.Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.triggers = append(a.triggers, trigger)
	return &models.Job{
		ID:          uuid.New(),
		UserID:      trigger.UserID,
		Type:        jobType,
		Status:      models.JobStatusPending,
		TriggerType: trigger.TriggerType,
	}, nil
}

func (a *stubAnalyzer) ProcessEvent(_ context.Context, trigger models.TriggerEvent) (*models.Job, error) {
	return a.record(trigger, models.JobTypeEventAnalysis)
}

func (a *stubAnalyzer) RunComprehensive(_ context.Context, trigger models.TriggerEvent) (*models.Job, error) {
	return a.record(trigger, models.JobTypeComprehensive)
}

func (a *stubAnalyzer) lastTrigger() (models.TriggerEvent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.triggers) == 0 {
		return models.TriggerEvent{}, false
	}
	return a.triggers[len(a.triggers)-1], true
}

var _ handler.Analyzer = (*stubAnalyzer)(nil)

// --- test harness ---

type testServer struct {
	server   *httptest.Server
	store    *mockStore
	analyzer *stubAnalyzer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ms := newMockStore()
	mc := newMockCache()
	analyzer := &stubAnalyzer{}

	// Pre-populate a completed job and one unread notification
	ms.jobs[testJobID] = &models.Job{
		ID:          testJobID,
		UserID:      testUserID,
		Type:        models.JobTypeEventAnalysis,
		Status:      models.JobStatusCompleted,
		TriggerType: "medication_added",
	}
	ms.notifications[testNotifID] = &models.Notification{
		ID:       testNotifID,
		UserID:   testUserID,
		Type:     models.NotificationSideEffect,
		Severity: models.SeverityMedium,
		Title:    "Possible side effect",
		Message:  "Dry cough may be related to lisinopril.",
	}

	deps := api.Dependencies{
		Auth:      mw.NewAuth(ms),
		RateLimit: mw.NewRateLimit(mc, 60),

		EventHandler:         handler.NewEventHandler(analyzer),
		PollJobHandler:       handler.NewPollJobHandler(ms),
		ComprehensiveHandler: handler.NewComprehensiveHandler(analyzer),
		ListNotifications:    handler.NewListNotificationsHandler(ms),
		MarkNotificationRead: handler.NewMarkNotificationReadHandler(ms),
		DismissNotification:  handler.NewDismissNotificationHandler(ms),
		CreateKeyHandler:     handler.NewCreateKeyHandler(ms),
		ListKeysHandler:      handler.NewListKeysHandler(ms),
		RevokeKeyHandler:     handler.NewRevokeKeyHandler(ms),
	}

	srv := httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(srv.Close)

	return &testServer{server: srv, store: ms, analyzer: analyzer}
}

func (ts *testServer) do(t *testing.T, method, path, key string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func parseBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// --- event ingestion ---

func TestEvents_AcceptedReturnsPendingJob(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/events", testRawKey, map[string]any{
		"trigger_type": "medication_added",
		"entity_name":  "lisinopril",
	})

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, models.JobStatusPending, data["status"])
	assert.Equal(t, "medication_added", data["trigger_type"])

	trigger, ok := ts.analyzer.lastTrigger()
	require.True(t, ok)
	assert.Equal(t, testUserID, trigger.UserID)
	assert.Equal(t, "lisinopril", trigger.EntityName)
}

func TestEvents_RelatedIDsThreaded(t *testing.T) {
	ts := newTestServer(t)
	medID := uuid.New()

	resp := ts.do(t, "POST", "/api/v1/events", testRawKey, map[string]any{
		"trigger_type": "medication_added",
		"related_ids":  map[string]any{"medication_id": medID.String()},
	})

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	trigger, ok := ts.analyzer.lastTrigger()
	require.True(t, ok)
	require.NotNil(t, trigger.RelatedIDs.MedicationID)
	assert.Equal(t, medID, *trigger.RelatedIDs.MedicationID)
}

func TestEvents_MissingTriggerType(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/events", testRawKey, map[string]any{
		"entity_name": "lisinopril",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "INVALID_REQUEST", errObj["code"])
}

func TestEvents_InvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest("POST", ts.server.URL+"/api/v1/events",
		strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEvents_SchedulingFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.analyzer.err = context.DeadlineExceeded

	resp := ts.do(t, "POST", "/api/v1/events", testRawKey, map[string]any{
		"trigger_type": "medication_added",
	})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "INTERNAL_ERROR", errObj["code"])
}

func TestEvents_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/events", "", map[string]any{
		"trigger_type": "medication_added",
	})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// --- comprehensive analysis ---

func TestComprehensive_DefaultsTriggerType(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/analyses/comprehensive", testRawKey, nil)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	trigger, ok := ts.analyzer.lastTrigger()
	require.True(t, ok)
	assert.Equal(t, "comprehensive_requested", trigger.TriggerType)
}

// --- job polling ---

func TestPollJob_Found(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/v1/analyses/"+testJobID.String(), testRawKey, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, models.JobStatusCompleted, data["status"])
}

func TestPollJob_NotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/v1/analyses/"+uuid.NewString(), testRawKey, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	errObj := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

func TestPollJob_OtherUsersJobHidden(t *testing.T) {
	ts := newTestServer(t)

	foreignJob := uuid.New()
	ts.store.jobs[foreignJob] = &models.Job{
		ID:     foreignJob,
		UserID: otherUserID,
		Status: models.JobStatusCompleted,
	}

	resp := ts.do(t, "GET", "/api/v1/analyses/"+foreignJob.String(), testRawKey, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPollJob_InvalidID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/v1/analyses/not-a-uuid", testRawKey, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// --- notifications ---

func TestNotifications_List(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/v1/notifications", testRawKey, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseBody(t, resp)["data"].([]any)
	require.Len(t, data, 1)
	first := data[0].(map[string]any)
	assert.Equal(t, models.NotificationSideEffect, first["type"])
}

func TestNotifications_UnreadFilter(t *testing.T) {
	ts := newTestServer(t)

	// Mark the seeded notification read, then list unread only
	resp := ts.do(t, "POST", "/api/v1/notifications/"+testNotifID.String()+"/read", testRawKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, "GET", "/api/v1/notifications?unread=true", testRawKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Data)
}

func TestNotifications_InvalidLimit(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/v1/notifications?limit=zero", testRawKey, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotifications_Dismiss(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/notifications/"+testNotifID.String()+"/dismiss", testRawKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, "GET", "/api/v1/notifications", testRawKey, nil)
	var body struct {
		Data []any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Data)
}

func TestNotifications_ReadUnknownID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/notifications/"+uuid.NewString()+"/read", testRawKey, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- API key management ---

func TestKeys_CreateReturnsRawKeyOnce(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/admin/keys", testRawKey, map[string]any{
		"user_id": testUserID.String(),
		"name":    "integration-key",
		"scopes":  []string{"read"},
	})

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)

	rawKey, _ := data["key"].(string)
	require.NotEmpty(t, rawKey)
	assert.True(t, strings.HasPrefix(rawKey, "msk_"))
	assert.Equal(t, rawKey[:8], data["key_prefix"])
	// The hash never leaves the server
	_, hashPresent := data["key_hash"]
	assert.False(t, hashPresent)
}

func TestKeys_CreateRequiresName(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/v1/admin/keys", testRawKey, map[string]any{
		"user_id": testUserID.String(),
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKeys_List(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/v1/admin/keys", testRawKey, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseBody(t, resp)["data"].([]any)
	assert.Len(t, data, 2)
}

func TestKeys_Revoke(t *testing.T) {
	ts := newTestServer(t)

	keyID := ts.store.keys[1].ID
	resp := ts.do(t, "DELETE", "/api/v1/admin/keys/"+keyID.String(), testRawKey, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, ts.store.revoked, keyID)
}

func TestKeys_RevokeUnknown(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "DELETE", "/api/v1/admin/keys/"+uuid.NewString(), testRawKey, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKeys_AdminScopeRequired(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/v1/admin/keys", testReadKey, nil)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

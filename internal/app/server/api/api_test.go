package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"

	"praxsync/internal/app/server/config"
	"praxsync/internal/domain/entity"
	syncdomain "praxsync/internal/domain/sync"
	"praxsync/internal/infrastructure/storage/memory"
)

func newTestConfig(t *testing.T, token string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Sync.PageSize = 2
	cfg.Sync.MaxPageSize = 10
	if token != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.Auth.TokenHash = string(hash)
	}
	return cfg
}

func do(t *testing.T, mux http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Health(t *testing.T) {
	mux := New(memory.NewSyncRepository(), nil, newTestConfig(t, "secret"), slog.Default())

	rec := do(t, mux, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status  string `json:"status"`
		Version int64  `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, int64(0), body.Version)
}

func TestAPI_SyncRequiresToken(t *testing.T) {
	mux := New(memory.NewSyncRepository(), nil, newTestConfig(t, "secret"), slog.Default())

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "no token", token: "", status: http.StatusUnauthorized},
		{name: "wrong token", token: "guess", status: http.StatusUnauthorized},
		{name: "valid token", token: "secret", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodGet, "/api/sync/status", tt.token, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAPI_PushThenPull(t *testing.T) {
	mux := New(memory.NewSyncRepository(), nil, newTestConfig(t, ""), slog.Default())
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	push := syncdomain.PushRequest{
		DeviceID: "dev-1",
		SyncID:   "s1",
		Changes: []syncdomain.PushChange{
			{DataCategory: entity.CategoryMasterData, EntityType: entity.TypePatient, EntityID: "p1",
				Operation: entity.OperationCreate, Fields: entity.Fields{"firstName": "Anna"}, ClientModifiedAt: at},
			{DataCategory: entity.CategoryTransactional, EntityType: entity.TypeSession, EntityID: "t1", ParentID: "p1",
				Operation: entity.OperationCreate, Fields: entity.Fields{"title": "Knee"}, ClientModifiedAt: at},
			{DataCategory: entity.CategoryTransactional, EntityType: entity.TypeSession, EntityID: "t2", ParentID: "p1",
				Operation: entity.OperationCreate, Fields: entity.Fields{"title": "Shoulder"}, ClientModifiedAt: at},
		},
	}
	rec := do(t, mux, http.MethodPost, "/api/sync/push", "", push)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pushed syncdomain.PushResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pushed))
	assert.Len(t, pushed.Accepted, 3)

	rec = do(t, mux, http.MethodGet, "/api/sync/pull?sinceVersion=0", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page syncdomain.PullResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Changes, 2)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextVersion)
	assert.Equal(t, int64(3), page.CurrentVersion)

	rec = do(t, mux, http.MethodGet, "/api/sync/pull?sinceVersion=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Changes, 1)
	assert.Equal(t, "t2", page.Changes[0].EntityID)
	assert.False(t, page.HasMore)
}

func TestAPI_PushRejectsEmptyBatch(t *testing.T) {
	mux := New(memory.NewSyncRepository(), nil, newTestConfig(t, ""), slog.Default())

	rec := do(t, mux, http.MethodPost, "/api/sync/push", "", syncdomain.PushRequest{DeviceID: "dev-1", SyncID: "s1", Changes: []syncdomain.PushChange{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

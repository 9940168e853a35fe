package sync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"praxsync/internal/domain/entity"
	syncdomain "praxsync/internal/domain/sync"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Status(ctx context.Context) (*syncdomain.StatusResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncdomain.StatusResponse), args.Error(1)
}

func (m *MockService) Push(ctx context.Context, req syncdomain.PushRequest) (*syncdomain.PushResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncdomain.PushResponse), args.Error(1)
}

func (m *MockService) Pull(ctx context.Context, sinceVersion int64, limit int) (*syncdomain.PullResponse, error) {
	args := m.Called(ctx, sinceVersion, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncdomain.PullResponse), args.Error(1)
}

func newTestHandler(service syncdomain.Servicer) *Handler {
	return NewHandler(service, slog.Default(), huma.Middlewares{})
}

func TestHandler_getStatus(t *testing.T) {
	tests := []struct {
		name      string
		resp      *syncdomain.StatusResponse
		err       error
		expectErr bool
	}{
		{
			name: "returns current version",
			resp: &syncdomain.StatusResponse{CurrentVersion: 42, ServerTime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		},
		{
			name:      "repository failure",
			err:       errors.New("db down"),
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			service.On("Status", mock.Anything).Return(tt.resp, tt.err)

			out, err := newTestHandler(service).getStatus(context.Background(), &statusInput{})
			if tt.expectErr {
				var se huma.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusInternalServerError, se.GetStatus())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(42), out.Body.CurrentVersion)
		})
	}
}

func TestHandler_push(t *testing.T) {
	req := syncdomain.PushRequest{
		DeviceID: "dev-1",
		SyncID:   "sync-1",
		Changes: []syncdomain.PushChange{{
			DataCategory: entity.CategoryMasterData,
			EntityType:   entity.TypePatient,
			EntityID:     "p1",
			Operation:    entity.OperationCreate,
			Fields:       entity.Fields{"firstName": "Anna"},
		}},
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "accepted"},
		{name: "missing device", err: syncdomain.ErrMissingDevice, wantStatus: http.StatusBadRequest},
		{name: "empty batch", err: syncdomain.ErrEmptyBatch, wantStatus: http.StatusBadRequest},
		{name: "storage failure", err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			if tt.err != nil {
				service.On("Push", mock.Anything, req).Return(nil, tt.err)
			} else {
				service.On("Push", mock.Anything, req).Return(&syncdomain.PushResponse{
					Accepted: []syncdomain.AcceptedChange{{EntityID: "p1", ServerVersion: 1}},
				}, nil)
			}

			out, err := newTestHandler(service).push(context.Background(), &pushInput{Body: req})
			if tt.wantStatus != 0 {
				var se huma.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantStatus, se.GetStatus())
				return
			}
			require.NoError(t, err)
			require.Len(t, out.Body.Accepted, 1)
			assert.Equal(t, int64(1), out.Body.Accepted[0].ServerVersion)
			service.AssertExpectations(t)
		})
	}
}

func TestHandler_Routes(t *testing.T) {
	_, api := humatest.New(t)
	service := new(MockService)
	newTestHandler(service).SetupRoutes(api)

	next := int64(7)
	service.On("Pull", mock.Anything, int64(5), 2).Return(&syncdomain.PullResponse{
		Changes: []syncdomain.PullChange{
			{EntityType: entity.TypePatient, EntityID: "p1", Version: 6, Fields: entity.Fields{"firstName": "Anna"}},
			{EntityType: entity.TypePatient, EntityID: "p2", Version: 7, Fields: entity.Fields{"firstName": "Jonas"}},
		},
		HasMore:        true,
		NextVersion:    &next,
		CurrentVersion: 9,
	}, nil)
	service.On("Status", mock.Anything).Return(&syncdomain.StatusResponse{CurrentVersion: 9}, nil)

	resp := api.Get("/api/sync/pull?sinceVersion=5&limit=2")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"nextVersion":7`)
	assert.Contains(t, resp.Body.String(), `"hasMore":true`)

	resp = api.Get("/api/sync/status")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"currentVersion":9`)

	resp = api.Get("/api/sync/pull?sinceVersion=-1")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

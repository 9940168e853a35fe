package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type MockVersionReader struct {
	mock.Mock
}

func (m *MockVersionReader) CurrentVersion(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestHandler_healthCheck(t *testing.T) {
	tests := []struct {
		name           string
		version        int64
		storageErr     error
		expectedStatus string
		expectedCode   int
	}{
		{
			name:           "health check returns OK",
			version:        12,
			expectedStatus: "OK",
		},
		{
			name:         "storage unavailable",
			storageErr:   errors.New("connection refused"),
			expectedCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			storage := new(MockVersionReader)
			storage.On("CurrentVersion", mock.Anything).Return(tt.version, tt.storageErr)
			handler := NewHandler(slog.Default(), storage, huma.Middlewares{})

			// Act
			output, err := handler.healthCheck(context.Background(), &Input{})

			// Assert
			if tt.expectedCode != 0 {
				var se huma.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.expectedCode, se.GetStatus())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, output.Body.Status)
			assert.Equal(t, tt.version, output.Body.Version)
		})
	}
}

func TestNewHandler(t *testing.T) {
	handler := NewHandler(slog.Default(), new(MockVersionReader), huma.Middlewares{})

	assert.NotNil(t, handler)
	assert.NotNil(t, handler.log)
	assert.NotNil(t, handler.middleware)
}

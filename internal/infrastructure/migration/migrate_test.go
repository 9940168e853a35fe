package migration

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMigrator мок для интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func TestMigration_Up(t *testing.T) {
	tests := []struct {
		name      string
		upErr     error
		sourceErr error
		dbErr     error
		wantErr   []string
	}{
		{name: "success"},
		{name: "no change is not an error", upErr: migrate.ErrNoChange},
		{name: "up failure", upErr: errors.New("dirty database"), wantErr: []string{"migration up", "dirty database"}},
		{name: "close failure", sourceErr: errors.New("source closed"), dbErr: errors.New("db closed"),
			wantErr: []string{"migration source: source closed", "migration database: db closed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockM := new(MockMigrator)
			mockM.On("Up").Return(tt.upErr)
			mockM.On("Close").Return(tt.sourceErr, tt.dbErr)

			var gotSource, gotDB string
			engine := func(source, db string) (Migrator, error) {
				gotSource, gotDB = source, db
				return mockM, nil
			}

			err := NewMigration("migrations", "postgres://localhost/sync", engine).Up()
			assert.Equal(t, "file://migrations", gotSource)
			assert.Equal(t, "postgres://localhost/sync", gotDB)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				for _, msg := range tt.wantErr {
					assert.Contains(t, err.Error(), msg)
				}
			}
			mockM.AssertExpectations(t)
		})
	}
}

func TestMigration_Up_EngineError(t *testing.T) {
	// Ошибка на этапе создания мигратора (например, неверный драйвер)
	engine := func(source, db string) (Migrator, error) {
		return nil, errors.New("engine crash")
	}

	err := NewMigration("", "", engine).Up()

	assert.EqualError(t, err, "engine crash")
}

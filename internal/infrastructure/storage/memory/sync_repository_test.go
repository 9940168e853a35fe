package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"praxsync/internal/domain/entity"
	syncdomain "praxsync/internal/domain/sync"
)

func TestSyncRepository_Versions(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncRepository()

	for i, id := range []string{"p1", "p2", "p1"} {
		v, err := repo.SaveEntity(ctx, &syncdomain.StoredEntity{
			EntityType: entity.TypePatient, EntityID: id, DataCategory: entity.CategoryMasterData,
			Fields: entity.Fields{"n": i},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), v)
	}

	current, err := repo.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), current)

	changes, err := repo.ChangesSince(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "p2", changes[0].EntityID)
	assert.Equal(t, "p1", changes[1].EntityID)
	assert.Equal(t, int64(3), changes[1].Version)

	changes, err = repo.ChangesSince(ctx, 0, 1)
	require.NoError(t, err)
	assert.Len(t, changes, 1)

	_, err = repo.GetEntity(ctx, "missing")
	assert.ErrorIs(t, err, syncdomain.ErrEntityNotFound)
}

func TestSyncRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncRepository()
	_, err := repo.SaveEntity(ctx, &syncdomain.StoredEntity{EntityID: "p1", Fields: entity.Fields{"firstName": "Anna"}})
	require.NoError(t, err)

	got, err := repo.GetEntity(ctx, "p1")
	require.NoError(t, err)
	got.Fields["firstName"] = "changed"

	again, err := repo.GetEntity(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Anna", again.Fields["firstName"])
}

// Полный цикл сервиса поверх памяти: два устройства, конфликт и постраничный pull
func TestSyncRepository_WithService(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncRepository()
	svc := syncdomain.NewService(repo, nil, slog.Default(), &syncdomain.ServiceConfig{PageSize: 1, MaxPageSize: 10})
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	patientChange := func(version int64, name string) syncdomain.PushChange {
		op := entity.OperationUpdate
		if version == 0 {
			op = entity.OperationCreate
		}
		return syncdomain.PushChange{
			DataCategory: entity.CategoryMasterData, EntityType: entity.TypePatient, EntityID: "p1",
			Operation: op, Version: version, Fields: entity.Fields{"firstName": name}, ClientModifiedAt: at,
		}
	}

	resp, err := svc.Push(ctx, syncdomain.PushRequest{DeviceID: "a", SyncID: "1", Changes: []syncdomain.PushChange{patientChange(0, "Anna")}})
	require.NoError(t, err)
	require.Len(t, resp.Accepted, 1)
	v1 := resp.Accepted[0].ServerVersion

	resp, err = svc.Push(ctx, syncdomain.PushRequest{DeviceID: "a", SyncID: "2", Changes: []syncdomain.PushChange{patientChange(v1, "Anne")}})
	require.NoError(t, err)
	require.Len(t, resp.Accepted, 1)

	resp, err = svc.Push(ctx, syncdomain.PushRequest{DeviceID: "b", SyncID: "3", Changes: []syncdomain.PushChange{patientChange(v1, "Ann")}})
	require.NoError(t, err)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, syncdomain.ResolutionServerWins, resp.Conflicts[0].Resolution)
	assert.Equal(t, "Anne", resp.Conflicts[0].ServerData["firstName"])
	assert.Len(t, repo.Logs(), 3)

	pull, err := svc.Pull(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, pull.Changes, 1)
	assert.False(t, pull.HasMore)
	assert.Equal(t, "Anne", pull.Changes[0].Fields["firstName"])
}

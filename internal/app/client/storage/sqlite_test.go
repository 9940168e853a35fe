package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxsync/internal/app/client/tracking"
	"praxsync/internal/domain/entity"
	"praxsync/internal/domain/patient"
	syncdomain "praxsync/internal/domain/sync"
)

func openTestDB(t *testing.T, conflictSize int) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sync.db"), conflictSize)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_Versions(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t, 0)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertVersion(ctx, tracking.TrackedEntity{EntityID: "p1", EntityType: entity.TypePatient, ServerVersion: 5, LastSyncedAt: at}))
	require.NoError(t, s.UpsertVersion(ctx, tracking.TrackedEntity{EntityID: "p1", EntityType: entity.TypePatient, ServerVersion: 3, LastSyncedAt: at}))
	require.NoError(t, s.UpsertVersion(ctx, tracking.TrackedEntity{EntityID: "t1", EntityType: entity.TypeSession, ServerVersion: 6, LastSyncedAt: at}))

	versions, err := s.LoadVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	byID := map[string]tracking.TrackedEntity{}
	for _, v := range versions {
		byID[v.EntityID] = v
	}
	assert.Equal(t, int64(5), byID["p1"].ServerVersion)
	assert.Equal(t, at, byID["t1"].LastSyncedAt)
}

func TestSQLite_Queue(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t, 0)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	q := func(id string, seq int64, title string) tracking.QueuedChange {
		return tracking.QueuedChange{
			Seq:          seq,
			EntityType:   entity.TypeSession,
			EntityID:     id,
			ParentID:     "p1",
			DataCategory: entity.CategoryTransactional,
			Fields:       entity.Fields{"title": title, "prescribedSessions": 6},
			Operation:    entity.OperationCreate,
			QueuedAt:     at,
		}
	}

	require.NoError(t, s.SaveQueued(ctx, []tracking.QueuedChange{q("t1", 1, "A"), q("t2", 2, "B")}))
	require.NoError(t, s.SaveQueued(ctx, []tracking.QueuedChange{q("t1", 3, "A2")}))

	loaded, err := s.LoadQueue(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "t2", loaded[0].EntityID)
	assert.Equal(t, "t1", loaded[1].EntityID)
	assert.Equal(t, "A2", loaded[1].Fields["title"])
	assert.Equal(t, at, loaded[1].QueuedAt)

	// подтверждение старой записи не удаляет более новую
	require.NoError(t, s.DeleteQueued(ctx, []tracking.Ack{{EntityID: "t1", Seq: 1}, {EntityID: "t2", Seq: 2}}))

	loaded, err = s.LoadQueue(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(3), loaded[0].Seq)
}

func TestSQLite_QueueWithOutboundQueue(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sync.db")

	s, err := Open(path, 0)
	require.NoError(t, err)
	queue, err := tracking.NewOutboundQueue(ctx, s, testLogger())
	require.NoError(t, err)
	require.NoError(t, queue.EnqueueAll(ctx, []tracking.Change{{
		Extracted: entity.Extracted{
			EntityType: entity.TypePatient, EntityID: "p1", ParentID: "p1",
			DataCategory: entity.CategoryMasterData, Fields: entity.Fields{"firstName": "Anna"},
		},
		Operation: entity.OperationCreate,
	}}))
	require.NoError(t, s.Close())

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	defer reopened.Close()
	restored, err := tracking.NewOutboundQueue(ctx, reopened, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Count())
}

func TestSQLite_State(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t, 0)

	st, err := s.LoadState(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, st.DeviceID)
	assert.Zero(t, st.Cursor)

	again, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.DeviceID, again.DeviceID)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	st.Cursor = 42
	st.LastPullAt = at
	st.PendingCount = 3
	require.NoError(t, s.SaveState(ctx, st))

	loaded, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, loaded)
}

func TestSQLite_ConflictLogIsBounded(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t, 2)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.AppendConflict(ctx, tracking.ConflictEntry{
			EntityID:   id,
			EntityType: entity.TypeICDCode,
			Resolution: syncdomain.ResolutionServerWins,
		}))
	}

	conflicts, err := s.Conflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "c", conflicts[0].EntityID)
	assert.Equal(t, "b", conflicts[1].EntityID)
	assert.False(t, conflicts[0].RecordedAt.IsZero())
}

func TestPatientStore(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t, 0).Patients()

	_, err := store.Get(ctx, "p1")
	assert.ErrorIs(t, err, patient.ErrNotFound)
	assert.ErrorIs(t, store.Save(ctx, &patient.Patient{}), patient.ErrInvalidID)

	var calls []string
	unsubscribe := store.Subscribe(func(_ context.Context, previous, current *patient.Patient) {
		prev := "<nil>"
		if previous != nil {
			prev = previous.FirstName
		}
		calls = append(calls, prev+"->"+current.FirstName)
	})

	p := &patient.Patient{
		ID:        "p1",
		FirstName: "Anna",
		Therapies: []patient.Therapy{{ID: "t1", Title: "Knee", Status: "active"}},
	}
	require.NoError(t, store.Save(ctx, p))

	p.FirstName = "Anne"
	require.NoError(t, store.Save(ctx, p))

	p.FirstName = "Anja"
	require.NoError(t, store.SaveSilently(ctx, p))

	unsubscribe()
	p.FirstName = "Ann"
	require.NoError(t, store.Save(ctx, p))

	assert.Equal(t, []string{"<nil>->Anna", "Anna->Anne"}, calls)

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestScheduleStore(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t, 0).Schedules()

	notified := 0
	store.Subscribe(func(context.Context, *patient.Schedule, *patient.Schedule) { notified++ })

	sc := &patient.Schedule{ID: "s1", Slots: []patient.Slot{{ID: "sl1", Weekday: 1, Start: "08:00", End: "12:00", Active: true}}}
	require.NoError(t, store.SaveSilently(ctx, sc))
	require.NoError(t, store.Save(ctx, sc))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, sc, got)
	assert.Equal(t, 1, notified)
}

package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"praxsync/internal/domain/entity"
	syncdomain "praxsync/internal/domain/sync"
)

// TrackedEntity последняя известная серверная версия сущности
type TrackedEntity struct {
	EntityID      string      `json:"entityId"`
	EntityType    entity.Type `json:"entityType"`
	ServerVersion int64       `json:"serverVersion"`
	LastSyncedAt  time.Time   `json:"lastSyncedAt"`
}

// VersionStore долговременное хранилище версий. UpsertVersion должен
// быть атомарным: частичная запись не портит ранее сохраненные версии.
type VersionStore interface {
	LoadVersions(ctx context.Context) ([]TrackedEntity, error)
	UpsertVersion(ctx context.Context, e TrackedEntity) error
}

// VersionTracker хранит серверные версии всех сущностей, которые
// хотя бы раз были приняты сервером или получены с него
type VersionTracker struct {
	mu       sync.RWMutex
	store    VersionStore
	log      *slog.Logger
	entities map[string]TrackedEntity
}

// NewVersionTracker загружает сохраненные версии
func NewVersionTracker(ctx context.Context, store VersionStore, log *slog.Logger) (*VersionTracker, error) {
	loaded, err := store.LoadVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entity versions: %w", err)
	}

	entities := make(map[string]TrackedEntity, len(loaded))
	for _, e := range loaded {
		entities[e.EntityID] = e
	}

	return &VersionTracker{
		store:    store,
		log:      log.With(slog.String("component", "version_tracker")),
		entities: entities,
	}, nil
}

// Operation возвращает create для сущностей, которые сервер еще не видел
func (t *VersionTracker) Operation(entityID string) entity.Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.entities[entityID]; ok {
		return entity.OperationUpdate
	}
	return entity.OperationCreate
}

// Version возвращает последнюю серверную версию или 0
func (t *VersionTracker) Version(entityID string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entities[entityID].ServerVersion
}

// Tracked возвращает запись трекера
func (t *VersionTracker) Tracked(entityID string) (TrackedEntity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entities[entityID]
	return e, ok
}

// Count количество отслеживаемых сущностей
func (t *VersionTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entities)
}

// UpdateVersion фиксирует версию после принятия сервером
func (t *VersionTracker) UpdateVersion(ctx context.Context, entityID string, typ entity.Type, version int64, at time.Time) error {
	return t.upsert(ctx, TrackedEntity{
		EntityID:      entityID,
		EntityType:    typ,
		ServerVersion: version,
		LastSyncedAt:  at,
	})
}

// UpdateFromPull фиксирует версию примененного входящего изменения
func (t *VersionTracker) UpdateFromPull(ctx context.Context, change syncdomain.PullChange) error {
	return t.upsert(ctx, TrackedEntity{
		EntityID:      change.EntityID,
		EntityType:    change.EntityType,
		ServerVersion: change.Version,
		LastSyncedAt:  change.ServerModifiedAt,
	})
}

// upsert никогда не уменьшает версию
func (t *VersionTracker) upsert(ctx context.Context, e TrackedEntity) error {
	if e.EntityID == "" {
		return fmt.Errorf("track version: %w", ErrEmptyEntityID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.entities[e.EntityID]; ok && current.ServerVersion > e.ServerVersion {
		t.log.Debug("stale version ignored",
			slog.String("entity_id", e.EntityID),
			slog.Int64("current", current.ServerVersion),
			slog.Int64("received", e.ServerVersion),
		)
		return nil
	}

	if err := t.store.UpsertVersion(ctx, e); err != nil {
		return fmt.Errorf("persist version of %s: %w", e.EntityID, err)
	}
	t.entities[e.EntityID] = e
	return nil
}

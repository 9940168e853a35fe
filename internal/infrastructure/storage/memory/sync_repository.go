package memory

import (
	"context"
	"sort"
	"sync"

	syncdomain "praxsync/internal/domain/sync"
)

// SyncRepository хранилище синхронизации в памяти для локальной разработки
// и тестов. Данные теряются при остановке сервера.
type SyncRepository struct {
	mu       sync.RWMutex
	version  int64
	entities map[string]*syncdomain.StoredEntity
	logs     []syncdomain.SyncLog
}

func NewSyncRepository() *SyncRepository {
	return &SyncRepository{entities: make(map[string]*syncdomain.StoredEntity)}
}

func (r *SyncRepository) CurrentVersion(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version, nil
}

func (r *SyncRepository) GetEntity(_ context.Context, entityID string) (*syncdomain.StoredEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[entityID]
	if !ok {
		return nil, syncdomain.ErrEntityNotFound
	}
	return clone(e), nil
}

func (r *SyncRepository) SaveEntity(_ context.Context, e *syncdomain.StoredEntity) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version++
	stored := clone(e)
	stored.Version = r.version
	r.entities[e.EntityID] = stored
	return r.version, nil
}

func (r *SyncRepository) ChangesSince(_ context.Context, since int64, limit int) ([]*syncdomain.StoredEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*syncdomain.StoredEntity, 0)
	for _, e := range r.entities {
		if e.Version > since {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SyncRepository) RecordSync(_ context.Context, l *syncdomain.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *l)
	return nil
}

// Logs журнал принятых пакетов
func (r *SyncRepository) Logs() []syncdomain.SyncLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]syncdomain.SyncLog, len(r.logs))
	copy(out, r.logs)
	return out
}

func clone(e *syncdomain.StoredEntity) *syncdomain.StoredEntity {
	c := *e
	c.Fields = e.Fields.Clone()
	return &c
}

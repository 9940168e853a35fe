package tracking

import (
	"context"
	"sync"
)

// MemoryStore хранилище состояния в памяти. Реализует VersionStore,
// QueueStore и StateStore; используется в тестах и без DATA_PATH.
type MemoryStore struct {
	mu           sync.Mutex
	versions     map[string]TrackedEntity
	queue        map[string]QueuedChange
	state        State
	conflicts    []ConflictEntry
	conflictSize int
}

// NewMemoryStore создает пустое хранилище с журналом конфликтов на conflictSize записей
func NewMemoryStore(conflictSize int) *MemoryStore {
	if conflictSize <= 0 {
		conflictSize = 50
	}
	return &MemoryStore{
		versions:     make(map[string]TrackedEntity),
		queue:        make(map[string]QueuedChange),
		conflictSize: conflictSize,
	}
}

func (m *MemoryStore) LoadVersions(_ context.Context) ([]TrackedEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TrackedEntity, 0, len(m.versions))
	for _, v := range m.versions {
		out = append(out, v)
	}
	return out, nil
}

func (m *MemoryStore) UpsertVersion(_ context.Context, e TrackedEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[e.EntityID] = e
	return nil
}

func (m *MemoryStore) LoadQueue(_ context.Context) ([]QueuedChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QueuedChange, 0, len(m.queue))
	for _, c := range m.queue {
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryStore) SaveQueued(_ context.Context, changes []QueuedChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range changes {
		c.Fields = c.Fields.Clone()
		m.queue[c.EntityID] = c
	}
	return nil
}

func (m *MemoryStore) DeleteQueued(_ context.Context, acks []Ack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range acks {
		if c, ok := m.queue[a.EntityID]; ok && c.Seq <= a.Seq {
			delete(m.queue, a.EntityID)
		}
	}
	return nil
}

func (m *MemoryStore) LoadState(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryStore) SaveState(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	return nil
}

func (m *MemoryStore) AppendConflict(_ context.Context, c ConflictEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts = append(m.conflicts, c)
	if over := len(m.conflicts) - m.conflictSize; over > 0 {
		m.conflicts = append([]ConflictEntry(nil), m.conflicts[over:]...)
	}
	return nil
}

// Conflicts возвращает журнал, новые записи первыми
func (m *MemoryStore) Conflicts(_ context.Context) ([]ConflictEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ConflictEntry, 0, len(m.conflicts))
	for i := len(m.conflicts) - 1; i >= 0; i-- {
		out = append(out, m.conflicts[i])
	}
	return out, nil
}

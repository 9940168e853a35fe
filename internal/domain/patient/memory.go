package patient

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore хранилище пациентов в памяти, используется в тестах и как
// запасной вариант, если SQLite недоступен
type MemoryStore struct {
	mu        sync.RWMutex
	patients  map[string]*Patient
	observers Observers[Patient]
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patients: make(map[string]*Patient)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, p *Patient) error {
	previous, err := s.put(p)
	if err != nil {
		return err
	}
	s.observers.Notify(ctx, previous, p.Clone())
	return nil
}

func (s *MemoryStore) SaveSilently(_ context.Context, p *Patient) error {
	_, err := s.put(p)
	return err
}

func (s *MemoryStore) Subscribe(h ChangeHandler[Patient]) func() {
	return s.observers.Subscribe(h)
}

func (s *MemoryStore) put(p *Patient) (*Patient, error) {
	if p == nil || p.ID == "" {
		return nil, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.patients[p.ID]
	s.patients[p.ID] = p.Clone()
	return previous, nil
}

// MemoryAvailabilityStore хранилище расписаний в памяти
type MemoryAvailabilityStore struct {
	mu        sync.RWMutex
	schedules map[string]*Schedule
	observers Observers[Schedule]
}

// NewMemoryAvailabilityStore создает пустое хранилище расписаний
func NewMemoryAvailabilityStore() *MemoryAvailabilityStore {
	return &MemoryAvailabilityStore{schedules: make(map[string]*Schedule)}
}

func (s *MemoryAvailabilityStore) Get(_ context.Context, id string) (*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sc.Clone(), nil
}

func (s *MemoryAvailabilityStore) List(_ context.Context) ([]*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Schedule, 0, len(s.schedules))
	for _, sc := range s.schedules {
		out = append(out, sc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryAvailabilityStore) Save(ctx context.Context, sc *Schedule) error {
	previous, err := s.put(sc)
	if err != nil {
		return err
	}
	s.observers.Notify(ctx, previous, sc.Clone())
	return nil
}

func (s *MemoryAvailabilityStore) SaveSilently(_ context.Context, sc *Schedule) error {
	_, err := s.put(sc)
	return err
}

func (s *MemoryAvailabilityStore) Subscribe(h ChangeHandler[Schedule]) func() {
	return s.observers.Subscribe(h)
}

func (s *MemoryAvailabilityStore) put(sc *Schedule) (*Schedule, error) {
	if sc == nil || sc.ID == "" {
		return nil, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.schedules[sc.ID]
	s.schedules[sc.ID] = sc.Clone()
	return previous, nil
}

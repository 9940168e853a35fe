package patient

import (
	"context"
	"sort"
	"sync"
)

// ChangeHandler вызывается синхронно после локального сохранения агрегата.
// previous равен nil, если агрегат создан впервые.
type ChangeHandler[T any] func(ctx context.Context, previous, current *T)

// Store хранилище локальных агрегатов пациентов.
// Save уведомляет подписчиков, SaveSilently пишет без уведомлений
// и используется для изменений, пришедших с сервера.
type Store interface {
	Get(ctx context.Context, id string) (*Patient, error)
	List(ctx context.Context) ([]*Patient, error)
	Save(ctx context.Context, p *Patient) error
	SaveSilently(ctx context.Context, p *Patient) error
	Subscribe(h ChangeHandler[Patient]) (unsubscribe func())
}

// AvailabilityStore тот же контракт для расписаний
type AvailabilityStore interface {
	Get(ctx context.Context, id string) (*Schedule, error)
	List(ctx context.Context) ([]*Schedule, error)
	Save(ctx context.Context, s *Schedule) error
	SaveSilently(ctx context.Context, s *Schedule) error
	Subscribe(h ChangeHandler[Schedule]) (unsubscribe func())
}

// Observers список подписчиков на изменения агрегата
type Observers[T any] struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]ChangeHandler[T]
}

// Subscribe добавляет обработчик и возвращает функцию отписки
func (o *Observers[T]) Subscribe(h ChangeHandler[T]) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handlers == nil {
		o.handlers = make(map[int]ChangeHandler[T])
	}
	id := o.next
	o.next++
	o.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.handlers, id)
			o.mu.Unlock()
		})
	}
}

// Notify вызывает обработчики в порядке подписки
func (o *Observers[T]) Notify(ctx context.Context, previous, current *T) {
	o.mu.RLock()
	ids := make([]int, 0, len(o.handlers))
	for id := range o.handlers {
		ids = append(ids, id)
	}
	handlers := make([]ChangeHandler[T], 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, o.handlers[id])
	}
	o.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, previous, current)
	}
}

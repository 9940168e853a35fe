package tracking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"praxsync/internal/domain/entity"
)

// QueuedChange локальная правка, ожидающая отправки на сервер
type QueuedChange struct {
	Seq          int64            `json:"seq"`
	EntityType   entity.Type      `json:"entityType"`
	EntityID     string           `json:"entityId"`
	ParentID     string           `json:"parentId,omitempty"`
	DataCategory entity.Category  `json:"dataCategory"`
	Fields       entity.Fields    `json:"fields"`
	Operation    entity.Operation `json:"operation"`
	QueuedAt     time.Time        `json:"queuedAt"`
}

// Ack подтверждение отправки: удаляет запись сущности, если она не новее Seq
type Ack struct {
	EntityID string
	Seq      int64
}

// QueueStore долговременное хранилище очереди. На каждую сущность
// хранится не более одной записи.
type QueueStore interface {
	LoadQueue(ctx context.Context) ([]QueuedChange, error)
	SaveQueued(ctx context.Context, changes []QueuedChange) error
	DeleteQueued(ctx context.Context, acks []Ack) error
}

// OutboundQueue очередь отправки с объединением правок одной сущности:
// новая правка заменяет запись, которая еще не ушла на сервер
type OutboundQueue struct {
	mu        sync.Mutex
	store     QueueStore
	log       *slog.Logger
	items     map[string]QueuedChange
	seq       int64
	now       func() time.Time
	listeners []func(count int)
}

// NewOutboundQueue восстанавливает очередь из хранилища
func NewOutboundQueue(ctx context.Context, store QueueStore, log *slog.Logger) (*OutboundQueue, error) {
	loaded, err := store.LoadQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("load outbound queue: %w", err)
	}

	q := &OutboundQueue{
		store: store,
		log:   log.With(slog.String("component", "outbound_queue")),
		items: make(map[string]QueuedChange, len(loaded)),
		now:   time.Now,
	}
	for _, c := range loaded {
		q.items[c.EntityID] = c
		if c.Seq > q.seq {
			q.seq = c.Seq
		}
	}
	return q, nil
}

// OnChange регистрирует слушателя, который получает размер очереди после каждого изменения
func (q *OutboundQueue) OnChange(fn func(count int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, fn)
}

// EnqueueAll добавляет правки. Правка сущности, уже стоящей в очереди,
// заменяет прежнюю запись и получает новый порядковый номер.
func (q *OutboundQueue) EnqueueAll(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}

	q.mu.Lock()
	at := q.now().UTC()
	seq := q.seq
	batch := make([]QueuedChange, 0, len(changes))
	for _, c := range changes {
		seq++
		batch = append(batch, QueuedChange{
			Seq:          seq,
			EntityType:   c.EntityType,
			EntityID:     c.EntityID,
			ParentID:     c.ParentID,
			DataCategory: c.DataCategory,
			Fields:       c.Fields.Clone(),
			Operation:    c.Operation,
			QueuedAt:     at,
		})
	}

	if err := q.store.SaveQueued(ctx, batch); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("persist queued changes: %w", err)
	}

	q.seq = seq
	coalesced := 0
	for _, c := range batch {
		if _, ok := q.items[c.EntityID]; ok {
			coalesced++
		}
		q.items[c.EntityID] = c
	}
	count := len(q.items)
	listeners := q.listeners
	q.mu.Unlock()

	q.log.Debug("changes enqueued",
		slog.Int("added", len(batch)),
		slog.Int("coalesced", coalesced),
		slog.Int("pending", count),
	)
	notify(listeners, count)
	return nil
}

// MarkSynced удаляет записи с указанными идентификаторами независимо от их номера.
// Отсутствующие идентификаторы пропускаются.
func (q *OutboundQueue) MarkSynced(ctx context.Context, entityIDs ...string) error {
	q.mu.Lock()
	acks := make([]Ack, 0, len(entityIDs))
	for _, id := range entityIDs {
		if c, ok := q.items[id]; ok {
			acks = append(acks, Ack{EntityID: id, Seq: c.Seq})
		}
	}
	q.mu.Unlock()
	return q.remove(ctx, acks)
}

// Acknowledge удаляет отправленные записи. Если за время отправки сущность
// была изменена снова, более новая запись остается в очереди.
func (q *OutboundQueue) Acknowledge(ctx context.Context, items ...QueuedChange) error {
	acks := make([]Ack, 0, len(items))
	for _, it := range items {
		acks = append(acks, Ack{EntityID: it.EntityID, Seq: it.Seq})
	}
	return q.remove(ctx, acks)
}

func (q *OutboundQueue) remove(ctx context.Context, acks []Ack) error {
	if len(acks) == 0 {
		return nil
	}

	q.mu.Lock()
	if err := q.store.DeleteQueued(ctx, acks); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("delete queued changes: %w", err)
	}
	for _, a := range acks {
		if c, ok := q.items[a.EntityID]; ok && c.Seq <= a.Seq {
			delete(q.items, a.EntityID)
		}
	}
	count := len(q.items)
	listeners := q.listeners
	q.mu.Unlock()

	notify(listeners, count)
	return nil
}

// Snapshot возвращает копию очереди в порядке постановки
func (q *OutboundQueue) Snapshot() []QueuedChange {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedChange, 0, len(q.items))
	for _, c := range q.items {
		c.Fields = c.Fields.Clone()
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// HasNewerThan сообщает, есть ли записи, поставленные после seq
func (q *OutboundQueue) HasNewerThan(seq int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.items {
		if c.Seq > seq {
			return true
		}
	}
	return false
}

func (q *OutboundQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *OutboundQueue) IsEmpty() bool {
	return q.Count() == 0
}

func notify(listeners []func(int), count int) {
	for _, fn := range listeners {
		fn(count)
	}
}

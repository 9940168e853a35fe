package tracking

import (
	"context"
	"time"

	"praxsync/internal/domain/entity"
	syncdomain "praxsync/internal/domain/sync"
)

// State сохраняемое состояние синхронизации устройства
type State struct {
	DeviceID     string    `json:"deviceId"`
	Cursor       int64     `json:"cursor"`
	LastPushAt   time.Time `json:"lastPushAt,omitempty"`
	LastPullAt   time.Time `json:"lastPullAt,omitempty"`
	LastSyncAt   time.Time `json:"lastSyncAt,omitempty"`
	PendingCount int       `json:"pendingCount"`
}

// ConflictEntry запись журнала конфликтов
type ConflictEntry struct {
	EntityID      string                `json:"entityId"`
	EntityType    entity.Type           `json:"entityType"`
	Resolution    syncdomain.Resolution `json:"resolution"`
	ClientVersion int64                 `json:"clientVersion"`
	ServerVersion int64                 `json:"serverVersion"`
	ClientData    entity.Fields         `json:"clientData,omitempty"`
	ServerData    entity.Fields         `json:"serverData,omitempty"`
	RecordedAt    time.Time             `json:"recordedAt"`
}

// StateStore хранилище состояния синхронизации и журнала конфликтов.
// Журнал ограничен: при переполнении удаляются самые старые записи.
type StateStore interface {
	LoadState(ctx context.Context) (State, error)
	SaveState(ctx context.Context, s State) error
	AppendConflict(ctx context.Context, c ConflictEntry) error
	Conflicts(ctx context.Context) ([]ConflictEntry, error)
}

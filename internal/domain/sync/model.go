package sync

import (
	"time"

	"praxsync/internal/domain/entity"
)

// StoredEntity текущее серверное состояние сущности.
// Version совпадает с глобальной версией последней записи.
type StoredEntity struct {
	EntityType   entity.Type
	EntityID     string
	ParentID     string
	DataCategory entity.Category
	Fields       entity.Fields
	Version      int64
	ModifiedAt   time.Time
	DeviceID     string
}

// ToPullChange переводит сохраненную сущность в изменение для клиента
func (e *StoredEntity) ToPullChange(op entity.Operation) PullChange {
	return PullChange{
		DataCategory:     e.DataCategory,
		EntityType:       e.EntityType,
		EntityID:         e.EntityID,
		ParentID:         e.ParentID,
		Operation:        op,
		Version:          e.Version,
		Fields:           e.Fields,
		ServerModifiedAt: e.ModifiedAt,
	}
}

// SyncLog запись журнала о принятом пакете
type SyncLog struct {
	SyncID     string
	DeviceID   string
	ReceivedAt time.Time
	Accepted   int
	Conflicts  int
	Errors     int
}

// ServiceConfig настройки сервиса синхронизации
type ServiceConfig struct {
	PageSize    int
	MaxPageSize int
}

// Коды ошибок отдельных изменений в ответе push
const (
	CodeInvalid      = "invalid"
	CodeVersionAhead = "version_ahead"
	CodeStorage      = "storage"
)

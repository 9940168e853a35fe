package sync

import (
	"context"
)

// Repository интерфейс серверного хранилища синхронизации
type Repository interface {
	// CurrentVersion возвращает последнюю выданную глобальную версию
	CurrentVersion(ctx context.Context) (int64, error)

	// GetEntity возвращает текущее состояние сущности или ErrEntityNotFound
	GetEntity(ctx context.Context, entityID string) (*StoredEntity, error)

	// SaveEntity атомарно присваивает следующую версию и сохраняет сущность
	SaveEntity(ctx context.Context, e *StoredEntity) (int64, error)

	// ChangesSince возвращает сущности с версией больше since в порядке версий
	ChangesSince(ctx context.Context, since int64, limit int) ([]*StoredEntity, error)

	// RecordSync сохраняет запись журнала пакетов
	RecordSync(ctx context.Context, log *SyncLog) error
}

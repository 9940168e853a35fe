package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"praxsync/internal/domain/entity"
	syncdomain "praxsync/internal/domain/sync"
)

// SyncRepository хранилище синхронизации в PostgreSQL.
// Глобальная версия хранится в однострочной таблице sync_version: блокировка
// строки упорядочивает писателей, поэтому версии выдаются без пропусков
// и становятся видимыми в порядке возрастания.
type SyncRepository struct {
	storage *Storage
	log     *slog.Logger
}

func NewSyncRepository(storage *Storage, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		storage: storage,
		log:     log.With(slog.String("component", "sync_repository")),
	}
}

func (r *SyncRepository) CurrentVersion(ctx context.Context) (int64, error) {
	var v int64
	err := r.storage.pool.QueryRow(ctx, `SELECT value FROM sync_version WHERE id = 1`).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select current version: %w", err)
	}
	return v, nil
}

func (r *SyncRepository) GetEntity(ctx context.Context, entityID string) (*syncdomain.StoredEntity, error) {
	row := r.storage.pool.QueryRow(ctx, `
		SELECT entity_type, entity_id, parent_id, data_category, fields, version, modified_at, device_id
		FROM sync_entities
		WHERE entity_id = $1`, entityID)

	e, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, syncdomain.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select entity %s: %w", entityID, err)
	}
	return e, nil
}

func (r *SyncRepository) SaveEntity(ctx context.Context, e *syncdomain.StoredEntity) (int64, error) {
	data, err := entity.Canonical(e.Fields)
	if err != nil {
		return 0, fmt.Errorf("encode fields: %w", err)
	}

	tx, err := r.storage.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.log.Warn("rollback failed", slog.Any("error", rbErr))
		}
	}()

	var version int64
	err = tx.QueryRow(ctx, `
		INSERT INTO sync_version (id, value) VALUES (1, 1)
		ON CONFLICT (id) DO UPDATE SET value = sync_version.value + 1
		RETURNING value`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("next version: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sync_entities
			(entity_id, entity_type, parent_id, data_category, fields, version, modified_at, device_id)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		ON CONFLICT (entity_id) DO UPDATE SET
			entity_type = EXCLUDED.entity_type,
			parent_id = EXCLUDED.parent_id,
			data_category = EXCLUDED.data_category,
			fields = EXCLUDED.fields,
			version = EXCLUDED.version,
			modified_at = EXCLUDED.modified_at,
			device_id = EXCLUDED.device_id`,
		e.EntityID, string(e.EntityType), e.ParentID, string(e.DataCategory),
		string(data), version, e.ModifiedAt, e.DeviceID,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert entity %s: %w", e.EntityID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return version, nil
}

func (r *SyncRepository) ChangesSince(ctx context.Context, since int64, limit int) ([]*syncdomain.StoredEntity, error) {
	rows, err := r.storage.pool.Query(ctx, `
		SELECT entity_type, entity_id, parent_id, data_category, fields, version, modified_at, device_id
		FROM sync_entities
		WHERE version > $1
		ORDER BY version
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("select changes: %w", err)
	}
	defer rows.Close()

	var out []*syncdomain.StoredEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return out, nil
}

func (r *SyncRepository) RecordSync(ctx context.Context, l *syncdomain.SyncLog) error {
	_, err := r.storage.pool.Exec(ctx, `
		INSERT INTO sync_log (sync_id, device_id, received_at, accepted, conflicts, errors)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.SyncID, l.DeviceID, l.ReceivedAt, l.Accepted, l.Conflicts, l.Errors,
	)
	if err != nil {
		return fmt.Errorf("insert sync log: %w", err)
	}
	return nil
}

func scanEntity(row pgx.Row) (*syncdomain.StoredEntity, error) {
	var (
		e        syncdomain.StoredEntity
		typ      string
		category string
		data     []byte
	)
	if err := row.Scan(&typ, &e.EntityID, &e.ParentID, &category, &data, &e.Version, &e.ModifiedAt, &e.DeviceID); err != nil {
		return nil, err
	}
	fields, err := entity.DecodeFields(data)
	if err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", e.EntityID, err)
	}
	e.EntityType = entity.Type(typ)
	e.DataCategory = entity.Category(category)
	e.Fields = fields
	e.ModifiedAt = e.ModifiedAt.UTC()
	return &e, nil
}

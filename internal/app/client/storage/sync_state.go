package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"praxsync/internal/app/client/tracking"
	"praxsync/internal/domain/entity"
)

const (
	metaDeviceID     = "device_id"
	metaCursor       = "cursor"
	metaLastPushAt   = "last_push_at"
	metaLastPullAt   = "last_pull_at"
	metaLastSyncAt   = "last_sync_at"
	metaPendingCount = "pending_count"
)

func (s *SQLite) LoadVersions(ctx context.Context) ([]tracking.TrackedEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, entity_type, server_version, last_synced_at
		FROM entity_versions
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения версий: %w", err)
	}
	defer rows.Close()

	var out []tracking.TrackedEntity
	for rows.Next() {
		var e tracking.TrackedEntity
		var syncedAt string
		if err := rows.Scan(&e.EntityID, &e.EntityType, &e.ServerVersion, &syncedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования версии: %w", err)
		}
		e.LastSyncedAt = parseTime(syncedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertVersion пишет версию одной командой; меньшая версия не перезаписывает большую
func (s *SQLite) UpsertVersion(ctx context.Context, e tracking.TrackedEntity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_versions (entity_id, entity_type, server_version, last_synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entity_id) DO UPDATE SET
			entity_type = excluded.entity_type,
			server_version = excluded.server_version,
			last_synced_at = excluded.last_synced_at
		WHERE excluded.server_version >= entity_versions.server_version
	`, e.EntityID, e.EntityType, e.ServerVersion, formatTime(e.LastSyncedAt))
	if err != nil {
		return fmt.Errorf("ошибка сохранения версии: %w", err)
	}
	return nil
}

func (s *SQLite) LoadQueue(ctx context.Context) ([]tracking.QueuedChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, entity_type, entity_id, parent_id, data_category, operation, fields, queued_at
		FROM outbound_queue
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	defer rows.Close()

	var out []tracking.QueuedChange
	for rows.Next() {
		var c tracking.QueuedChange
		var fields, queuedAt string
		if err := rows.Scan(&c.Seq, &c.EntityType, &c.EntityID, &c.ParentID,
			&c.DataCategory, &c.Operation, &fields, &queuedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования очереди: %w", err)
		}
		c.Fields, err = entity.DecodeFields([]byte(fields))
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора полей %s: %w", c.EntityID, err)
		}
		c.QueuedAt = parseTime(queuedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveQueued(ctx context.Context, changes []tracking.QueuedChange) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO outbound_queue
				(entity_id, seq, entity_type, parent_id, data_category, operation, fields, queued_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (entity_id) DO UPDATE SET
				seq = excluded.seq,
				entity_type = excluded.entity_type,
				parent_id = excluded.parent_id,
				data_category = excluded.data_category,
				operation = excluded.operation,
				fields = excluded.fields,
				queued_at = excluded.queued_at
		`)
		if err != nil {
			return fmt.Errorf("ошибка подготовки запроса: %w", err)
		}
		defer stmt.Close()

		for _, c := range changes {
			fields, err := json.Marshal(c.Fields)
			if err != nil {
				return fmt.Errorf("ошибка сериализации полей %s: %w", c.EntityID, err)
			}
			if _, err := stmt.ExecContext(ctx, c.EntityID, c.Seq, c.EntityType, c.ParentID,
				c.DataCategory, c.Operation, string(fields), formatTime(c.QueuedAt)); err != nil {
				return fmt.Errorf("ошибка записи в очередь %s: %w", c.EntityID, err)
			}
		}
		return nil
	})
}

func (s *SQLite) DeleteQueued(ctx context.Context, acks []tracking.Ack) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM outbound_queue WHERE entity_id = ? AND seq <= ?`)
		if err != nil {
			return fmt.Errorf("ошибка подготовки запроса: %w", err)
		}
		defer stmt.Close()

		for _, a := range acks {
			if _, err := stmt.ExecContext(ctx, a.EntityID, a.Seq); err != nil {
				return fmt.Errorf("ошибка удаления из очереди %s: %w", a.EntityID, err)
			}
		}
		return nil
	})
}

// LoadState читает состояние синхронизации. Идентификатор устройства
// создается при первом обращении и дальше не меняется.
func (s *SQLite) LoadState(ctx context.Context) (tracking.State, error) {
	meta, err := s.loadMeta(ctx)
	if err != nil {
		return tracking.State{}, err
	}

	st := tracking.State{
		DeviceID:   meta[metaDeviceID],
		LastPushAt: parseTime(meta[metaLastPushAt]),
		LastPullAt: parseTime(meta[metaLastPullAt]),
		LastSyncAt: parseTime(meta[metaLastSyncAt]),
	}
	if v := meta[metaCursor]; v != "" {
		if st.Cursor, err = strconv.ParseInt(v, 10, 64); err != nil {
			return tracking.State{}, fmt.Errorf("ошибка разбора курсора: %w", err)
		}
	}
	if v := meta[metaPendingCount]; v != "" {
		if st.PendingCount, err = strconv.Atoi(v); err != nil {
			return tracking.State{}, fmt.Errorf("ошибка разбора счетчика: %w", err)
		}
	}

	if st.DeviceID == "" {
		st.DeviceID = uuid.NewString()
		if err := s.setMeta(ctx, map[string]string{metaDeviceID: st.DeviceID}); err != nil {
			return tracking.State{}, err
		}
	}
	return st, nil
}

func (s *SQLite) SaveState(ctx context.Context, st tracking.State) error {
	values := map[string]string{
		metaCursor:       strconv.FormatInt(st.Cursor, 10),
		metaLastPushAt:   formatTime(st.LastPushAt),
		metaLastPullAt:   formatTime(st.LastPullAt),
		metaLastSyncAt:   formatTime(st.LastSyncAt),
		metaPendingCount: strconv.Itoa(st.PendingCount),
	}
	if st.DeviceID != "" {
		values[metaDeviceID] = st.DeviceID
	}
	return s.setMeta(ctx, values)
}

func (s *SQLite) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM sync_meta`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения состояния: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("ошибка сканирования состояния: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (s *SQLite) setMeta(ctx context.Context, values map[string]string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for k, v := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sync_meta (key, value) VALUES (?, ?)
				ON CONFLICT (key) DO UPDATE SET value = excluded.value
			`, k, v)
			if err != nil {
				return fmt.Errorf("ошибка сохранения состояния %s: %w", k, err)
			}
		}
		return nil
	})
}

// AppendConflict добавляет запись и удаляет самые старые сверх лимита
func (s *SQLite) AppendConflict(ctx context.Context, c tracking.ConflictEntry) error {
	if c.RecordedAt.IsZero() {
		c.RecordedAt = s.now().UTC()
	}
	entry, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("ошибка сериализации конфликта: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conflict_log (entity_id, entry, recorded_at) VALUES (?, ?, ?)
		`, c.EntityID, string(entry), formatTime(c.RecordedAt)); err != nil {
			return fmt.Errorf("ошибка записи конфликта: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM conflict_log
			WHERE id NOT IN (SELECT id FROM conflict_log ORDER BY id DESC LIMIT ?)
		`, s.conflictSize); err != nil {
			return fmt.Errorf("ошибка очистки журнала конфликтов: %w", err)
		}
		return nil
	})
}

// Conflicts возвращает журнал, новые записи первыми
func (s *SQLite) Conflicts(ctx context.Context) ([]tracking.ConflictEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry FROM conflict_log ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала конфликтов: %w", err)
	}
	defer rows.Close()

	var out []tracking.ConflictEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("ошибка сканирования конфликта: %w", err)
		}
		var c tracking.ConflictEntry
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("ошибка разбора конфликта: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

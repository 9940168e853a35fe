package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS entity_versions (
	entity_id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	server_version INTEGER NOT NULL,
	last_synced_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outbound_queue (
	entity_id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	entity_type TEXT NOT NULL,
	parent_id TEXT NOT NULL DEFAULT '',
	data_category TEXT NOT NULL,
	operation TEXT NOT NULL,
	fields TEXT NOT NULL,
	queued_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outbound_queue_seq ON outbound_queue(seq);

CREATE TABLE IF NOT EXISTS sync_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conflict_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id TEXT NOT NULL,
	entry TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS patients (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schedules (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// SQLite локальное хранилище клиента: версии сущностей, очередь отправки,
// состояние синхронизации и локальные агрегаты
type SQLite struct {
	db           *sql.DB
	conflictSize int
	now          func() time.Time
}

// Open открывает базу и создает таблицы. conflictSize ограничивает журнал конфликтов.
func Open(path string, conflictSize int) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	// одна запись за раз, иначе WAL вернет SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if conflictSize <= 0 {
		conflictSize = 50
	}
	s := &SQLite{db: db, conflictSize: conflictSize, now: time.Now}

	if err := s.initTables(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}
	return s, nil
}

func (s *SQLite) initTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// inTx выполняет fn в транзакции
func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"praxsync/internal/domain/patient"
)

// documents хранит агрегаты одного вида целиком в JSON
type documents[T any] struct {
	db        *sql.DB
	table     string
	idOf      func(*T) string
	observers patient.Observers[T]
}

func (d *documents[T]) get(ctx context.Context, id string) (*T, error) {
	var raw string
	err := d.db.QueryRowContext(ctx, "SELECT data FROM "+d.table+" WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, patient.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s %s: %w", d.table, id, err)
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s %s: %w", d.table, id, err)
	}
	return &v, nil
}

func (d *documents[T]) list(ctx context.Context) ([]*T, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT data FROM "+d.table+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("ошибка разбора записи: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// put сохраняет агрегат и возвращает предыдущее состояние
func (d *documents[T]) put(ctx context.Context, v *T, at string) (*T, error) {
	if v == nil || d.idOf(v) == "" {
		return nil, patient.ErrInvalidID
	}
	id := d.idOf(v)

	previous, err := d.get(ctx, id)
	if err != nil && !errors.Is(err, patient.ErrNotFound) {
		return nil, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации %s %s: %w", d.table, id, err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO `+d.table+` (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, id, string(data), at)
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения %s %s: %w", d.table, id, err)
	}
	return previous, nil
}

// PatientStore хранилище пациентов в SQLite
type PatientStore struct {
	s    *SQLite
	docs *documents[patient.Patient]
}

// Patients возвращает хранилище пациентов поверх той же базы
func (s *SQLite) Patients() *PatientStore {
	return &PatientStore{
		s: s,
		docs: &documents[patient.Patient]{
			db:    s.db,
			table: "patients",
			idOf:  func(p *patient.Patient) string { return p.ID },
		},
	}
}

func (ps *PatientStore) Get(ctx context.Context, id string) (*patient.Patient, error) {
	return ps.docs.get(ctx, id)
}

func (ps *PatientStore) List(ctx context.Context) ([]*patient.Patient, error) {
	return ps.docs.list(ctx)
}

func (ps *PatientStore) Save(ctx context.Context, p *patient.Patient) error {
	previous, err := ps.docs.put(ctx, p, formatTime(ps.s.now()))
	if err != nil {
		return err
	}
	ps.docs.observers.Notify(ctx, previous, p.Clone())
	return nil
}

func (ps *PatientStore) SaveSilently(ctx context.Context, p *patient.Patient) error {
	_, err := ps.docs.put(ctx, p, formatTime(ps.s.now()))
	return err
}

func (ps *PatientStore) Subscribe(h patient.ChangeHandler[patient.Patient]) func() {
	return ps.docs.observers.Subscribe(h)
}

// ScheduleStore хранилище расписаний в SQLite
type ScheduleStore struct {
	s    *SQLite
	docs *documents[patient.Schedule]
}

// Schedules возвращает хранилище расписаний поверх той же базы
func (s *SQLite) Schedules() *ScheduleStore {
	return &ScheduleStore{
		s: s,
		docs: &documents[patient.Schedule]{
			db:    s.db,
			table: "schedules",
			idOf:  func(sc *patient.Schedule) string { return sc.ID },
		},
	}
}

func (ss *ScheduleStore) Get(ctx context.Context, id string) (*patient.Schedule, error) {
	return ss.docs.get(ctx, id)
}

func (ss *ScheduleStore) List(ctx context.Context) ([]*patient.Schedule, error) {
	return ss.docs.list(ctx)
}

func (ss *ScheduleStore) Save(ctx context.Context, sc *patient.Schedule) error {
	previous, err := ss.docs.put(ctx, sc, formatTime(ss.s.now()))
	if err != nil {
		return err
	}
	ss.docs.observers.Notify(ctx, previous, sc.Clone())
	return nil
}

func (ss *ScheduleStore) SaveSilently(ctx context.Context, sc *patient.Schedule) error {
	_, err := ss.docs.put(ctx, sc, formatTime(ss.s.now()))
	return err
}

func (ss *ScheduleStore) Subscribe(h patient.ChangeHandler[patient.Schedule]) func() {
	return ss.docs.observers.Subscribe(h)
}

var (
	_ patient.Store             = (*PatientStore)(nil)
	_ patient.AvailabilityStore = (*ScheduleStore)(nil)
)

package params

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v3"

	"praxsync/internal/domain/entity"
	"praxsync/internal/utils/fsutil"
)

var (
	ErrNotParameter = errors.New("entity is not parameter data")
	ErrEmptyID      = errors.New("parameter id is required")
)

// file формат YAML-файла параметров одного типа
type file struct {
	Items []item `yaml:"items"`
}

type item struct {
	ID     string         `yaml:"id"`
	Fields map[string]any `yaml:"fields"`
}

// Handler получает состояние параметров типа до и после локальной правки
type Handler func(ctx context.Context, previous, current []entity.Extracted)

// Repository справочники и настройки практики, по одному YAML-файлу на тип
// параметров. Локальные правки (Put) уведомляют подписчиков, входящие
// с сервера (Apply) пишутся молча.
type Repository struct {
	dir string
	log *slog.Logger

	mu    sync.RWMutex
	items map[entity.Type]map[string]entity.Fields

	subMu    sync.Mutex
	nextSub  int
	handlers map[int]Handler
}

// NewRepository создает каталог при необходимости и загружает параметры
func NewRepository(dir string, log *slog.Logger) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога параметров: %w", err)
	}
	r := &Repository{
		dir:      dir,
		log:      log.With(slog.String("component", "params")),
		handlers: make(map[int]Handler),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload перечитывает все файлы параметров с диска
func (r *Repository) Reload() error {
	loaded := make(map[entity.Type]map[string]entity.Fields)
	for _, typ := range entity.ParameterTypes() {
		items, err := r.readFile(typ)
		if err != nil {
			return err
		}
		loaded[typ] = items
	}

	r.mu.Lock()
	r.items = loaded
	r.mu.Unlock()

	r.log.Debug("параметры загружены", slog.String("dir", r.dir))
	return nil
}

// Get возвращает поля параметра
func (r *Repository) Get(typ entity.Type, id string) (entity.Fields, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.items[typ][id]
	if !ok {
		return nil, false
	}
	return f.Clone(), true
}

// List возвращает параметры типа как сущности синхронизации, упорядоченные по id
func (r *Repository) List(typ entity.Type) []entity.Extracted {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return extract(typ, r.items[typ])
}

// Put сохраняет локальную правку и уведомляет подписчиков
func (r *Repository) Put(ctx context.Context, typ entity.Type, id string, fields entity.Fields) error {
	previous, current, err := r.write(typ, id, fields)
	if err != nil {
		return err
	}
	r.notify(ctx, previous, current)
	return nil
}

// Apply сохраняет параметр, полученный с сервера, без уведомлений
func (r *Repository) Apply(e entity.Extracted) error {
	if e.DataCategory != entity.CategoryParameter || e.EntityType.Category() != entity.CategoryParameter {
		return fmt.Errorf("%w: %s", ErrNotParameter, e.EntityType)
	}
	_, _, err := r.write(e.EntityType, e.EntityID, e.Fields.WithoutShape())
	return err
}

// Subscribe добавляет обработчик локальных правок
func (r *Repository) Subscribe(h Handler) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.handlers, id)
			r.subMu.Unlock()
		})
	}
}

func (r *Repository) notify(ctx context.Context, previous, current []entity.Extracted) {
	r.subMu.Lock()
	ids := make([]int, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, r.handlers[id])
	}
	r.subMu.Unlock()

	for _, h := range handlers {
		h(ctx, previous, current)
	}
}

func (r *Repository) write(typ entity.Type, id string, fields entity.Fields) ([]entity.Extracted, []entity.Extracted, error) {
	if typ.Category() != entity.CategoryParameter {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotParameter, typ)
	}
	if id == "" {
		return nil, nil, ErrEmptyID
	}

	if fields == nil {
		fields = entity.Fields{}
	}
	normalized, err := entity.FieldsOf(map[string]any(fields))
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка нормализации параметра %s: %w", id, err)
	}
	delete(normalized, "id")

	r.mu.Lock()
	defer r.mu.Unlock()

	current := make(map[string]entity.Fields, len(r.items[typ])+1)
	for k, v := range r.items[typ] {
		current[k] = v
	}
	previous := extract(typ, r.items[typ])
	current[id] = normalized

	if err := r.writeFile(typ, current); err != nil {
		return nil, nil, err
	}
	if r.items == nil {
		r.items = make(map[entity.Type]map[string]entity.Fields)
	}
	r.items[typ] = current
	return previous, extract(typ, current), nil
}

func (r *Repository) path(typ entity.Type) string {
	return filepath.Join(r.dir, string(typ)+".yaml")
}

func (r *Repository) readFile(typ entity.Type) (map[string]entity.Fields, error) {
	out := make(map[string]entity.Fields)
	data, err := os.ReadFile(r.path(typ))
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", r.path(typ), err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", r.path(typ), err)
	}
	for _, it := range f.Items {
		if it.ID == "" {
			r.log.Warn("параметр без id пропущен", slog.String("type", string(typ)))
			continue
		}
		if it.Fields == nil {
			it.Fields = map[string]any{}
		}
		fields, err := entity.FieldsOf(it.Fields)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора параметра %s: %w", it.ID, err)
		}
		out[it.ID] = fields
	}
	return out, nil
}

func (r *Repository) writeFile(typ entity.Type, items map[string]entity.Fields) error {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	f := file{Items: make([]item, 0, len(ids))}
	for _, id := range ids {
		f.Items = append(f.Items, item{ID: id, Fields: plain(items[id]).(map[string]any)})
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("ошибка сериализации параметров %s: %w", typ, err)
	}
	if err := fsutil.WriteFileAtomic(r.path(typ), data, 0o600); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", r.path(typ), err)
	}
	return nil
}

func extract(typ entity.Type, items map[string]entity.Fields) []entity.Extracted {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]entity.Extracted, 0, len(ids))
	for _, id := range ids {
		fields := items[id].Clone()
		fields[entity.ShapeTagKey] = string(entity.ShapeParameter)
		out = append(out, entity.Extracted{
			EntityType:   typ,
			EntityID:     id,
			DataCategory: entity.CategoryParameter,
			Fields:       fields,
		})
	}
	return out
}

// plain переводит json.Number в int64/float64, чтобы YAML сохранил числа числами
func plain(v any) any {
	switch val := v.(type) {
	case entity.Fields:
		return plain(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = plain(x)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = plain(x)
		}
		return out
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return string(val)
	default:
		return val
	}
}

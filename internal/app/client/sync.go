package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"praxsync/internal/app/client/mapping"
	"praxsync/internal/app/client/params"
	"praxsync/internal/app/client/tracking"
	"praxsync/internal/domain/entity"
	"praxsync/internal/domain/patient"
	syncdomain "praxsync/internal/domain/sync"
)

// SyncState состояние координатора
type SyncState string

const (
	StateIdle    SyncState = "idle"
	StatePushing SyncState = "pushing"
	StatePulling SyncState = "pulling"
	StateError   SyncState = "error"
)

// ParamStore параметрические данные практики
type ParamStore interface {
	Apply(e entity.Extracted) error
	Reload() error
	Subscribe(h params.Handler) func()
}

// AttachmentTransfer передача файлов вложений
type AttachmentTransfer interface {
	UploadAll(ctx context.Context, uploads []syncdomain.PendingUpload) error
	DownloadAll(ctx context.Context, atts []syncdomain.Attachment) error
}

// Dependencies зависимости координатора. Params, Attachments, Monitor и
// Metrics необязательны.
type Dependencies struct {
	Transport   Transport
	Tracker     *tracking.VersionTracker
	Queue       *tracking.OutboundQueue
	Detector    *tracking.ChangeDetector
	Merger      *mapping.Merger
	Patients    patient.Store
	Schedules   patient.AvailabilityStore
	Params      ParamStore
	State       tracking.StateStore
	Attachments AttachmentTransfer
	Monitor     *ConnectivityMonitor
	Metrics     *Metrics
	Log         *slog.Logger
}

// CoordinatorConfig интервалы фоновой синхронизации. После неудачной
// отправки пауза перед повтором удваивается от RetryBackoff до MaxRetryBackoff.
type CoordinatorConfig struct {
	PullInterval    time.Duration
	PushDebounce    time.Duration
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// PushResult итог одного цикла отправки
type PushResult struct {
	Sent      int `json:"sent"`
	Accepted  int `json:"accepted"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
	Uploads   int `json:"uploads"`
	Retained  int `json:"retained"`
}

// PullResult итог одного цикла получения
type PullResult struct {
	Pages   int   `json:"pages"`
	Applied int   `json:"applied"`
	Dropped int   `json:"dropped"`
	Cursor  int64 `json:"cursor"`
}

// SyncStatus снимок состояния синхронизации для отображения
type SyncStatus struct {
	State        SyncState    `json:"state"`
	Message      string       `json:"message,omitempty"`
	Reachability Reachability `json:"reachability"`
	Pending      int          `json:"pending"`
	Cursor       int64        `json:"cursor"`
	DeviceID     string       `json:"deviceId"`
	LastPushAt   time.Time    `json:"lastPushAt"`
	LastPullAt   time.Time    `json:"lastPullAt"`
	LastSyncAt   time.Time    `json:"lastSyncAt"`
}

// Coordinator координатор синхронизации: отправляет очередь локальных
// правок и применяет изменения сервера. Одновременно выполняется не больше
// одного цикла.
type Coordinator struct {
	deps Dependencies
	cfg  CoordinatorConfig
	log  *slog.Logger

	mu        sync.Mutex
	status    SyncState
	message   string
	state     tracking.State
	started   bool
	stopped   bool
	runCtx    context.Context
	cancel    context.CancelFunc
	pushTimer *time.Timer
	failures  int
	retryAt   time.Time
	loopDone  chan struct{}
	unsub     []func()

	now   func() time.Time
	newID func() string
}

// NewCoordinator загружает состояние и подписывается на локальные правки.
// Фоновые таймеры запускаются в Start.
func NewCoordinator(ctx context.Context, deps Dependencies, cfg CoordinatorConfig) (*Coordinator, error) {
	if deps.Transport == nil || deps.Tracker == nil || deps.Queue == nil || deps.Detector == nil ||
		deps.Merger == nil || deps.Patients == nil || deps.Schedules == nil || deps.State == nil {
		return nil, errors.New("не заданы обязательные зависимости координатора")
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = 5 * time.Minute
	}
	if cfg.PushDebounce <= 0 {
		cfg.PushDebounce = 2 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 10 * time.Second
	}
	if cfg.MaxRetryBackoff < cfg.RetryBackoff {
		cfg.MaxRetryBackoff = max(5*time.Minute, cfg.RetryBackoff)
	}

	state, err := deps.State.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки состояния синхронизации: %w", err)
	}
	if state.DeviceID == "" {
		state.DeviceID = uuid.NewString()
	}
	state.PendingCount = deps.Queue.Count()

	c := &Coordinator{
		deps:   deps,
		cfg:    cfg,
		log:    deps.Log.With(slog.String("component", "sync_coordinator")),
		status: StateIdle,
		state:  state,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}

	deps.Metrics.SetPending(state.PendingCount)
	deps.Queue.OnChange(c.onQueueChange)
	c.unsub = append(c.unsub,
		deps.Patients.Subscribe(c.onPatientSaved),
		deps.Schedules.Subscribe(c.onScheduleSaved),
	)
	if deps.Params != nil {
		c.unsub = append(c.unsub, deps.Params.Subscribe(c.onParamsChanged))
	}
	return c, nil
}

// Start запускает проверку связи, периодический pull и автоматическую отправку
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.runCtx, c.cancel = context.WithCancel(ctx)
	c.loopDone = make(chan struct{})
	runCtx, done := c.runCtx, c.loopDone
	c.mu.Unlock()

	if m := c.deps.Monitor; m != nil {
		m.Subscribe(func(r Reachability) {
			c.deps.Metrics.SetReachable(r == ReachabilityReachable)
			if r == ReachabilityReachable {
				c.retryPush()
			}
		})
		m.OnChange(func(r Reachability) {
			if r != ReachabilityReachable {
				return
			}
			c.schedulePush()
			go c.backgroundPull(runCtx)
		})
		m.Start(runCtx)
	}

	if !c.deps.Queue.IsEmpty() {
		c.schedulePush()
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.cfg.PullInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				c.backgroundPull(runCtx)
				c.retryPush()
			}
		}
	}()

	c.log.Info("синхронизация запущена",
		slog.String("device_id", c.DeviceID()),
		slog.Duration("pull_interval", c.cfg.PullInterval),
		slog.Duration("push_debounce", c.cfg.PushDebounce),
	)
}

// Stop останавливает таймеры и отписывается от хранилищ. Запрос, уже
// отправленный на сервер, не прерывается, но его результат игнорируется.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.pushTimer != nil {
		c.pushTimer.Stop()
		c.pushTimer = nil
	}
	cancel, done, unsub := c.cancel, c.loopDone, c.unsub
	c.unsub = nil
	c.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}
	if c.deps.Monitor != nil {
		c.deps.Monitor.Stop()
	}
	if cancel != nil {
		cancel()
		<-done
	}
	c.log.Info("синхронизация остановлена")
}

// DeviceID идентификатор устройства
func (c *Coordinator) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.DeviceID
}

// Status возвращает снимок состояния
func (c *Coordinator) Status() SyncStatus {
	reach := ReachabilityUnknown
	if c.deps.Monitor != nil {
		reach = c.deps.Monitor.State()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return SyncStatus{
		State:        c.status,
		Message:      c.message,
		Reachability: reach,
		Pending:      c.deps.Queue.Count(),
		Cursor:       c.state.Cursor,
		DeviceID:     c.state.DeviceID,
		LastPushAt:   c.state.LastPushAt,
		LastPullAt:   c.state.LastPullAt,
		LastSyncAt:   c.state.LastSyncAt,
	}
}

// Conflicts журнал конфликтов, новые первыми
func (c *Coordinator) Conflicts(ctx context.Context) ([]tracking.ConflictEntry, error) {
	return c.deps.State.Conflicts(ctx)
}

// Discard убирает изменения из очереди без отправки и возвращает число
// удаленных записей. Нужен для правок, которые сервер раз за разом отклоняет.
func (c *Coordinator) Discard(ctx context.Context, entityIDs ...string) (int, error) {
	want := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		want[id] = struct{}{}
	}
	var found []string
	for _, item := range c.deps.Queue.Snapshot() {
		if _, ok := want[item.EntityID]; ok {
			found = append(found, item.EntityID)
		}
	}
	if len(found) == 0 {
		return 0, nil
	}

	if err := c.deps.Queue.MarkSynced(ctx, found...); err != nil {
		return 0, fmt.Errorf("ошибка удаления из очереди: %w", err)
	}
	c.log.Warn("изменения удалены из очереди без отправки", slog.Any("entity_ids", found))
	return len(found), c.saveState(ctx)
}

// Sync выполняет отправку, затем получение изменений
func (c *Coordinator) Sync(ctx context.Context) (*PushResult, *PullResult, error) {
	pushed, err := c.Push(ctx)
	if err != nil {
		return pushed, nil, err
	}
	pulled, err := c.Pull(ctx)
	return pushed, pulled, err
}

// begin переводит координатор из idle (или error) в состояние цикла
func (c *Coordinator) begin(next SyncState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if c.status == StatePushing || c.status == StatePulling {
		return ErrSyncInProgress
	}
	c.status = next
	c.message = ""
	return nil
}

func (c *Coordinator) end(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.status = StateError
		c.message = err.Error()
		return
	}
	c.status = StateIdle
	c.message = ""
}

func (c *Coordinator) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Push отправляет снимок очереди одним пакетом
func (c *Coordinator) Push(ctx context.Context) (*PushResult, error) {
	if err := c.begin(StatePushing); err != nil {
		return nil, err
	}
	result, err := c.push(ctx)
	if errors.Is(err, ErrStopped) {
		return nil, err
	}
	c.end(err)
	c.deps.Metrics.PushDone(err, float64(c.now().Unix()))
	c.notePushOutcome(result, err)
	return result, err
}

func (c *Coordinator) push(ctx context.Context) (*PushResult, error) {
	snapshot := c.deps.Queue.Snapshot()
	result := &PushResult{}
	if len(snapshot) == 0 {
		return result, nil
	}

	c.mu.Lock()
	deviceID, cursor := c.state.DeviceID, c.state.Cursor
	c.mu.Unlock()

	req := syncdomain.PushRequest{
		DeviceID:        deviceID,
		SyncID:          c.newID(),
		ClientTimestamp: c.now(),
		LastPullVersion: cursor,
		Changes:         make([]syncdomain.PushChange, 0, len(snapshot)),
	}
	items := make(map[string]tracking.QueuedChange, len(snapshot))
	var maxSeq int64
	for _, item := range snapshot {
		op := item.Operation
		if op == entity.OperationCreate {
			op = c.deps.Tracker.Operation(item.EntityID)
		}
		req.Changes = append(req.Changes, syncdomain.PushChange{
			DataCategory:     item.DataCategory,
			EntityType:       item.EntityType,
			EntityID:         item.EntityID,
			ParentID:         item.ParentID,
			Operation:        op,
			Version:          c.deps.Tracker.Version(item.EntityID),
			Fields:           item.Fields,
			ClientModifiedAt: item.QueuedAt,
		})
		items[item.EntityID] = item
		if item.Seq > maxSeq {
			maxSeq = item.Seq
		}
	}
	result.Sent = len(req.Changes)

	c.log.Info("отправка изменений", slog.String("sync_id", req.SyncID), slog.Int("changes", result.Sent))

	resp, err := c.deps.Transport.Push(context.WithoutCancel(ctx), req)
	if c.isStopped() {
		return nil, ErrStopped
	}
	if err != nil {
		c.log.Warn("ошибка отправки, изменения остаются в очереди", slog.Any("error", err))
		result.Retained = result.Sent
		return result, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	var errs []error
	var acked []tracking.QueuedChange

	for _, a := range resp.Accepted {
		item, ok := items[a.EntityID]
		if !ok {
			continue
		}
		if err := c.deps.Tracker.UpdateVersion(ctx, a.EntityID, item.EntityType, a.ServerVersion, a.ServerModifiedAt); err != nil {
			errs = append(errs, err)
			continue
		}
		acked = append(acked, item)
		result.Accepted++
	}

	for _, conflict := range resp.Conflicts {
		item, ok := items[conflict.EntityID]
		if !ok {
			continue
		}
		result.Conflicts++
		done, err := c.resolveConflict(ctx, item, conflict)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			acked = append(acked, item)
		}
	}

	for _, ce := range resp.Errors {
		result.Errors++
		c.log.Warn("сервер отклонил изменение",
			slog.String("entity_id", ce.EntityID),
			slog.String("code", ce.Code),
			slog.String("message", ce.Message),
		)
	}

	if err := c.deps.Queue.Acknowledge(ctx, acked...); err != nil {
		errs = append(errs, err)
		acked = nil
	}
	result.Retained = result.Sent - len(acked)

	if len(resp.PendingUploads) > 0 && c.deps.Attachments != nil {
		result.Uploads = len(resp.PendingUploads)
		if err := c.deps.Attachments.UploadAll(ctx, resp.PendingUploads); err != nil {
			c.log.Warn("не все вложения загружены", slog.Any("error", err))
		}
	}

	now := c.now()
	c.mu.Lock()
	c.state.LastPushAt = now
	c.state.LastSyncAt = now
	c.state.PendingCount = c.deps.Queue.Count()
	c.mu.Unlock()
	if err := c.saveState(ctx); err != nil {
		errs = append(errs, err)
	}

	if c.deps.Queue.HasNewerThan(maxSeq) {
		c.schedulePush()
	}

	c.log.Info("отправка завершена",
		slog.Int("accepted", result.Accepted),
		slog.Int("conflicts", result.Conflicts),
		slog.Int("errors", result.Errors),
		slog.Int("retained", result.Retained),
		slog.Int("pending", c.deps.Queue.Count()),
	)
	return result, errors.Join(errs...)
}

// resolveConflict обрабатывает конфликт и сообщает, можно ли убрать запись из очереди
func (c *Coordinator) resolveConflict(ctx context.Context, item tracking.QueuedChange, conflict syncdomain.ConflictRecord) (bool, error) {
	entityType, category := conflict.EntityType, conflict.DataCategory
	if entityType == "" {
		entityType = item.EntityType
	}
	if category == "" {
		category = item.DataCategory
	}

	c.log.Warn("конфликт синхронизации",
		slog.String("entity_id", conflict.EntityID),
		slog.String("entity_type", string(entityType)),
		slog.String("data_category", string(category)),
		slog.String("resolution", string(conflict.Resolution)),
		slog.Int64("client_version", conflict.ClientVersion),
		slog.Int64("server_version", conflict.ServerVersion),
		slog.Any("client_data", conflict.ClientData),
		slog.Any("server_data", conflict.ServerData),
	)
	c.deps.Metrics.Conflict(string(conflict.Resolution))

	entry := tracking.ConflictEntry{
		EntityID:      conflict.EntityID,
		EntityType:    entityType,
		Resolution:    conflict.Resolution,
		ClientVersion: conflict.ClientVersion,
		ServerVersion: conflict.ServerVersion,
		ClientData:    conflict.ClientData,
		ServerData:    conflict.ServerData,
		RecordedAt:    c.now(),
	}
	if err := c.deps.State.AppendConflict(ctx, entry); err != nil {
		c.log.Warn("не удалось записать конфликт в журнал", slog.Any("error", err))
	}

	switch {
	case conflict.Resolution == syncdomain.ResolutionServerWins && category != entity.CategoryTransactional:
		if conflict.ServerData != nil {
			server := entity.Extracted{
				EntityType:   entityType,
				EntityID:     item.EntityID,
				ParentID:     item.ParentID,
				DataCategory: category,
				Fields:       conflict.ServerData,
			}
			if err := c.applyEntity(ctx, server); err != nil && !errors.Is(err, mapping.ErrUndecodable) {
				return false, fmt.Errorf("применение серверной версии %s: %w", item.EntityID, err)
			}
		}
		if err := c.deps.Tracker.UpdateVersion(ctx, item.EntityID, entityType, conflict.ServerVersion, c.now()); err != nil {
			return false, err
		}
		return true, nil

	case conflict.Resolution == syncdomain.ResolutionClientWins:
		if err := c.deps.Tracker.UpdateVersion(ctx, item.EntityID, entityType, conflict.ServerVersion, c.now()); err != nil {
			return false, err
		}
		return true, nil

	default:
		c.log.Warn("разрешение конфликта не применено, изменение остается в очереди",
			slog.String("entity_id", conflict.EntityID),
			slog.String("resolution", string(conflict.Resolution)),
		)
		return false, nil
	}
}

// Pull забирает все страницы изменений после сохраненного курсора.
// Курсор сохраняется только после последней страницы.
func (c *Coordinator) Pull(ctx context.Context) (*PullResult, error) {
	if err := c.begin(StatePulling); err != nil {
		return nil, err
	}
	result, err := c.pull(ctx)
	if errors.Is(err, ErrStopped) {
		return nil, err
	}
	c.end(err)
	applied := 0
	if result != nil {
		applied = result.Applied
	}
	c.deps.Metrics.PullDone(err, applied, float64(c.now().Unix()))
	return result, err
}

func (c *Coordinator) pull(ctx context.Context) (*PullResult, error) {
	c.mu.Lock()
	cursor := c.state.Cursor
	c.mu.Unlock()

	result := &PullResult{Cursor: cursor}
	for {
		resp, err := c.deps.Transport.Pull(context.WithoutCancel(ctx), cursor)
		if c.isStopped() {
			return nil, ErrStopped
		}
		if err != nil {
			c.log.Warn("ошибка получения изменений", slog.Int64("cursor", cursor), slog.Any("error", err))
			return result, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		result.Pages++

		var last int64
		for _, change := range resp.Changes {
			if err := c.applyPulled(ctx, change); err != nil {
				if !errors.Is(err, mapping.ErrUndecodable) {
					return result, fmt.Errorf("применение изменения %s: %w", change.EntityID, err)
				}
				result.Dropped++
				c.log.Warn("изменение пропущено",
					slog.String("entity_id", change.EntityID),
					slog.String("entity_type", string(change.EntityType)),
					slog.Any("error", err),
				)
			} else {
				result.Applied++
			}
			if change.Version > last {
				last = change.Version
			}
		}

		if resp.HasMore {
			next := last
			if resp.NextVersion != nil {
				next = *resp.NextVersion
			}
			if next <= cursor {
				return result, fmt.Errorf("сервер не продвинул курсор: %d", cursor)
			}
			cursor = next
			continue
		}

		if resp.NextVersion != nil {
			cursor = max(cursor, *resp.NextVersion)
		} else {
			cursor = max(cursor, resp.CurrentVersion, last)
		}
		break
	}

	now := c.now()
	c.mu.Lock()
	c.state.Cursor = cursor
	c.state.LastPullAt = now
	c.state.LastSyncAt = now
	c.mu.Unlock()
	if err := c.saveState(ctx); err != nil {
		return result, err
	}
	result.Cursor = cursor

	c.log.Info("изменения получены",
		slog.Int("applied", result.Applied),
		slog.Int("dropped", result.Dropped),
		slog.Int64("cursor", cursor),
	)
	return result, nil
}

// applyPulled применяет одно изменение сервера и фиксирует его версию
func (c *Coordinator) applyPulled(ctx context.Context, change syncdomain.PullChange) error {
	if err := c.applyEntity(ctx, change.Entity()); err != nil {
		return err
	}
	if err := c.deps.Tracker.UpdateFromPull(ctx, change); err != nil {
		return err
	}
	if len(change.Attachments) > 0 && c.deps.Attachments != nil {
		if err := c.deps.Attachments.DownloadAll(ctx, change.Attachments); err != nil {
			c.log.Warn("не все вложения скачаны", slog.String("entity_id", change.EntityID), slog.Any("error", err))
		}
	}
	return nil
}

// applyEntity пишет сущность в локальное хранилище без уведомления подписчиков
func (c *Coordinator) applyEntity(ctx context.Context, e entity.Extracted) error {
	switch e.DataCategory {
	case entity.CategoryParameter:
		return c.applyParameter(e)
	case entity.CategoryMasterData, entity.CategoryTransactional:
		if e.EntityType == entity.TypeAvailability {
			return c.applySlot(ctx, e)
		}
		return c.applyPatientEntity(ctx, e)
	default:
		return fmt.Errorf("%w: unknown data category %q", mapping.ErrUndecodable, e.DataCategory)
	}
}

func (c *Coordinator) applyParameter(e entity.Extracted) error {
	if c.deps.Params == nil {
		return fmt.Errorf("%w: parameter store is not configured", mapping.ErrUndecodable)
	}
	if err := c.deps.Params.Apply(e); err != nil {
		if errors.Is(err, params.ErrNotParameter) || errors.Is(err, params.ErrEmptyID) {
			return fmt.Errorf("%w: %v", mapping.ErrUndecodable, err)
		}
		return err
	}
	return c.deps.Params.Reload()
}

func (c *Coordinator) applySlot(ctx context.Context, e entity.Extracted) error {
	if e.ParentID == "" {
		return fmt.Errorf("%w: availability %s without schedule", mapping.ErrUndecodable, e.EntityID)
	}
	s, err := c.deps.Schedules.Get(ctx, e.ParentID)
	if errors.Is(err, patient.ErrNotFound) {
		s = &patient.Schedule{ID: e.ParentID}
	} else if err != nil {
		return err
	}
	if err := c.deps.Merger.MergeSchedule(s, e); err != nil {
		return err
	}
	return c.deps.Schedules.SaveSilently(ctx, s)
}

func (c *Coordinator) applyPatientEntity(ctx context.Context, e entity.Extracted) error {
	owner := e.ParentID
	if owner == "" && e.EntityType == entity.TypePatient {
		owner = e.EntityID
	}
	if owner == "" {
		return fmt.Errorf("%w: %s %s without owning patient", mapping.ErrUndecodable, e.EntityType, e.EntityID)
	}

	p, err := c.deps.Patients.Get(ctx, owner)
	switch {
	case errors.Is(err, patient.ErrNotFound) && e.EntityType == entity.TypePatient:
		p, err = c.deps.Merger.NewPatient(e)
		if err != nil {
			return err
		}
		return c.deps.Patients.SaveSilently(ctx, p)
	case errors.Is(err, patient.ErrNotFound):
		p = &patient.Patient{ID: owner}
	case err != nil:
		return err
	}

	if err := c.deps.Merger.MergePatient(p, e); err != nil {
		return err
	}
	return c.deps.Patients.SaveSilently(ctx, p)
}

func (c *Coordinator) saveState(ctx context.Context) error {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if err := c.deps.State.SaveState(ctx, st); err != nil {
		return fmt.Errorf("ошибка сохранения состояния синхронизации: %w", err)
	}
	return nil
}

func (c *Coordinator) onQueueChange(count int) {
	c.mu.Lock()
	c.state.PendingCount = count
	c.mu.Unlock()
	c.deps.Metrics.SetPending(count)
}

func (c *Coordinator) onPatientSaved(ctx context.Context, previous, current *patient.Patient) {
	changes, err := c.deps.Detector.DetectPatient(previous, current)
	c.enqueue(ctx, changes, err)
}

func (c *Coordinator) onScheduleSaved(ctx context.Context, previous, current *patient.Schedule) {
	changes, err := c.deps.Detector.DetectSchedule(previous, current)
	c.enqueue(ctx, changes, err)
}

func (c *Coordinator) onParamsChanged(ctx context.Context, previous, current []entity.Extracted) {
	changes, err := c.deps.Detector.DetectEntities(previous, current)
	c.enqueue(ctx, changes, err)
}

func (c *Coordinator) enqueue(ctx context.Context, changes []tracking.Change, err error) {
	if err != nil {
		c.log.Error("ошибка определения изменений", slog.Any("error", err))
		return
	}
	if len(changes) == 0 {
		return
	}
	if err := c.deps.Queue.EnqueueAll(ctx, changes); err != nil {
		c.log.Error("ошибка постановки изменений в очередь", slog.Any("error", err))
		return
	}
	c.schedulePush()
}

// schedulePush откладывает отправку на PushDebounce; повторный вызов переносит таймер
func (c *Coordinator) schedulePush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.stopped {
		return
	}
	c.armPush(c.cfg.PushDebounce)
}

// armPush взводит таймер отправки, заменяя прежний. Вызывается под c.mu.
func (c *Coordinator) armPush(d time.Duration) {
	if c.pushTimer != nil {
		c.pushTimer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		c.mu.Lock()
		if c.pushTimer == t {
			c.pushTimer = nil
		}
		c.mu.Unlock()
		c.autoPush()
	})
	c.pushTimer = t
}

// notePushOutcome считает неудачные циклы подряд. Цикл неудачен, если
// транспорт вернул ошибку или часть отправленных изменений осталась в очереди.
func (c *Coordinator) notePushOutcome(result *PushResult, err error) {
	failed := err != nil || (result != nil && result.Retained > 0)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !failed {
		c.failures = 0
		c.retryAt = time.Time{}
		return
	}
	c.failures++
	delay := retryDelay(c.cfg.RetryBackoff, c.cfg.MaxRetryBackoff, c.failures)
	c.retryAt = time.Now().Add(delay)
	if c.started && !c.stopped && c.pushTimer == nil {
		c.log.Debug("повторная отправка запланирована",
			slog.Int("failures", c.failures),
			slog.Duration("delay", delay),
		)
		c.armPush(delay)
	}
}

// retryPush ставит отправку непустой очереди, если таймер не взведен
// и пауза после последней неудачи истекла
func (c *Coordinator) retryPush() {
	if c.deps.Queue.IsEmpty() {
		return
	}
	if m := c.deps.Monitor; m != nil && m.State() == ReachabilityUnreachable {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.stopped || c.pushTimer != nil || c.status == StatePushing {
		return
	}
	if time.Now().Before(c.retryAt) {
		return
	}
	c.armPush(c.cfg.PushDebounce)
}

// retryDelay пауза после failures неудачных отправок подряд
func retryDelay(base, limit time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	d := base
	for i := 1; i < failures && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

func (c *Coordinator) autoPush() {
	c.mu.Lock()
	ctx := c.runCtx
	stopped := c.stopped
	c.mu.Unlock()
	if stopped || ctx == nil {
		return
	}
	if m := c.deps.Monitor; m != nil && m.State() == ReachabilityUnreachable {
		c.log.Debug("сервер недоступен, отправка отложена")
		return
	}

	_, err := c.Push(ctx)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		c.schedulePush()
	case errors.Is(err, ErrStopped):
	case err != nil:
		c.log.Warn("автоматическая отправка не удалась", slog.Any("error", err))
	}
}

func (c *Coordinator) backgroundPull(ctx context.Context) {
	if m := c.deps.Monitor; m != nil && m.State() == ReachabilityUnreachable {
		return
	}
	_, err := c.Pull(ctx)
	switch {
	case err == nil, errors.Is(err, ErrStopped), errors.Is(err, ErrSyncInProgress):
	default:
		c.log.Warn("периодическое получение изменений не удалось", slog.Any("error", err))
	}
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	gosync "sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"

	"praxsync/internal/app/client/attachments"
	"praxsync/internal/app/client/config"
	"praxsync/internal/app/client/mapping"
	"praxsync/internal/app/client/params"
	"praxsync/internal/app/client/storage"
	"praxsync/internal/app/client/tracking"
	"praxsync/internal/domain/entity"
	"praxsync/internal/domain/patient"
	"praxsync/internal/utils/fsutil"
)

// App клиентское приложение: локальное хранилище, параметры практики
// и координатор синхронизации
type App struct {
	config      *config.Config
	log         *slog.Logger
	db          *storage.SQLite
	patients    *storage.PatientStore
	schedules   *storage.ScheduleStore
	params      *params.Repository
	httpClient  *HTTPClient
	monitor     *ConnectivityMonitor
	coordinator *Coordinator
	registry    *prometheus.Registry

	metricsServer *http.Server
	wg            gosync.WaitGroup
	cancel        context.CancelFunc
	closeOnce     gosync.Once
}

type appKey struct{}

// WithApp кладет приложение в контекст команды
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// AppFromContext достает приложение из контекста команды
func AppFromContext(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey{}).(*App)
	if !ok || app == nil {
		return nil, errors.New("приложение не инициализировано")
	}
	return app, nil
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	db, err := storage.Open(cfg.DataPath, cfg.ConflictLogSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия локального хранилища: %w", err)
	}

	app, err := build(ctx, cfg, log, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger, db *storage.SQLite) (*App, error) {
	tracker, err := tracking.NewVersionTracker(ctx, db, log)
	if err != nil {
		return nil, err
	}
	queue, err := tracking.NewOutboundQueue(ctx, db, log)
	if err != nil {
		return nil, err
	}

	paramRepo, err := params.NewRepository(cfg.ParamsDir, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки параметров: %w", err)
	}

	files, err := attachments.NewStore(cfg.AttachmentsDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации хранилища вложений: %w", err)
	}
	transfer := attachments.NewTransfer(files, &http.Client{Timeout: 2 * time.Minute}, log)

	httpCl, err := NewHTTPClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации HTTP клиента: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := NewMetrics(registry)

	app := &App{
		config:     cfg,
		log:        log,
		db:         db,
		patients:   db.Patients(),
		schedules:  db.Schedules(),
		params:     paramRepo,
		httpClient: httpCl,
		monitor:    NewConnectivityMonitor(httpCl, cfg.ProbeInterval, log),
		registry:   registry,
	}

	if token, err := app.GetToken(); err == nil {
		httpCl.SetToken(token)
		log.Debug("Токен загружен из файла")
	}

	extractor := mapping.NewExtractor()
	app.coordinator, err = NewCoordinator(ctx, Dependencies{
		Transport:   httpCl,
		Tracker:     tracker,
		Queue:       queue,
		Detector:    tracking.NewChangeDetector(extractor, tracker),
		Merger:      mapping.NewMerger(log),
		Patients:    app.patients,
		Schedules:   app.schedules,
		Params:      paramRepo,
		State:       db,
		Attachments: transfer,
		Monitor:     app.monitor,
		Metrics:     metrics,
		Log:         log,
	}, CoordinatorConfig{
		PullInterval:    cfg.PullInterval,
		PushDebounce:    cfg.PushDebounce,
		RetryBackoff:    cfg.RetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Run запускает фоновую синхронизацию и блокируется до сигнала завершения
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	defer a.Shutdown()

	go a.handleSignals(ctx)

	a.coordinator.Start(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.params.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("Ошибка отслеживания параметров", slog.Any("error", err))
		}
	}()

	if a.config.MetricsAddress != "" {
		a.startMetricsServer()
	}

	a.log.Info("Клиент запущен",
		slog.String("server", a.config.ServerAddress),
		slog.String("env", a.config.Env),
		slog.String("device_id", a.coordinator.DeviceID()),
	)

	<-ctx.Done()
	return nil
}

func (a *App) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.metricsServer = &http.Server{
		Addr:              a.config.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.log.Info("Метрики доступны", slog.String("address", a.config.MetricsAddress))
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Ошибка сервера метрик", slog.Any("error", err))
		}
	}()
}

func (a *App) handleSignals(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.log.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
		if a.cancel != nil {
			a.cancel()
		}
	case <-ctx.Done():
	}
}

// Shutdown останавливает синхронизацию и закрывает хранилище
func (a *App) Shutdown() {
	a.closeOnce.Do(func() {
		a.log.Debug("Завершение работы клиента...")

		if a.cancel != nil {
			a.cancel()
		}
		a.coordinator.Stop()

		if a.metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.metricsServer.Shutdown(ctx); err != nil {
				a.log.Warn("Ошибка остановки сервера метрик", slog.Any("error", err))
			}
			cancel()
		}

		a.wg.Wait()
		if err := a.db.Close(); err != nil {
			a.log.Warn("Ошибка закрытия хранилища", slog.Any("error", err))
		}
		a.log.Debug("Клиент завершил работу")
	})
}

// GetToken возвращает сохраненный токен доступа
func (a *App) GetToken() (string, error) {
	tokenBytes, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("токен не найден. Выполните: praxsync token set")
		}
		return "", fmt.Errorf("ошибка чтения токена: %w", err)
	}
	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return "", errors.New("файл токена пуст")
	}
	return token, nil
}

// SaveToken сохраняет токен доступа к серверу
func (a *App) SaveToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("токен не может быть пустым")
	}
	if err := fsutil.WriteFileAtomic(a.config.TokenPath, []byte(token), 0o600); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}
	a.httpClient.SetToken(token)
	return nil
}

// CheckConnection проверяет доступность сервера
func (a *App) CheckConnection(ctx context.Context) Reachability {
	return a.monitor.Check(ctx)
}

// Push отправляет очередь локальных изменений
func (a *App) Push(ctx context.Context) (*PushResult, error) {
	return a.coordinator.Push(ctx)
}

// Pull получает изменения с сервера
func (a *App) Pull(ctx context.Context) (*PullResult, error) {
	return a.coordinator.Pull(ctx)
}

// Sync выполняет полный цикл синхронизации
func (a *App) Sync(ctx context.Context) (*PushResult, *PullResult, error) {
	return a.coordinator.Sync(ctx)
}

func (a *App) SyncStatus() SyncStatus {
	return a.coordinator.Status()
}

func (a *App) Conflicts(ctx context.Context) ([]tracking.ConflictEntry, error) {
	return a.coordinator.Conflicts(ctx)
}

// Discard убирает изменения сущностей из очереди отправки
func (a *App) Discard(ctx context.Context, entityIDs ...string) (int, error) {
	return a.coordinator.Discard(ctx, entityIDs...)
}

// ImportPatient читает агрегат пациента из JSON файла и сохраняет его.
// Сохранение ставит изменившиеся сущности в очередь отправки.
func (a *App) ImportPatient(ctx context.Context, path string) (*patient.Patient, error) {
	var p patient.Patient
	if err := readJSON(path, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, fmt.Errorf("в файле %s не указан id пациента", path)
	}
	p.UpdatedAt = time.Now().UTC()
	if err := a.patients.Save(ctx, &p); err != nil {
		return nil, fmt.Errorf("ошибка сохранения пациента: %w", err)
	}
	return &p, nil
}

// ImportSchedule читает расписание из JSON файла и сохраняет его
func (a *App) ImportSchedule(ctx context.Context, path string) (*patient.Schedule, error) {
	var s patient.Schedule
	if err := readJSON(path, &s); err != nil {
		return nil, err
	}
	if s.ID == "" {
		return nil, fmt.Errorf("в файле %s не указан id расписания", path)
	}
	if err := a.schedules.Save(ctx, &s); err != nil {
		return nil, fmt.Errorf("ошибка сохранения расписания: %w", err)
	}
	return &s, nil
}

func (a *App) GetPatient(ctx context.Context, id string) (*patient.Patient, error) {
	return a.patients.Get(ctx, id)
}

func (a *App) ListPatients(ctx context.Context) ([]*patient.Patient, error) {
	return a.patients.List(ctx)
}

func (a *App) ListSchedules(ctx context.Context) ([]*patient.Schedule, error) {
	return a.schedules.List(ctx)
}

// ListParams возвращает параметры практики, по всем типам, если typ пуст
func (a *App) ListParams(typ entity.Type) []entity.Extracted {
	if typ != "" {
		return a.params.List(typ)
	}
	var out []entity.Extracted
	for _, t := range entity.ParameterTypes() {
		out = append(out, a.params.List(t)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EntityType != out[j].EntityType {
			return out[i].EntityType < out[j].EntityType
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

// SetParam изменяет параметр практики и ставит его в очередь отправки
func (a *App) SetParam(ctx context.Context, typ entity.Type, id string, fields entity.Fields) error {
	return a.params.Put(ctx, typ, id, fields)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ошибка чтения файла: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("ошибка разбора %s: %w", path, err)
	}
	return nil
}

package client

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	syncdomain "praxsync/internal/domain/sync"
)

// Reachability доступность сервера синхронизации
type Reachability string

const (
	ReachabilityUnknown     Reachability = "unknown"
	ReachabilityReachable   Reachability = "reachable"
	ReachabilityUnreachable Reachability = "unreachable"
)

// StatusProber запрос статуса сервера, используемый как проверка связи
type StatusProber interface {
	Status(ctx context.Context) (*syncdomain.StatusResponse, error)
}

// ConnectivityMonitor периодически проверяет доступность сервера.
// Любая ошибка запроса статуса означает unreachable, повторов нет.
type ConnectivityMonitor struct {
	prober   StatusProber
	interval time.Duration
	log      *slog.Logger

	mu        sync.RWMutex
	state     Reachability
	onProbe   []func(Reachability)
	onChange  []func(Reachability)
	cancel    context.CancelFunc
	done      chan struct{}
	lastProbe time.Time
}

func NewConnectivityMonitor(prober StatusProber, interval time.Duration, log *slog.Logger) *ConnectivityMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ConnectivityMonitor{
		prober:   prober,
		interval: interval,
		log:      log.With(slog.String("component", "connectivity")),
		state:    ReachabilityUnknown,
	}
}

// Subscribe вызывается после каждой проверки
func (m *ConnectivityMonitor) Subscribe(fn func(Reachability)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProbe = append(m.onProbe, fn)
}

// OnChange вызывается только при смене состояния
func (m *ConnectivityMonitor) OnChange(fn func(Reachability)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// State текущее состояние
func (m *ConnectivityMonitor) State() Reachability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Check выполняет одну проверку и уведомляет подписчиков
func (m *ConnectivityMonitor) Check(ctx context.Context) Reachability {
	next := ReachabilityReachable
	if _, err := m.prober.Status(ctx); err != nil {
		next = ReachabilityUnreachable
		m.log.Debug("сервер недоступен", slog.Any("error", err))
	}

	m.mu.Lock()
	previous := m.state
	m.state = next
	m.lastProbe = time.Now()
	onProbe := append([]func(Reachability){}, m.onProbe...)
	var onChange []func(Reachability)
	if previous != next {
		onChange = append(onChange, m.onChange...)
	}
	m.mu.Unlock()

	if previous != next {
		m.log.Info("доступность сервера изменилась",
			slog.String("from", string(previous)),
			slog.String("to", string(next)),
		)
	}
	for _, fn := range onProbe {
		fn(next)
	}
	for _, fn := range onChange {
		fn(next)
	}
	return next
}

// Start проверяет сервер сразу и затем с заданным интервалом до Stop
func (m *ConnectivityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.Check(ctx)

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Stop останавливает периодическую проверку
func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

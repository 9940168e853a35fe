package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics метрики синхронизации клиента. Нулевой указатель допустим:
// все методы тогда ничего не делают.
type Metrics struct {
	pending     prometheus.Gauge
	reachable   prometheus.Gauge
	pushes      *prometheus.CounterVec
	pulls       *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	pulled      prometheus.Counter
	lastSuccess *prometheus.GaugeVec
}

// NewMetrics создает метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "praxsync",
			Name:      "pending_changes",
			Help:      "Number of local changes waiting to be pushed.",
		}),
		reachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "praxsync",
			Name:      "server_reachable",
			Help:      "1 if the last status probe succeeded, 0 otherwise.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "praxsync",
			Name:      "push_total",
			Help:      "Push cycles by result.",
		}, []string{"result"}),
		pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "praxsync",
			Name:      "pull_total",
			Help:      "Pull cycles by result.",
		}, []string{"result"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "praxsync",
			Name:      "conflicts_total",
			Help:      "Conflicts reported by the server by resolution.",
		}, []string{"resolution"}),
		pulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "praxsync",
			Name:      "pulled_changes_total",
			Help:      "Server changes applied locally.",
		}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "praxsync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle by direction.",
		}, []string{"direction"}),
	}
	if reg != nil {
		reg.MustRegister(m.pending, m.reachable, m.pushes, m.pulls, m.conflicts, m.pulled, m.lastSuccess)
	}
	return m
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *Metrics) SetReachable(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.reachable.Set(1)
		return
	}
	m.reachable.Set(0)
}

func (m *Metrics) PushDone(err error, unixTime float64) {
	if m == nil {
		return
	}
	if err != nil {
		m.pushes.WithLabelValues("error").Inc()
		return
	}
	m.pushes.WithLabelValues("ok").Inc()
	m.lastSuccess.WithLabelValues("push").Set(unixTime)
}

func (m *Metrics) PullDone(err error, applied int, unixTime float64) {
	if m == nil {
		return
	}
	m.pulled.Add(float64(applied))
	if err != nil {
		m.pulls.WithLabelValues("error").Inc()
		return
	}
	m.pulls.WithLabelValues("ok").Inc()
	m.lastSuccess.WithLabelValues("pull").Set(unixTime)
}

func (m *Metrics) Conflict(resolution string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(resolution).Inc()
}

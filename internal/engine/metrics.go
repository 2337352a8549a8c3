package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scheduler's Prometheus instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ticks        prometheus.Counter
	tickDuration prometheus.Histogram
	running      prometheus.Gauge
	transitions  *prometheus.CounterVec
	relayWrites  *prometheus.CounterVec
	conflicts    prometheus.Counter
}

// NewMetrics registers the instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "pool_scheduler_ticks_total",
			Help: "Scheduler ticks executed",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_scheduler_tick_duration_seconds",
			Help:    "Time spent in one scheduler tick",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Name: "pool_timers_running",
			Help: "Timers currently in the running state",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_timer_transitions_total",
			Help: "Timer runtime transitions by target state",
		}, []string{"state"}),
		relayWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_relay_writes_total",
			Help: "Relay writes by result",
		}, []string{"relay", "result"}),
		conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "pool_relay_conflicts_total",
			Help: "Relay intents overridden within the same tick",
		}),
	}
}

func (m *Metrics) observeTick(d time.Duration, running int) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
	m.running.Set(float64(running))
}

func (m *Metrics) transition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

func (m *Metrics) relayWrite(relay string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.relayWrites.WithLabelValues(relay, result).Inc()
}

func (m *Metrics) conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

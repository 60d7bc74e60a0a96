package doorlock

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts reconciler decisions. A nil *Metrics records nothing.
type Metrics struct {
	Unlocks      *prometheus.CounterVec
	Vetoes       prometheus.Counter
	ResetRemoved prometheus.Counter
	Relocks      *prometheus.CounterVec
	Skipped      *prometheus.CounterVec
}

// NewMetrics creates and registers the reconciler metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Unlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opendoors_doorlock_unlocks_total",
				Help: "Total number of open unowned objects unlocked, by hook",
			},
			[]string{"hook"},
		),
		Vetoes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opendoors_doorlock_vetoes_total",
			Help: "Total number of lock requests downgraded to unlocked",
		}),
		ResetRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opendoors_doorlock_reset_removed_total",
			Help: "Total number of secure objects removed before a region rebuild",
		}),
		Relocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opendoors_doorlock_relocks_total",
				Help: "Total number of template defaults restored by quest relock, by resulting state",
			},
			[]string{"locked"},
		),
		Skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opendoors_doorlock_skipped_total",
				Help: "Total number of traversal entries skipped, by reason",
			},
			[]string{"reason"},
		),
	}
	reg.MustRegister(m.Unlocks, m.Vetoes, m.ResetRemoved, m.Relocks, m.Skipped)
	return m
}

func (m *Metrics) unlock(hook string) {
	if m == nil {
		return
	}
	m.Unlocks.WithLabelValues(hook).Inc()
}

func (m *Metrics) veto() {
	if m == nil {
		return
	}
	m.Vetoes.Inc()
}

func (m *Metrics) removed() {
	if m == nil {
		return
	}
	m.ResetRemoved.Inc()
}

func (m *Metrics) relock(locked bool) {
	if m == nil {
		return
	}
	label := "false"
	if locked {
		label = "true"
	}
	m.Relocks.WithLabelValues(label).Inc()
}

func (m *Metrics) skip(reason string) {
	if m == nil {
		return
	}
	m.Skipped.WithLabelValues(reason).Inc()
}

package optimistic

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Phase is the lifecycle position of one optimistic operation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseApplied
	PhaseSettled
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseApplied:
		return "applied"
	case PhaseSettled:
		return "settled"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// Transition describes one phase change.
type Transition struct {
	Kind string
	Key  string
	From Phase
	To   Phase
	Err  error
}

// Observer is told about every phase change. Implementations must not block.
type Observer interface {
	Observe(Transition)
}

type ObserverFunc func(Transition)

func (f ObserverFunc) Observe(t Transition) { f(t) }

type multiObserver []Observer

func (m multiObserver) Observe(t Transition) {
	for _, o := range m {
		o.Observe(t)
	}
}

// Observers fans transitions out to each non-nil observer.
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// LogObserver logs transitions with logrus. Rollbacks are warnings.
type LogObserver struct {
	Logger log.FieldLogger
}

func (o LogObserver) Observe(t Transition) {
	entry := o.Logger.WithFields(log.Fields{
		"op":   t.Kind,
		"key":  t.Key,
		"from": t.From.String(),
		"to":   t.To.String(),
	})
	if t.To == PhaseRolledBack {
		entry.WithError(t.Err).Warn("optimistic update rolled back")
		return
	}
	entry.Debug("optimistic update transition")
}

// Metrics counts settled and rolled back operations and tracks how many are
// in flight.
type Metrics struct {
	outcomes *prometheus.CounterVec
	inflight *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kanban_optimistic_operations_total",
				Help: "Optimistic operations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kanban_optimistic_inflight",
				Help: "Optimistic operations applied but not yet reconciled",
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.outcomes, m.inflight)
	return m
}

func (m *Metrics) Observe(t Transition) {
	switch t.To {
	case PhaseApplied:
		m.inflight.WithLabelValues(t.Kind).Inc()
	case PhaseSettled, PhaseRolledBack:
		m.inflight.WithLabelValues(t.Kind).Dec()
		m.outcomes.WithLabelValues(t.Kind, t.To.String()).Inc()
	}
}

// Package metrics holds the Prometheus collectors for compilation and
// bulk-synchronous execution.
//
// A nil *Metrics is valid and records nothing, so callers that do not
// care about instrumentation can pass nil through.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "traverse"

// Outcome label values.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics groups every collector the module exports.
type Metrics struct {
	// CompilationsTotal counts registry compilations.
	// Labels: engine (standard, computer), outcome (ok, failed)
	CompilationsTotal *prometheus.CounterVec

	// StrategyDurationSeconds measures one strategy application.
	// Labels: strategy, phase
	StrategyDurationSeconds *prometheus.HistogramVec

	// SuperstepsTotal counts completed BSP supersteps.
	// Labels: program
	SuperstepsTotal *prometheus.CounterVec

	// MessagesTotal counts messages delivered at superstep boundaries.
	// Labels: program
	MessagesTotal *prometheus.CounterVec

	// JobsTotal counts computer jobs by outcome.
	// Labels: program, outcome
	JobsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CompilationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "compiler",
				Name:      "compilations_total",
				Help:      "Total chain compilations by engine and outcome",
			},
			[]string{"engine", "outcome"},
		),
		StrategyDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "compiler",
				Name:      "strategy_duration_seconds",
				Help:      "Time spent applying one strategy to one chain",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
			},
			[]string{"strategy", "phase"},
		),
		SuperstepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "computer",
				Name:      "supersteps_total",
				Help:      "Total supersteps completed by vertex program",
			},
			[]string{"program"},
		),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "computer",
				Name:      "messages_total",
				Help:      "Total messages delivered at superstep boundaries",
			},
			[]string{"program"},
		),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "computer",
				Name:      "jobs_total",
				Help:      "Total computer jobs by program and outcome",
			},
			[]string{"program", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.CompilationsTotal,
			m.StrategyDurationSeconds,
			m.SuperstepsTotal,
			m.MessagesTotal,
			m.JobsTotal,
		)
	}
	return m
}

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeOK
}

// RecordCompilation counts one compilation.
func (m *Metrics) RecordCompilation(engine string, err error) {
	if m == nil {
		return
	}
	m.CompilationsTotal.WithLabelValues(engine, Outcome(err)).Inc()
}

// ObserveStrategy records how long one strategy application took.
func (m *Metrics) ObserveStrategy(strategy, phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.StrategyDurationSeconds.WithLabelValues(strategy, phase).Observe(d.Seconds())
}

// RecordSuperstep counts one superstep and the messages it delivered.
func (m *Metrics) RecordSuperstep(program string, messages int) {
	if m == nil {
		return
	}
	m.SuperstepsTotal.WithLabelValues(program).Inc()
	m.MessagesTotal.WithLabelValues(program).Add(float64(messages))
}

// RecordJob counts one finished computer job.
func (m *Metrics) RecordJob(program string, err error) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(program, Outcome(err)).Inc()
}

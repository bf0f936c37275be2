package feed

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for a Controller.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	chunks        prometheus.Counter
	bytes         prometheus.Counter
	lines         prometheus.Counter
	fields        prometheus.Counter
	skipped       *prometheus.CounterVec
	overflows     prometheus.Counter
	generations   prometheus.Counter
	ends          *prometheus.CounterVec
	cleanupErrors prometheus.Counter
	state         prometheus.Gauge
}

// NewMetrics creates and registers controller metrics. A nil registerer
// returns nil metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialfeed",
			Name:      "chunks_total",
			Help:      "Text chunks read from the transport",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialfeed",
			Name:      "bytes_total",
			Help:      "Decoded bytes read from the transport",
		}),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialfeed",
			Name:      "lines_total",
			Help:      "Complete non-empty lines reassembled",
		}),
		fields: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialfeed",
			Name:      "fields_total",
			Help:      "Fields dispatched to the sink",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "serialfeed",
			Name:      "tokens_skipped_total",
			Help:      "Malformed tokens dropped by the parser",
		}, []string{"reason"}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialfeed",
			Name:      "overflows_total",
			Help:      "Lines dropped for exceeding the maximum line length",
		}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialfeed",
			Name:      "generations_total",
			Help:      "Connection generations started",
		}),
		ends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "serialfeed",
			Name:      "generation_end_total",
			Help:      "Connection generations ended, by reason",
		}, []string{"reason"}),
		cleanupErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialfeed",
			Name:      "cleanup_errors_total",
			Help:      "Failures releasing the reader or closing the transport",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "serialfeed",
			Name:      "state",
			Help:      "Connection state (0 disconnected, 1 opening, 2 open, 3 reading, 4 closing)",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.chunks, m.bytes, m.lines, m.fields, m.skipped, m.overflows,
		m.generations, m.ends, m.cleanupErrors, m.state,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) chunk(n int) {
	if m == nil {
		return
	}
	m.chunks.Inc()
	m.bytes.Add(float64(n))
}

func (m *Metrics) line() {
	if m != nil {
		m.lines.Inc()
	}
}

func (m *Metrics) field() {
	if m != nil {
		m.fields.Inc()
	}
}

func (m *Metrics) skip(reason string) {
	if m != nil {
		m.skipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) overflow(lines int) {
	if m != nil {
		m.overflows.Add(float64(lines))
	}
}

func (m *Metrics) started() {
	if m != nil {
		m.generations.Inc()
	}
}

func (m *Metrics) ended(reason EndReason) {
	if m != nil {
		m.ends.WithLabelValues(reason.String()).Inc()
	}
}

func (m *Metrics) cleanupFailed() {
	if m != nil {
		m.cleanupErrors.Inc()
	}
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}

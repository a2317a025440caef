package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Runs             prometheus.Counter
	RecordsRead      prometheus.Counter
	RecordsForwarded prometheus.Counter
	EventsPublished  prometheus.Counter
	SoundMessages    *prometheus.CounterVec
	WorkersActive    *prometheus.GaugeVec
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_pipeline_runs_total",
			Help: "Total number of pipeline runs started",
		}),
		RecordsRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_records_read_total",
			Help: "Total number of non-empty records read from the serial device",
		}),
		RecordsForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_records_forwarded_total",
			Help: "Total number of records handed to the sound worker",
		}),
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_events_published_total",
			Help: "Total number of records published to the event stream",
		}),
		SoundMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_sound_messages_total",
				Help: "Total number of MIDI messages sent",
			},
			[]string{"kind", "result"},
		),
		WorkersActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_workers_active",
				Help: "Number of running workers by role",
			},
			[]string{"role"},
		),
	}
}

func (m *Metrics) runStarted() {
	if m != nil {
		m.Runs.Inc()
	}
}

func (m *Metrics) recordRead() {
	if m != nil {
		m.RecordsRead.Inc()
	}
}

func (m *Metrics) recordForwarded() {
	if m != nil {
		m.RecordsForwarded.Inc()
	}
}

func (m *Metrics) eventPublished() {
	if m != nil {
		m.EventsPublished.Inc()
	}
}

func (m *Metrics) soundMessage(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SoundMessages.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) workerUp(role string) {
	if m != nil {
		m.WorkersActive.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) workerDown(role string) {
	if m != nil {
		m.WorkersActive.WithLabelValues(role).Dec()
	}
}

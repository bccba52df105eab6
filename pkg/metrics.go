package evb

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the pipeline counters. A nil *Metrics records nothing.
type Metrics struct {
	HitsMerged       prometheus.Counter
	EventsBuilt      prometheus.Counter
	FragmentsWritten prometheus.Counter
	RunsProcessed    *prometheus.CounterVec
	ScalerCounts     *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		HitsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evb",
			Subsystem: "pipeline",
			Name:      "hits_merged_total",
			Help:      "Total number of hits emitted by the time merge",
		}),
		EventsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evb",
			Subsystem: "pipeline",
			Name:      "events_built_total",
			Help:      "Total number of coincidence groups materialized",
		}),
		FragmentsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evb",
			Subsystem: "output",
			Name:      "fragments_written_total",
			Help:      "Total number of event table artifacts written",
		}),
		RunsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evb",
			Subsystem: "runs",
			Name:      "processed_total",
			Help:      "Runs processed by outcome",
		}, []string{"status"}),
		ScalerCounts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "evb",
			Name:      "scalers_count",
			Help:      "Hit count of each scaler in the last processed run",
		}, []string{"scaler"}),
	}
}

// Register adds all collectors to the registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.HitsMerged, m.EventsBuilt, m.FragmentsWritten, m.RunsProcessed, m.ScalerCounts,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) hitsMerged(n int64) {
	if m != nil && n > 0 {
		m.HitsMerged.Add(float64(n))
	}
}

func (m *Metrics) eventBuilt() {
	if m != nil {
		m.EventsBuilt.Inc()
	}
}

func (m *Metrics) fragmentWritten() {
	if m != nil {
		m.FragmentsWritten.Inc()
	}
}

func (m *Metrics) runFinished(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.RunsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) scalers(records []ScalerRecord) {
	if m == nil {
		return
	}
	for _, r := range records {
		m.ScalerCounts.WithLabelValues(r.Name).Set(float64(r.Count))
	}
}

// Package metrics holds the Prometheus collectors for the gridguard
// processes. Each process builds its own registry so tests and embedded
// components never share counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "gridguard"

// Metrics is the set of collectors exported by a process
type Metrics struct {
	registry *prometheus.Registry

	// ─── Detection ──────────────────────────────────────────────────────

	SamplesRead      prometheus.Counter
	SamplesMalformed prometheus.Counter
	ScoresInvalid    prometheus.Counter
	AnomalyScore     prometheus.Histogram
	AlertsTriggered  prometheus.Counter

	// ─── Encoding ───────────────────────────────────────────────────────

	AlertsEmitted  prometheus.Counter
	EncodeFailures prometheus.Counter
	PendingAlerts  prometheus.Gauge
	PendingDropped prometheus.Counter

	// ─── Decoding ───────────────────────────────────────────────────────

	LinesIgnored       prometheus.Counter
	PacketsMalformed   prometheus.Counter
	DecryptionFailures prometheus.Counter
	PayloadsCorrupt    prometheus.Counter
	AlertsDecrypted    prometheus.Counter
	KeyTrials          prometheus.Histogram
	KeysSkipped        prometheus.Counter
	SinkFailures       prometheus.Counter

	// ─── Relay and keys ─────────────────────────────────────────────────

	RelaySubscribers prometheus.Gauge
	RelayDropped     prometheus.Counter
	KeysProduced     prometheus.Counter
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SamplesRead:      counter("samples_total", "Telemetry rows admitted to the window."),
		SamplesMalformed: counter("samples_malformed_total", "Telemetry rows rejected as malformed or out of order."),
		ScoresInvalid:    counter("scores_invalid_total", "Windows whose score was NaN, infinite or negative."),
		AnomalyScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "anomaly_score",
			Help:      "Reconstruction error of each full window.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 12),
		}),
		AlertsTriggered: counter("alerts_triggered_total", "Windows whose score exceeded the threshold."),

		AlertsEmitted:  counter("alerts_emitted_total", "Packets written to the alert stream."),
		EncodeFailures: counter("encode_failures_total", "Alerts that could not be sealed, usually for lack of a key."),
		PendingAlerts:  gauge("pending_alerts", "Alerts waiting for a key to become available."),
		PendingDropped: counter("pending_dropped_total", "Pending alerts evicted because the queue was full."),

		LinesIgnored:       counter("lines_ignored_total", "Stream lines without the packet prefix."),
		PacketsMalformed:   counter("packets_malformed_total", "Prefixed lines whose body is not a packet."),
		DecryptionFailures: counter("decryption_failures_total", "Packets no key could authenticate."),
		PayloadsCorrupt:    counter("payloads_corrupt_total", "Packets that authenticated but did not hold a valid payload."),
		AlertsDecrypted:    counter("alerts_decrypted_total", "Packets opened and handed to the sink."),
		KeyTrials: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "key_trials",
			Help:      "Keys tried before a packet opened.",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 100},
		}),
		KeysSkipped:  counter("keys_skipped_total", "Unreadable key files passed over during decryption."),
		SinkFailures: counter("sink_failures_total", "Decrypted alerts the sink failed to deliver."),

		RelaySubscribers: gauge("relay_subscribers", "Connected alert stream subscribers."),
		RelayDropped:     counter("relay_dropped_total", "Subscribers dropped after a failed write."),
		KeysProduced:     counter("keys_produced_total", "Key files written by the key producer."),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SamplesRead, m.SamplesMalformed, m.ScoresInvalid, m.AnomalyScore, m.AlertsTriggered,
		m.AlertsEmitted, m.EncodeFailures, m.PendingAlerts, m.PendingDropped,
		m.LinesIgnored, m.PacketsMalformed, m.DecryptionFailures, m.PayloadsCorrupt,
		m.AlertsDecrypted, m.KeyTrials, m.KeysSkipped, m.SinkFailures,
		m.RelaySubscribers, m.RelayDropped, m.KeysProduced,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Count returns the current value of a counter or gauge, by name without the
// namespace. Histograms report their sample count. Unknown names read as 0.
func (m *Metrics) Count(name string) float64 {
	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}

	full := namespace + "_" + name
	for _, f := range families {
		if f.GetName() != full {
			continue
		}
		var total float64
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				total += float64(metric.GetHistogram().GetSampleCount())
			}
		}
		return total
	}
	return 0
}

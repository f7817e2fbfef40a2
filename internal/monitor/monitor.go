// Package monitor runs the detection side of the pipeline: it tails the
// telemetry file, scores each full window and seals an alert for every score
// above the threshold.
package monitor

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/smukkama/gridguard/internal/alert"
	"github.com/smukkama/gridguard/internal/detector"
	"github.com/smukkama/gridguard/internal/metrics"
	"github.com/smukkama/gridguard/internal/telemetry"
)

// DefaultMaxPending bounds the alerts held while no key is available.
const DefaultMaxPending = 256

// LineSource yields telemetry lines appended since the previous call
type LineSource interface {
	ReadNew(ctx context.Context) ([]string, error)
}

// Encoder seals an event under the current key
type Encoder interface {
	Encode(ev alert.Event) (*alert.Packet, error)
}

// Emitter writes a sealed packet to the alert stream
type Emitter interface {
	Emit(packet []byte) error
}

// Config holds monitor settings
type Config struct {
	Threshold  float64
	Verbose    bool
	MaxPending int
}

// Monitor owns the detector window. Tick must not be called concurrently.
type Monitor struct {
	source   LineSource
	detector *detector.Detector
	encoder  Encoder
	emitter  Emitter
	metrics  *metrics.Metrics
	config   Config
	logger   *log.Logger
	pending  []alert.Event
}

// New creates a monitor. Diagnostics go to logger; the packet stream is the
// emitter's alone.
func New(cfg Config, source LineSource, det *detector.Detector, enc Encoder, em Emitter, m *metrics.Metrics, logger *log.Logger) *Monitor {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		source:   source,
		detector: det,
		encoder:  enc,
		emitter:  em,
		metrics:  m,
		config:   cfg,
		logger:   logger,
	}
}

// Run ticks every interval until ctx is cancelled. A failed tick is logged
// and the loop carries on.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.Tick(ctx); err != nil {
			m.logger.Printf("Failed to poll telemetry: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick retries pending alerts, then processes every new telemetry row. It
// returns the number of packets emitted.
func (m *Monitor) Tick(ctx context.Context) (int, error) {
	emitted := m.retryPending()

	lines, err := m.source.ReadNew(ctx)
	if err != nil {
		return emitted, err
	}

	for _, line := range lines {
		sample, err := telemetry.ParseRow(line)
		if errors.Is(err, telemetry.ErrSkipRow) {
			continue
		}
		if err != nil {
			m.metrics.SamplesMalformed.Inc()
			m.logger.Printf("Skipping telemetry row: %v", err)
			continue
		}

		score, ok, err := m.detector.Push(sample)
		if err != nil {
			if errors.Is(err, telemetry.ErrMalformedSample) {
				m.metrics.SamplesMalformed.Inc()
			} else {
				m.metrics.ScoresInvalid.Inc()
			}
			m.logger.Printf("Skipping sample at %s: %v", sample.SourceTimestamp, err)
			continue
		}
		m.metrics.SamplesRead.Inc()
		if !ok {
			continue
		}

		m.metrics.AnomalyScore.Observe(score)
		if m.config.Verbose {
			m.logger.Printf("Score: %.6f (threshold %.6f) at %s", score, m.config.Threshold, sample.SourceTimestamp)
		}
		if !detector.Triggers(score, m.config.Threshold) {
			continue
		}

		m.metrics.AlertsTriggered.Inc()
		m.logger.Printf("🚨 Anomaly detected at %s: score %.6f > %.6f", sample.SourceTimestamp, score, m.config.Threshold)
		if m.dispatch(alert.Event{Timestamp: sample.SourceTimestamp, Score: score}) {
			emitted++
		}
	}
	return emitted, nil
}

// Pending returns the number of alerts waiting for a key
func (m *Monitor) Pending() int {
	return len(m.pending)
}

// dispatch seals and emits ev. Alerts queue behind any already pending so
// the stream keeps detection order.
func (m *Monitor) dispatch(ev alert.Event) bool {
	if len(m.pending) > 0 {
		m.enqueue(ev)
		return false
	}
	if err := m.send(ev); err != nil {
		m.enqueue(ev)
		return false
	}
	return true
}

func (m *Monitor) send(ev alert.Event) error {
	packet, err := m.encoder.Encode(ev)
	if err != nil {
		m.metrics.EncodeFailures.Inc()
		m.logger.Printf("Failed to seal alert for %s: %v", ev.Timestamp, err)
		return err
	}
	if err := m.emitter.Emit(packet.Data); err != nil {
		m.logger.Printf("Failed to emit alert for %s: %v", ev.Timestamp, err)
		return err
	}
	m.metrics.AlertsEmitted.Inc()
	m.logger.Printf("Alert for %s sealed with key %s", ev.Timestamp, packet.KeyID)
	return nil
}

func (m *Monitor) enqueue(ev alert.Event) {
	if len(m.pending) >= m.config.MaxPending {
		dropped := m.pending[0]
		m.pending = m.pending[1:]
		m.metrics.PendingDropped.Inc()
		m.logger.Printf("Pending queue full, dropping alert for %s (score %.6f)", dropped.Timestamp, dropped.Score)
	}
	m.pending = append(m.pending, ev)
	m.metrics.PendingAlerts.Set(float64(len(m.pending)))
}

func (m *Monitor) retryPending() int {
	sent := 0
	for len(m.pending) > 0 {
		if err := m.send(m.pending[0]); err != nil {
			break
		}
		m.pending = m.pending[1:]
		sent++
	}
	m.metrics.PendingAlerts.Set(float64(len(m.pending)))
	return sent
}

// Package sink delivers decrypted alerts to their consumers: the log, Kafka
// and the alert archive.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/smukkama/gridguard/internal/protocol"
)

// Sink receives every alert the decoder opens
type Sink interface {
	Deliver(ctx context.Context, alert *protocol.DecryptedAlert) error
}

// LogSink prints alerts for an operator watching the listener
type LogSink struct {
	out io.Writer
	mu  sync.Mutex
}

func NewLogSink(out io.Writer) *LogSink {
	return &LogSink{out: out}
}

func (s *LogSink) Deliver(ctx context.Context, alert *protocol.DecryptedAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.out, "🚨 Decrypted alert: timestamp=%s error=%g keyId=%s (opened on trial %d)\n",
		alert.Payload.Timestamp, alert.Payload.Error, alert.Payload.KeyID, alert.Trials)
	return err
}

// AlertPublisher publishes a decrypted alert to a topic
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *protocol.DecryptedAlert) error
}

// KafkaSink forwards alerts to the decrypted alert topic
type KafkaSink struct {
	publisher AlertPublisher
}

func NewKafkaSink(publisher AlertPublisher) *KafkaSink {
	return &KafkaSink{publisher: publisher}
}

func (s *KafkaSink) Deliver(ctx context.Context, alert *protocol.DecryptedAlert) error {
	if err := s.publisher.PublishAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}

// Multi delivers to every sink in order. A failing sink does not stop the
// others; all failures are returned together.
type Multi []Sink

func (m Multi) Deliver(ctx context.Context, alert *protocol.DecryptedAlert) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

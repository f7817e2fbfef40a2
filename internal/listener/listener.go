// Package listener runs the decoding side of the pipeline: every packet line
// on the stream is opened against the key store and handed to the sink.
package listener

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/smukkama/gridguard/internal/alert"
	"github.com/smukkama/gridguard/internal/channel"
	"github.com/smukkama/gridguard/internal/metrics"
	"github.com/smukkama/gridguard/internal/protocol"
	"github.com/smukkama/gridguard/internal/sink"
)

// LineReader yields stream lines until the transport closes
type LineReader interface {
	Next() (string, error)
}

// Decoder opens a packet
type Decoder interface {
	Decode(packet []byte) (*alert.Result, error)
}

// Listener decodes one line at a time. A bad line never stops the loop.
type Listener struct {
	reader  LineReader
	decoder Decoder
	sink    sink.Sink
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time
}

// New creates a listener
func New(reader LineReader, decoder Decoder, s sink.Sink, m *metrics.Metrics, logger *log.Logger) *Listener {
	if logger == nil {
		logger = log.Default()
	}
	return &Listener{reader: reader, decoder: decoder, sink: s, metrics: m, logger: logger, now: time.Now}
}

type readResult struct {
	line string
	err  error
}

// Run reads until the stream ends or ctx is cancelled. The end of the
// stream is a normal shutdown and returns nil. Cancellation returns at once
// even while the reader is blocked on input; the blocked read is abandoned.
func (l *Listener) Run(ctx context.Context) error {
	results := make(chan readResult)
	go func() {
		for {
			line, err := l.reader.Next()
			select {
			case results <- readResult{line, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-results:
			if r.err != nil {
				if errors.Is(r.err, channel.ErrTransportClosed) {
					l.logger.Printf("Alert stream closed")
					return nil
				}
				return r.err
			}
			l.Handle(ctx, r.line)
		}
	}
}

// Handle processes a single stream line and returns the delivered alert,
// or nil when the line produced none.
func (l *Listener) Handle(ctx context.Context, line string) *protocol.DecryptedAlert {
	packet, ok, err := protocol.ParseLine(line)
	if !ok {
		l.metrics.LinesIgnored.Inc()
		return nil
	}
	if err != nil {
		l.metrics.PacketsMalformed.Inc()
		l.logger.Printf("Skipping malformed packet: %v", err)
		return nil
	}

	res, err := l.decoder.Decode(packet)
	if res != nil {
		l.metrics.KeysSkipped.Add(float64(res.Skipped))
	}
	switch {
	case errors.Is(err, alert.ErrPayloadCorrupt):
		l.metrics.PayloadsCorrupt.Inc()
		l.logger.Printf("Packet opened but payload is corrupt: %v", err)
		return nil
	case errors.Is(err, alert.ErrDecryptionFailed):
		l.metrics.DecryptionFailures.Inc()
		l.logger.Printf("No key opens packet: %v", err)
		return nil
	case errors.Is(err, protocol.ErrMalformedPacket):
		l.metrics.PacketsMalformed.Inc()
		l.logger.Printf("Skipping malformed packet: %v", err)
		return nil
	case err != nil:
		l.metrics.DecryptionFailures.Inc()
		l.logger.Printf("Failed to decode packet: %v", err)
		return nil
	}

	l.metrics.AlertsDecrypted.Inc()
	l.metrics.KeyTrials.Observe(float64(res.Trials))

	decrypted := &protocol.DecryptedAlert{
		Payload:    res.Payload,
		OpenedWith: res.OpenedWith,
		Trials:     res.Trials,
		ReceivedAt: l.now(),
	}
	if err := l.sink.Deliver(ctx, decrypted); err != nil {
		l.metrics.SinkFailures.Inc()
		l.logger.Printf("Failed to deliver alert for %s: %v", res.Payload.Timestamp, err)
	}
	return decrypted
}

package listener

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/smukkama/gridguard/internal/alert"
	"github.com/smukkama/gridguard/internal/channel"
	"github.com/smukkama/gridguard/internal/keystore"
	"github.com/smukkama/gridguard/internal/metrics"
	"github.com/smukkama/gridguard/internal/protocol"
)

type recordingSink struct {
	alerts []*protocol.DecryptedAlert
	err    error
}

func (s *recordingSink) Deliver(ctx context.Context, a *protocol.DecryptedAlert) error {
	s.alerts = append(s.alerts, a)
	return s.err
}

type fixture struct {
	store   *keystore.Store
	keys    *keystore.Producer
	encoder *alert.Encoder
	sink    *recordingSink
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := keystore.NewStore(t.TempDir(), "")
	f := &fixture{
		store:   store,
		keys:    keystore.NewProducer(store),
		encoder: alert.NewEncoder(store, ""),
		sink:    &recordingSink{},
		metrics: metrics.New(),
	}
	f.addKey(t, 0, 'a')
	return f
}

func (f *fixture) addKey(t *testing.T, id int64, fill byte) keystore.Key {
	t.Helper()
	k, err := f.keys.Write(id, bytes.Repeat([]byte{fill}, keystore.SecretSize))
	if err != nil {
		t.Fatalf("Write key failed: %v", err)
	}
	return k
}

func (f *fixture) line(t *testing.T, ts string, score float64) string {
	t.Helper()
	p, err := f.encoder.Encode(alert.Event{Timestamp: ts, Score: score})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return protocol.FormatLine(p.Data)
}

func (f *fixture) run(t *testing.T, stream string) {
	t.Helper()
	l := New(channel.NewReader(strings.NewReader(stream)), alert.NewDecoder(f.store, ""), f.sink, f.metrics, log.New(&bytes.Buffer{}, "", 0))
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestRun_DecodesAndIgnoresDiagnostics(t *testing.T) {
	f := newFixture(t)
	stream := "Score: 0.12\n" + f.line(t, "t1", 10) + "model loaded\n" + f.line(t, "t2", 20)

	f.run(t, stream)

	if len(f.sink.alerts) != 2 {
		t.Fatalf("Expected 2 alerts, got %d", len(f.sink.alerts))
	}
	if f.sink.alerts[0].Payload.Timestamp != "t1" || f.sink.alerts[1].Payload.Error != 20 {
		t.Errorf("Unexpected alerts %+v %+v", f.sink.alerts[0], f.sink.alerts[1])
	}
	if got := f.metrics.Count("lines_ignored_total"); got != 2 {
		t.Errorf("Expected 2 ignored lines, got %v", got)
	}
	if got := f.metrics.Count("alerts_decrypted_total"); got != 2 {
		t.Errorf("Expected 2 decrypted alerts, got %v", got)
	}
}

func TestRun_FailuresAreCountedNotFatal(t *testing.T) {
	f := newFixture(t)
	good := f.line(t, "ok", 5)

	// Sealed under a key the listener never sees.
	other := keystore.NewStore(t.TempDir(), "")
	keystore.NewProducer(other).Write(0, bytes.Repeat([]byte{'z'}, keystore.SecretSize))
	p, _ := alert.NewEncoder(other, "").Encode(alert.Event{Timestamp: "foreign", Score: 1})
	foreign := protocol.FormatLine(p.Data)

	stream := "enc_alert=nothex\n" + foreign + "enc_alert=00ff\n" + good

	f.run(t, stream)

	if len(f.sink.alerts) != 1 || f.sink.alerts[0].Payload.Timestamp != "ok" {
		t.Fatalf("Expected only the good alert, got %d", len(f.sink.alerts))
	}
	if got := f.metrics.Count("packets_malformed_total"); got != 2 {
		t.Errorf("Expected 2 malformed packets, got %v", got)
	}
	if got := f.metrics.Count("decryption_failures_total"); got != 1 {
		t.Errorf("Expected 1 decryption failure, got %v", got)
	}
}

func TestHandle_PayloadCorrupt(t *testing.T) {
	f := newFixture(t)
	key, _ := f.store.Latest()

	aead, _ := alert.NewAEAD(alert.SuiteAESGCM, key.Secret)
	nonce := make([]byte, aead.NonceSize())
	packet := aead.Seal(nonce, nonce, []byte(`{"v":2}`), nil)

	l := New(nil, alert.NewDecoder(f.store, ""), f.sink, f.metrics, log.New(&bytes.Buffer{}, "", 0))
	if got := l.Handle(context.Background(), protocol.FormatLine(packet)); got != nil {
		t.Errorf("Expected no alert, got %+v", got)
	}
	if f.metrics.Count("payloads_corrupt_total") != 1 || f.metrics.Count("decryption_failures_total") != 0 {
		t.Error("Corrupt payload was not counted distinctly")
	}
}

func TestHandle_RotationTrials(t *testing.T) {
	f := newFixture(t)
	line := f.line(t, "before rotation", 50)
	f.addKey(t, 1, 'b')

	l := New(nil, alert.NewDecoder(f.store, ""), f.sink, f.metrics, log.New(&bytes.Buffer{}, "", 0))
	got := l.Handle(context.Background(), line)
	if got == nil || got.Trials != 2 || got.OpenedWith != "0.bin" {
		t.Fatalf("Expected key 0.bin on trial 2, got %+v", got)
	}
}

func TestHandle_SinkFailureCounted(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("db down")

	l := New(nil, alert.NewDecoder(f.store, ""), f.sink, f.metrics, log.New(&bytes.Buffer{}, "", 0))
	l.Handle(context.Background(), f.line(t, "t", 3))

	if f.metrics.Count("sink_failures_total") != 1 {
		t.Error("Sink failure not counted")
	}
}

type failingReader struct{}

func (failingReader) Next() (string, error) { return "", errors.New("boom") }

func TestRun_PropagatesNonTransportErrors(t *testing.T) {
	f := newFixture(t)
	l := New(failingReader{}, alert.NewDecoder(f.store, ""), f.sink, f.metrics, log.New(&bytes.Buffer{}, "", 0))
	if err := l.Run(context.Background()); err == nil {
		t.Error("Expected error from reader")
	}
}

type blockingReader struct {
	release chan struct{}
}

func (r blockingReader) Next() (string, error) {
	<-r.release
	return "", channel.ErrTransportClosed
}

func TestRun_ReturnsOnCancelWhileReaderBlocks(t *testing.T) {
	f := newFixture(t)
	reader := blockingReader{release: make(chan struct{})}
	defer close(reader.release)

	l := New(reader, alert.NewDecoder(f.store, ""), f.sink, f.metrics, log.New(&bytes.Buffer{}, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil on cancellation, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

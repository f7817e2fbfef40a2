package channel

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smukkama/gridguard/internal/connection"
	"github.com/smukkama/gridguard/internal/metrics"
	"github.com/smukkama/gridguard/internal/protocol"
)

type recordingRelay struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingRelay) Broadcast(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func TestWriter_Emit(t *testing.T) {
	var out bytes.Buffer
	relay := &recordingRelay{}
	w := NewWriter(&out, relay)

	packet := bytes.Repeat([]byte{0x01}, 40)
	if err := w.Emit(packet); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	want := protocol.FormatLine(packet)
	if out.String() != want {
		t.Errorf("Expected %q, got %q", want, out.String())
	}
	if len(relay.lines) != 1 || relay.lines[0] != want {
		t.Errorf("Relay did not receive the line: %v", relay.lines)
	}
}

func TestReader_Next(t *testing.T) {
	r := NewReader(strings.NewReader("Score: 1.2\r\nenc_alert=00\n\nlast"))

	want := []string{"Score: 1.2", "enc_alert=00", "", "last"}
	for i, w := range want {
		line, err := r.Next()
		if err != nil {
			t.Fatalf("Line %d: unexpected error %v", i, err)
		}
		if line != w {
			t.Errorf("Line %d: expected %q, got %q", i, w, line)
		}
	}

	if _, err := r.Next(); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Expected ErrTransportClosed, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_RelaysToSubscribers(t *testing.T) {
	m := metrics.New()
	manager := connection.NewManager(4)
	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, manager, m)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer srv.Stop()

	reader, conn, err := Dial(context.Background(), srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return manager.Count() == 1 })

	var out bytes.Buffer
	w := NewWriter(&out, srv)
	packet := bytes.Repeat([]byte{0xfe}, 32)
	if err := w.Emit(packet); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	got, ok, err := protocol.ParseLine(line)
	if !ok || err != nil || !bytes.Equal(got, packet) {
		t.Errorf("Subscriber received %q", line)
	}

	if m.Count("relay_subscribers") != 1 {
		t.Errorf("Expected relay_subscribers 1, got %v", m.Count("relay_subscribers"))
	}
	if stats := srv.Stats(); stats.TotalConnections != 1 || stats.LinesDelivered != 1 {
		t.Errorf("Expected 1 subscriber with 1 line, got %+v", stats)
	}

	conn.Close()
	waitFor(t, func() bool { return manager.Count() == 0 })
}

func TestServer_RejectsBeyondMaxSubscribers(t *testing.T) {
	manager := connection.NewManager(1)
	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, manager, metrics.New())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer srv.Stop()

	_, first, err := Dial(context.Background(), srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer first.Close()
	waitFor(t, func() bool { return manager.Count() == 1 })

	second, conn, err := Dial(context.Background(), srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := second.Next(); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Expected rejected subscriber to see ErrTransportClosed, got %v", err)
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 subscriber, got %d", manager.Count())
	}
}

func TestServer_StopDisconnectsSubscribers(t *testing.T) {
	manager := connection.NewManager(4)
	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, manager, metrics.New())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	reader, conn, err := Dial(context.Background(), srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return manager.Count() == 1 })

	srv.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := reader.Next(); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Expected ErrTransportClosed after Stop, got %v", err)
	}
}

package channel

import (
	"fmt"
	"io"
	"sync"

	"github.com/smukkama/gridguard/internal/protocol"
)

// Broadcaster fans a line out to remote subscribers
type Broadcaster interface {
	Broadcast(line string)
}

// Writer emits packets onto the alert stream. Lines are written whole, one
// at a time, so concurrent emitters never interleave.
type Writer struct {
	out   io.Writer
	relay Broadcaster
	mu    sync.Mutex
}

// NewWriter creates a writer. relay may be nil.
func NewWriter(out io.Writer, relay Broadcaster) *Writer {
	return &Writer{out: out, relay: relay}
}

// Emit frames packet and writes it to the stream
func (w *Writer) Emit(packet []byte) error {
	line := protocol.FormatLine(packet)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := io.WriteString(w.out, line); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	if w.relay != nil {
		w.relay.Broadcast(line)
	}
	return nil
}

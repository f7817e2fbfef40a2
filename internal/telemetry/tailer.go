package telemetry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
)

// maxReadChunk bounds how much of the file a single poll consumes.
const maxReadChunk = 4 << 20

// Tailer reads complete lines appended to an append-only telemetry file.
type Tailer struct {
	path  string
	store OffsetStore
	chunk int64
	// skipping is set while the rest of an oversized row is being discarded
	skipping bool
}

// NewTailer creates a tailer whose read position is persisted in store
func NewTailer(path string, store OffsetStore) *Tailer {
	return &Tailer{path: path, store: store, chunk: maxReadChunk}
}

// Path returns the tailed file
func (t *Tailer) Path() string {
	return t.path
}

// ReadNew returns the lines appended since the last call and advances the
// stored offset past the last newline. A trailing partial line stays unread.
func (t *Tailer) ReadNew(ctx context.Context) ([]string, error) {
	offset, err := t.store.Load(ctx, t.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load offset: %w", err)
	}

	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat telemetry: %w", err)
	}
	if info.Size() < offset {
		log.Printf("Telemetry %s shrank below offset %d, rereading from start", t.path, offset)
		offset = 0
		t.skipping = false
	}
	if info.Size() == offset {
		return nil, nil
	}

	size := info.Size() - offset
	if size > t.chunk {
		size = t.chunk
	}
	buf := make([]byte, size)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read telemetry: %w", err)
	}
	buf = buf[:n]

	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		if int64(n) < t.chunk {
			// Partial row, wait for its newline
			return nil, nil
		}
		// A row that fills a whole chunk can never be completed in one read
		if !t.skipping {
			log.Printf("Skipping telemetry row longer than %d bytes at offset %d", t.chunk, offset)
		}
		t.skipping = true
		if err := t.store.Save(ctx, t.path, offset+int64(n)); err != nil {
			return nil, fmt.Errorf("failed to save offset: %w", err)
		}
		return nil, nil
	}
	chunk := buf[:end]

	var lines []string
	for _, raw := range bytes.Split(chunk, []byte{'\n'}) {
		lines = append(lines, string(bytes.TrimRight(raw, "\r")))
	}
	if t.skipping {
		// The first line is the tail of the oversized row
		lines = lines[1:]
		t.skipping = false
	}

	if err := t.store.Save(ctx, t.path, offset+int64(end)+1); err != nil {
		return nil, fmt.Errorf("failed to save offset: %w", err)
	}
	return lines, nil
}

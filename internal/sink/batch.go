package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smukkama/gridguard/internal/database"
	"github.com/smukkama/gridguard/internal/protocol"
)

var ErrSinkStopped = &SinkError{"batch sink is stopped"}

// SinkError represents a sink delivery error
type SinkError struct {
	msg string
}

func (e *SinkError) Error() string {
	return e.msg
}

// AlertWriter persists a batch of alerts
type AlertWriter interface {
	InsertAlerts(ctx context.Context, records []database.AlertRecord) error
}

// BatchSink buffers alerts and writes them to the archive when the batch is
// full or the flush interval passes
type BatchSink struct {
	writer        AlertWriter
	batchSize     int
	flushInterval time.Duration
	alerts        chan database.AlertRecord
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.RWMutex
	stopped       bool
}

// NewBatchSink creates a new batch sink
func NewBatchSink(writer AlertWriter, batchSize int, flushInterval time.Duration) *BatchSink {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchSink{
		writer:        writer,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		alerts:        make(chan database.AlertRecord, batchSize*2),
		stopCh:        make(chan struct{}),
	}
}

// Start begins the flush loop
func (bs *BatchSink) Start(ctx context.Context) {
	bs.wg.Add(1)
	go bs.run(ctx)
}

// Stop flushes whatever is buffered and waits for the loop to exit
func (bs *BatchSink) Stop() {
	bs.mu.Lock()
	if bs.stopped {
		bs.mu.Unlock()
		return
	}
	bs.stopped = true
	close(bs.stopCh)
	bs.mu.Unlock()

	bs.wg.Wait()
}

// Deliver queues an alert for the next flush. It blocks while the buffer is
// full.
func (bs *BatchSink) Deliver(ctx context.Context, alert *protocol.DecryptedAlert) error {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	if bs.stopped {
		return ErrSinkStopped
	}
	select {
	case bs.alerts <- database.NewAlertRecord(alert):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (bs *BatchSink) run(ctx context.Context) {
	defer bs.wg.Done()

	var batch []database.AlertRecord
	ticker := time.NewTicker(bs.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-bs.stopCh:
			// Drain what Deliver already queued.
		drain:
			for {
				select {
				case r := <-bs.alerts:
					batch = append(batch, r)
				default:
					break drain
				}
			}
			bs.flush(context.WithoutCancel(ctx), batch)
			return

		case <-ticker.C:
			if len(batch) > 0 {
				bs.flush(ctx, batch)
				batch = nil
			}

		case r := <-bs.alerts:
			batch = append(batch, r)
			if len(batch) >= bs.batchSize {
				bs.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bs *BatchSink) flush(ctx context.Context, batch []database.AlertRecord) {
	if len(batch) == 0 {
		return
	}
	if err := bs.writer.InsertAlerts(ctx, batch); err != nil {
		fmt.Printf("Failed to archive %d alerts: %v\n", len(batch), err)
		return
	}
	fmt.Printf("Archived batch of %d alerts\n", len(batch))
}

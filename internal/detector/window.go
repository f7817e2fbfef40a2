package detector

import "github.com/smukkama/gridguard/internal/telemetry"

const (
	// StreamingWindow is the window length used by the live monitor.
	StreamingWindow = 10
	// EvaluationWindow is the window length used for offline threshold evaluation.
	EvaluationWindow = 60
)

// Window is a fixed-capacity FIFO of the most recent samples.
type Window struct {
	samples  []telemetry.Sample
	start    int
	count    int
	capacity int
}

// NewWindow creates an empty window holding at most capacity samples
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{
		samples:  make([]telemetry.Sample, capacity),
		capacity: capacity,
	}
}

// Add appends a sample, evicting the oldest one when full.
func (w *Window) Add(s telemetry.Sample) {
	if w.count < w.capacity {
		w.samples[(w.start+w.count)%w.capacity] = s
		w.count++
		return
	}
	w.samples[w.start] = s
	w.start = (w.start + 1) % w.capacity
}

// Newest returns the most recently added sample
func (w *Window) Newest() (telemetry.Sample, bool) {
	if w.count == 0 {
		return telemetry.Sample{}, false
	}
	return w.samples[(w.start+w.count-1)%w.capacity], true
}

// Full reports whether the window holds capacity samples
func (w *Window) Full() bool {
	return w.Len() == w.capacity
}

func (w *Window) Len() int {
	return w.count
}

// Samples returns a copy of the buffered samples, oldest first.
func (w *Window) Samples() []telemetry.Sample {
	out := make([]telemetry.Sample, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.samples[(w.start+i)%w.capacity]
	}
	return out
}

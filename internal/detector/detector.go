// Package detector turns a stream of telemetry samples into anomaly scores
// using a sliding window and an opaque reconstruction scorer.
package detector

import (
	"fmt"
	"math"

	"github.com/smukkama/gridguard/internal/telemetry"
)

// Scorer maps a full, time-ordered window to a non-negative anomaly score.
// Implementations must be deterministic and free of side effects the
// detector could observe.
type Scorer interface {
	Score(window []telemetry.Sample) (float64, error)
}

// ScorerFunc adapts a plain function to the Scorer interface
type ScorerFunc func(window []telemetry.Sample) (float64, error)

func (f ScorerFunc) Score(window []telemetry.Sample) (float64, error) {
	return f(window)
}

var ErrInvalidScore = &DetectorError{"scorer returned an invalid score"}

// DetectorError represents a detector error
type DetectorError struct {
	msg string
}

func (e *DetectorError) Error() string {
	return e.msg
}

// Detector owns a sliding window and scores it once full.
type Detector struct {
	window *Window
	scorer Scorer
}

// NewDetector creates a detector with a window of the given size
func NewDetector(size int, scorer Scorer) *Detector {
	return &Detector{
		window: NewWindow(size),
		scorer: scorer,
	}
}

// Push admits a sample. It returns ok=false while the window is warming up
// and a score for every push once the window is full.
//
// A sample older than the newest buffered one is rejected with
// telemetry.ErrOutOfOrder and leaves the window untouched.
func (d *Detector) Push(s telemetry.Sample) (float64, bool, error) {
	if newest, ok := d.window.Newest(); ok && s.ElapsedSeconds < newest.ElapsedSeconds {
		return 0, false, fmt.Errorf("%w (%.3f after %.3f)", telemetry.ErrOutOfOrder, s.ElapsedSeconds, newest.ElapsedSeconds)
	}

	d.window.Add(s)
	if !d.window.Full() {
		return 0, false, nil
	}

	score, err := d.scorer.Score(d.window.Samples())
	if err != nil {
		return 0, false, fmt.Errorf("failed to score window: %w", err)
	}
	if err := validateScore(score); err != nil {
		return 0, false, err
	}
	return score, true, nil
}

// Triggers reports whether a score is anomalous under a threshold.
func Triggers(score, threshold float64) bool {
	return score > threshold
}

func validateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	return nil
}

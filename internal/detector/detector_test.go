package detector

import (
	"errors"
	"math"
	"testing"

	"github.com/smukkama/gridguard/internal/telemetry"
)

func sample(sec float64) telemetry.Sample {
	return telemetry.Sample{ElapsedSeconds: sec, ActivePower: sec * 2, ReactivePower: 1}
}

// recordingScorer remembers the last window it was asked to score.
type recordingScorer struct {
	score float64
	calls int
	last  []telemetry.Sample
}

func (r *recordingScorer) Score(window []telemetry.Sample) (float64, error) {
	r.calls++
	r.last = window
	return r.score, nil
}

func TestDetector_WarmUpThenScore(t *testing.T) {
	scorer := &recordingScorer{score: 50}
	d := NewDetector(StreamingWindow, scorer)

	for i := 0; i < StreamingWindow-1; i++ {
		_, ok, err := d.Push(sample(float64(i)))
		if err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		if ok {
			t.Fatalf("Push %d returned a score during warm-up", i)
		}
	}
	if scorer.calls != 0 {
		t.Errorf("Scorer called %d times during warm-up", scorer.calls)
	}

	score, ok, err := d.Push(sample(9))
	if err != nil || !ok {
		t.Fatalf("10th push should score, got ok=%v err=%v", ok, err)
	}
	if score != 50 || scorer.calls != 1 {
		t.Errorf("Expected one score of 50, got %g after %d calls", score, scorer.calls)
	}
}

func TestDetector_EvictsOldest(t *testing.T) {
	scorer := &recordingScorer{score: 1}
	d := NewDetector(StreamingWindow, scorer)

	for i := 0; i <= StreamingWindow; i++ {
		d.Push(sample(float64(i)))
	}

	if scorer.calls != 2 {
		t.Fatalf("Expected 2 scores, got %d", scorer.calls)
	}
	if len(scorer.last) != StreamingWindow {
		t.Fatalf("Expected window of %d, got %d", StreamingWindow, len(scorer.last))
	}
	for i, s := range scorer.last {
		if s.ElapsedSeconds != float64(i+1) {
			t.Errorf("Window[%d] = %g, expected %d", i, s.ElapsedSeconds, i+1)
		}
	}
}

func TestDetector_RejectsOutOfOrder(t *testing.T) {
	d := NewDetector(3, &recordingScorer{})
	d.Push(sample(5))

	_, _, err := d.Push(sample(4))
	if !errors.Is(err, telemetry.ErrMalformedSample) {
		t.Fatalf("Expected malformed sample error, got %v", err)
	}
	if d.window.Len() != 1 {
		t.Errorf("Rejected sample entered the window")
	}

	if _, _, err := d.Push(sample(5)); err != nil {
		t.Errorf("Equal elapsed time should be admitted: %v", err)
	}
}

func TestDetector_InvalidScores(t *testing.T) {
	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		d := NewDetector(1, ScorerFunc(func([]telemetry.Sample) (float64, error) { return bad, nil }))
		if _, ok, err := d.Push(sample(0)); ok || !errors.Is(err, ErrInvalidScore) {
			t.Errorf("Score %v: expected ErrInvalidScore, got ok=%v err=%v", bad, ok, err)
		}
	}
}

func TestTriggers(t *testing.T) {
	if !Triggers(50, 1.0) {
		t.Error("50 > 1 should trigger")
	}
	if Triggers(50, 2e4) {
		t.Error("50 > 2e4 should not trigger")
	}
	if Triggers(1.0, 1.0) {
		t.Error("Comparison must be strict")
	}
}

func TestWindow_Samples(t *testing.T) {
	w := NewWindow(3)
	for i := 0; i < 5; i++ {
		w.Add(sample(float64(i)))
	}
	got := w.Samples()
	if len(got) != 3 || got[0].ElapsedSeconds != 2 || got[2].ElapsedSeconds != 4 {
		t.Errorf("Unexpected window contents: %+v", got)
	}
	got[0].ElapsedSeconds = 100
	if w.Samples()[0].ElapsedSeconds != 2 {
		t.Error("Samples must return a copy")
	}
}

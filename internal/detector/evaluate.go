package detector

import (
	"fmt"
	"math"

	"github.com/smukkama/gridguard/internal/telemetry"
)

// SigmaMultiplier is the number of standard deviations above the mean at
// which the offline threshold is placed.
const SigmaMultiplier = 3.0

// Evaluation is the result of scoring a complete historical series.
//
// Its threshold looks at every score in the batch, so it is only valid for
// retrospective evaluation, never for live detection.
type Evaluation struct {
	Scores    []float64
	Mean      float64
	StdDev    float64
	Threshold float64
	Predicted []bool
	Actual    []bool
	Report    Report
}

// Evaluate scores every full window of the series and derives
// threshold = mean + 3·stddev over those scores. Window i covers
// samples[i : i+size]; its ground truth is the label of its newest sample.
func Evaluate(samples []telemetry.Sample, scorer Scorer, size int) (*Evaluation, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	if len(samples) < size {
		return nil, fmt.Errorf("need at least %d samples for one window, got %d", size, len(samples))
	}

	n := len(samples) - size + 1
	ev := &Evaluation{
		Scores: make([]float64, 0, n),
		Actual: make([]bool, 0, n),
	}
	for i := 0; i < n; i++ {
		window := samples[i : i+size]
		score, err := scorer.Score(window)
		if err != nil {
			return nil, fmt.Errorf("failed to score window %d: %w", i, err)
		}
		if err := validateScore(score); err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		ev.Scores = append(ev.Scores, score)
		ev.Actual = append(ev.Actual, window[size-1].Label)
	}

	ev.Mean, ev.StdDev = meanStdDev(ev.Scores)
	ev.Threshold = ev.Mean + SigmaMultiplier*ev.StdDev

	ev.Predicted = make([]bool, n)
	for i, s := range ev.Scores {
		ev.Predicted[i] = Triggers(s, ev.Threshold)
	}
	ev.Report = Classify(ev.Actual, ev.Predicted)
	return ev, nil
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	// Welford's online algorithm
	var mean, m2 float64
	for i, v := range values {
		delta := v - mean
		mean += delta / float64(i+1)
		m2 += delta * (v - mean)
	}
	if len(values) == 0 {
		return 0, 0
	}
	return mean, math.Sqrt(m2 / float64(len(values)))
}

// ClassMetrics holds per-class precision/recall figures.
type ClassMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report summarizes predictions against ground truth for the normal (0)
// and anomalous (1) classes.
type Report struct {
	Normal   ClassMetrics
	Anomaly  ClassMetrics
	Accuracy float64
	Total    int
}

// Classify builds a Report. Undefined ratios (zero denominators) are 0.
func Classify(actual, predicted []bool) Report {
	var tp, fp, tn, fn int
	for i := range actual {
		switch {
		case actual[i] && predicted[i]:
			tp++
		case !actual[i] && predicted[i]:
			fp++
		case !actual[i] && !predicted[i]:
			tn++
		default:
			fn++
		}
	}

	r := Report{
		Anomaly: classMetrics(tp, fp, fn),
		Normal:  classMetrics(tn, fn, fp),
		Total:   len(actual),
	}
	r.Accuracy = ratio(tp+tn, len(actual))
	return r
}

func classMetrics(truePos, falsePos, falseNeg int) ClassMetrics {
	m := ClassMetrics{
		Precision: ratio(truePos, truePos+falsePos),
		Recall:    ratio(truePos, truePos+falseNeg),
		Support:   truePos + falseNeg,
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

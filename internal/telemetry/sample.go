// Package telemetry reads substation telemetry rows from the CSV export.
//
// Missing or "nan" power readings are substituted with 0.0. The elapsed
// time is not: it is the ordering key of the detector window, and a
// substituted 0 would either pass as a reading from the start of the
// recording or be rejected as out of order. Rows without a real elapsed
// time are therefore malformed.
package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Row layout: timestamp, voltage_complex, P, Q, V, elapsedSeconds, label
const (
	fieldTimestamp = 0
	fieldP         = 2
	fieldQ         = 3
	fieldElapsed   = 5
	fieldLabel     = 6
	fieldCount     = 7
)

// Sample is one admitted telemetry observation.
type Sample struct {
	ElapsedSeconds  float64
	ActivePower     float64
	ReactivePower   float64
	SourceTimestamp string
	Label           bool // ground truth, only used by offline evaluation
}

var (
	ErrMalformedSample = &SampleError{"malformed sample"}
	ErrOutOfOrder      = fmt.Errorf("%w: elapsed time went backwards", ErrMalformedSample)
	// ErrSkipRow marks header and blank rows; they are not malformed.
	ErrSkipRow = &SampleError{"row skipped"}
)

// SampleError represents a telemetry parse error
type SampleError struct {
	msg string
}

func (e *SampleError) Error() string {
	return e.msg
}

// ParseRow converts one CSV row into a Sample.
//
// Missing or "nan" power readings become 0.0. The elapsed time orders the
// detector window, so it must be a real number.
func ParseRow(line string) (Sample, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Sample{}, ErrSkipRow
	}

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "timestamp" {
		return Sample{}, ErrSkipRow
	}
	if len(parts) != fieldCount {
		return Sample{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedSample, fieldCount, len(parts))
	}

	p, err := parsePower(parts[fieldP])
	if err != nil {
		return Sample{}, fmt.Errorf("%w: active power: %v", ErrMalformedSample, err)
	}
	q, err := parsePower(parts[fieldQ])
	if err != nil {
		return Sample{}, fmt.Errorf("%w: reactive power: %v", ErrMalformedSample, err)
	}
	elapsed, err := strconv.ParseFloat(parts[fieldElapsed], 64)
	if err != nil || math.IsNaN(elapsed) || math.IsInf(elapsed, 0) {
		return Sample{}, fmt.Errorf("%w: elapsed seconds %q", ErrMalformedSample, parts[fieldElapsed])
	}

	return Sample{
		ElapsedSeconds:  elapsed,
		ActivePower:     p,
		ReactivePower:   q,
		SourceTimestamp: parts[fieldTimestamp],
		Label:           parseLabel(parts[fieldLabel]),
	}, nil
}

func parsePower(s string) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nil
	}
	return v, nil
}

func parseLabel(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1":
		return true
	default:
		return false
	}
}

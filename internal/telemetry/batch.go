package telemetry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadSamples parses a whole telemetry CSV. Header and blank rows are
// skipped; malformed rows and rows whose elapsed time goes backwards are
// dropped and counted.
func ReadSamples(r io.Reader) ([]Sample, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var samples []Sample
	rejected := 0
	for scanner.Scan() {
		s, err := ParseRow(scanner.Text())
		if errors.Is(err, ErrSkipRow) {
			continue
		}
		if err != nil {
			rejected++
			continue
		}
		if n := len(samples); n > 0 && s.ElapsedSeconds < samples[n-1].ElapsedSeconds {
			rejected++
			continue
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, rejected, fmt.Errorf("failed to read telemetry: %w", err)
	}
	return samples, rejected, nil
}

// LoadSamples reads a telemetry CSV from disk
func LoadSamples(path string) ([]Sample, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open telemetry: %w", err)
	}
	defer f.Close()
	return ReadSamples(f)
}

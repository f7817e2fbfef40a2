package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseRow_Valid(t *testing.T) {
	s, err := ParseRow("2024-01-01 00:00:05 EST, 7199.8+12.5j, 719.98, 1.25, 7199.81, 5, False")
	if err != nil {
		t.Fatalf("ParseRow failed: %v", err)
	}
	if s.ActivePower != 719.98 || s.ReactivePower != 1.25 || s.ElapsedSeconds != 5 {
		t.Errorf("Unexpected sample: %+v", s)
	}
	if s.SourceTimestamp != "2024-01-01 00:00:05 EST" {
		t.Errorf("Unexpected timestamp: %q", s.SourceTimestamp)
	}
	if s.Label {
		t.Error("Expected label false")
	}
}

func TestParseRow_NaNSubstitution(t *testing.T) {
	s, err := ParseRow("ts,,nan,,NaN,31,True")
	if err != nil {
		t.Fatalf("ParseRow failed: %v", err)
	}
	if s.ActivePower != 0 || s.ReactivePower != 0 {
		t.Errorf("Expected zero powers, got %+v", s)
	}
	if !s.Label {
		t.Error("Expected label true")
	}
}

func TestParseRow_Malformed(t *testing.T) {
	rows := []string{
		"ts,v,1,2,3,4",
		"ts,v,1,2,3,4,False,extra",
		"ts,v,abc,2,3,4,False",
		"ts,v,1,xyz,3,4,False",
		"ts,v,1,2,3,,False",
		"ts,v,1,2,3,nan,False",
	}
	for _, row := range rows {
		if _, err := ParseRow(row); !errors.Is(err, ErrMalformedSample) {
			t.Errorf("Expected ErrMalformedSample for %q, got %v", row, err)
		}
	}
}

func TestParseRow_Skipped(t *testing.T) {
	for _, row := range []string{"", "   ", "timestamp,voltage_C,P_node1,Q_node1,V_node1,time,label"} {
		if _, err := ParseRow(row); err != ErrSkipRow {
			t.Errorf("Expected ErrSkipRow for %q, got %v", row, err)
		}
	}
}

func TestOutOfOrderIsMalformed(t *testing.T) {
	if !errors.Is(ErrOutOfOrder, ErrMalformedSample) {
		t.Error("ErrOutOfOrder should wrap ErrMalformedSample")
	}
}

func appendFile(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestTailer_ReadsOnlyNewCompleteLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "annotated.csv")
	tailer := NewTailer(path, NewMemoryOffsetStore())

	lines, err := tailer.ReadNew(ctx)
	if err != nil || len(lines) != 0 {
		t.Fatalf("Expected no lines for missing file, got %v, %v", lines, err)
	}

	appendFile(t, path, "a\nb\nparti")
	lines, err = tailer.ReadNew(ctx)
	if err != nil {
		t.Fatalf("ReadNew failed: %v", err)
	}
	if len(lines) != 2 || lines[0] != "a" || lines[1] != "b" {
		t.Fatalf("Expected [a b], got %v", lines)
	}

	lines, _ = tailer.ReadNew(ctx)
	if len(lines) != 0 {
		t.Fatalf("Partial line should not be returned, got %v", lines)
	}

	appendFile(t, path, "al\r\nc\n")
	lines, _ = tailer.ReadNew(ctx)
	if len(lines) != 2 || lines[0] != "partial" || lines[1] != "c" {
		t.Fatalf("Expected [partial c], got %v", lines)
	}
}

func TestTailer_ResumesFromStoredOffset(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "annotated.csv")
	store := NewMemoryOffsetStore()
	appendFile(t, path, "one\ntwo\n")

	if _, err := NewTailer(path, store).ReadNew(ctx); err != nil {
		t.Fatalf("ReadNew failed: %v", err)
	}

	appendFile(t, path, "three\n")
	lines, err := NewTailer(path, store).ReadNew(ctx)
	if err != nil {
		t.Fatalf("ReadNew failed: %v", err)
	}
	if len(lines) != 1 || lines[0] != "three" {
		t.Errorf("Expected [three], got %v", lines)
	}
}

func TestTailer_TruncatedFileRestarts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "annotated.csv")
	store := NewMemoryOffsetStore()
	store.Save(ctx, path, 1000)
	appendFile(t, path, "fresh\n")

	lines, err := NewTailer(path, store).ReadNew(ctx)
	if err != nil {
		t.Fatalf("ReadNew failed: %v", err)
	}
	if len(lines) != 1 || lines[0] != "fresh" {
		t.Errorf("Expected [fresh], got %v", lines)
	}
}

func TestTailer_SkipsOversizedRow(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "annotated.csv")
	tailer := NewTailer(path, NewMemoryOffsetStore())
	tailer.chunk = 8

	appendFile(t, path, "0123456789abcdefXYZ\nok\n")

	var got []string
	for i := 0; i < 5; i++ {
		lines, err := tailer.ReadNew(ctx)
		if err != nil {
			t.Fatalf("ReadNew failed: %v", err)
		}
		got = append(got, lines...)
	}
	if len(got) != 1 || got[0] != "ok" {
		t.Fatalf("Expected only [ok] after the oversized row, got %v", got)
	}

	appendFile(t, path, "next\n")
	lines, _ := tailer.ReadNew(ctx)
	if len(lines) != 1 || lines[0] != "next" {
		t.Errorf("Expected [next], got %v", lines)
	}
}

func TestTailer_PartialRowBelowChunkWaits(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "annotated.csv")
	tailer := NewTailer(path, NewMemoryOffsetStore())
	tailer.chunk = 8

	appendFile(t, path, "abc")
	if lines, _ := tailer.ReadNew(ctx); len(lines) != 0 {
		t.Fatalf("Expected no lines, got %v", lines)
	}
	appendFile(t, path, "d\n")
	lines, _ := tailer.ReadNew(ctx)
	if len(lines) != 1 || lines[0] != "abcd" {
		t.Errorf("Expected [abcd], got %v", lines)
	}
}

func TestReadSamples(t *testing.T) {
	csv := "timestamp,voltage_complex,P,Q,V,elapsedSeconds,label\n" +
		"t0,v,1,1,1,0,False\n" +
		"garbage\n" +
		"t1,v,2,2,2,1,True\n" +
		"t2,v,3,3,3,0.5,False\n" +
		"\n" +
		"t3,v,nan,,4,2,False\n"

	samples, rejected, err := ReadSamples(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	if len(samples) != 3 || rejected != 2 {
		t.Fatalf("Expected 3 samples and 2 rejected, got %d and %d", len(samples), rejected)
	}
	if !samples[1].Label || samples[2].ActivePower != 0 {
		t.Errorf("Unexpected samples %+v", samples)
	}
}

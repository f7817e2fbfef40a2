package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telemetry.WindowSize != 10 {
		t.Errorf("Expected window 10, got %d", cfg.Telemetry.WindowSize)
	}
	if cfg.Telemetry.Threshold != 1.0 {
		t.Errorf("Expected threshold 1.0, got %g", cfg.Telemetry.Threshold)
	}
	if cfg.Keys.Suffix != ".bin" {
		t.Errorf("Expected suffix .bin, got %s", cfg.Keys.Suffix)
	}
	if cfg.Cipher.Suite != "aes-256-gcm" {
		t.Errorf("Expected aes-256-gcm, got %s", cfg.Cipher.Suite)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled by default")
	}
	if cfg.Kafka.Enabled() {
		t.Error("Kafka should be disabled by default")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TELEMETRY_THRESHOLD", "20000")
	t.Setenv("TELEMETRY_POLL_INTERVAL", "250ms")
	t.Setenv("TELEMETRY_VERBOSE", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/a.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telemetry.Threshold != 2e4 {
		t.Errorf("Expected threshold 2e4, got %g", cfg.Telemetry.Threshold)
	}
	if cfg.Telemetry.PollInterval != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %s", cfg.Telemetry.PollInterval)
	}
	if !cfg.Telemetry.Verbose {
		t.Error("Expected verbose")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Database.DSN() != "/tmp/a.db" {
		t.Errorf("Unexpected sqlite DSN: %s", cfg.Database.DSN())
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"TELEMETRY_WINDOW":    "0",
		"TELEMETRY_THRESHOLD": "-1",
		"DB_DRIVER":           "mysql",
		"SINK_BATCH_SIZE":     "-5",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%s", key, value)
			}
		})
	}
}

func TestLoad_RejectsUnknownSuite(t *testing.T) {
	t.Setenv("CIPHER_SUITE", "rot13")
	if _, err := Load(); err == nil {
		t.Error("Expected an error for an unknown cipher suite")
	}

	t.Setenv("CIPHER_SUITE", "chacha20-poly1305")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cipher.Suite != "chacha20-poly1305" {
		t.Errorf("Expected chacha20-poly1305, got %s", cfg.Cipher.Suite)
	}
}

func TestLoad_RejectsNonPositiveFlushInterval(t *testing.T) {
	for _, v := range []string{"0s", "-1s"} {
		t.Setenv("SINK_FLUSH_INTERVAL", v)
		if _, err := Load(); err == nil {
			t.Errorf("Expected an error for SINK_FLUSH_INTERVAL=%s", v)
		}
	}
}

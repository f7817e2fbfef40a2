package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/smukkama/gridguard/internal/alert"
)

type Config struct {
	Telemetry TelemetryConfig
	Keys      KeysConfig
	Cipher    CipherConfig
	Model     ModelConfig
	Channel   ChannelConfig
	Status    StatusConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Sink      SinkConfig
	SMTP      SMTPConfig
}

type TelemetryConfig struct {
	CSVPath      string
	PollInterval time.Duration
	WindowSize   int
	Threshold    float64
	Verbose      bool
}

type KeysConfig struct {
	Dir      string
	Suffix   string
	Interval time.Duration
}

type CipherConfig struct {
	Suite string
}

type ModelConfig struct {
	Path string
}

// ChannelConfig configures the alert relay. A zero ListenPort disables the
// relay server; an empty ConnectAddr makes the listener read stdin.
type ChannelConfig struct {
	ListenPort     int
	ConnectAddr    string
	MaxSubscribers int
	WriteTimeout   time.Duration
}

type StatusConfig struct {
	Addr string
}

type DatabaseConfig struct {
	Driver     string // postgres, sqlite, or empty to disable archiving
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type KafkaConfig struct {
	Brokers       []string
	TopicAlerts   string
	NumPartitions int
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type SinkConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Telemetry: TelemetryConfig{
			CSVPath:      getEnv("TELEMETRY_CSV", "data/annotated.csv"),
			PollInterval: getEnvAsDuration("TELEMETRY_POLL_INTERVAL", time.Second),
			WindowSize:   getEnvAsInt("TELEMETRY_WINDOW", 10),
			Threshold:    getEnvAsFloat("TELEMETRY_THRESHOLD", 1.0),
			Verbose:      getEnvAsBool("TELEMETRY_VERBOSE", false),
		},
		Keys: KeysConfig{
			Dir:      getEnv("KEYS_DIR", "keys"),
			Suffix:   getEnv("KEYS_SUFFIX", ".bin"),
			Interval: getEnvAsDuration("KEYS_INTERVAL", 2*time.Second),
		},
		Cipher: CipherConfig{
			Suite: getEnv("CIPHER_SUITE", "aes-256-gcm"),
		},
		Model: ModelConfig{
			Path: getEnv("MODEL_PATH", "model/linear_ae.toml"),
		},
		Channel: ChannelConfig{
			ListenPort:     getEnvAsInt("CHANNEL_LISTEN_PORT", 0),
			ConnectAddr:    getEnv("CHANNEL_CONNECT", ""),
			MaxSubscribers: getEnvAsInt("CHANNEL_MAX_SUBSCRIBERS", 64),
			WriteTimeout:   getEnvAsDuration("CHANNEL_WRITE_TIMEOUT", 5*time.Second),
		},
		Status: StatusConfig{
			Addr: getEnv("STATUS_ADDR", ""),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", ""),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "grid_user"),
			Password:   getEnv("DB_PASSWORD", "grid_pass"),
			DBName:     getEnv("DB_NAME", "grid_alerts"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "alerts.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvAsList("KAFKA_BROKERS"),
			TopicAlerts:   getEnv("KAFKA_TOPIC_ALERTS", "grid.alerts.decrypted"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 1),
		},
		Sink: SinkConfig{
			BatchSize:     getEnvAsInt("SINK_BATCH_SIZE", 50),
			FlushInterval: getEnvAsDuration("SINK_FLUSH_INTERVAL", 5*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "gridguard@example.com"),
			To:       getEnv("SMTP_TO", "operator@example.com"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Telemetry.WindowSize <= 0 {
		return fmt.Errorf("TELEMETRY_WINDOW must be positive, got %d", c.Telemetry.WindowSize)
	}
	if c.Telemetry.PollInterval <= 0 {
		return fmt.Errorf("TELEMETRY_POLL_INTERVAL must be positive, got %s", c.Telemetry.PollInterval)
	}
	if c.Telemetry.Threshold < 0 {
		return fmt.Errorf("TELEMETRY_THRESHOLD must be non-negative, got %g", c.Telemetry.Threshold)
	}
	if c.Keys.Dir == "" {
		return fmt.Errorf("KEYS_DIR is required")
	}
	if c.Keys.Interval <= 0 {
		return fmt.Errorf("KEYS_INTERVAL must be positive, got %s", c.Keys.Interval)
	}
	if !alert.ValidSuite(c.Cipher.Suite) {
		return fmt.Errorf("unsupported CIPHER_SUITE %q", c.Cipher.Suite)
	}
	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Sink.BatchSize <= 0 {
		return fmt.Errorf("SINK_BATCH_SIZE must be positive, got %d", c.Sink.BatchSize)
	}
	if c.Sink.FlushInterval <= 0 {
		return fmt.Errorf("SINK_FLUSH_INTERVAL must be positive, got %s", c.Sink.FlushInterval)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

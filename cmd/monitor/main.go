package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/gridguard/internal/alert"
	"github.com/smukkama/gridguard/internal/channel"
	"github.com/smukkama/gridguard/internal/connection"
	"github.com/smukkama/gridguard/internal/detector"
	"github.com/smukkama/gridguard/internal/keystore"
	"github.com/smukkama/gridguard/internal/metrics"
	"github.com/smukkama/gridguard/internal/model"
	"github.com/smukkama/gridguard/internal/monitor"
	"github.com/smukkama/gridguard/internal/status"
	"github.com/smukkama/gridguard/internal/telemetry"
	"github.com/smukkama/gridguard/pkg/config"
)

// Stdout carries only the packet stream; every diagnostic goes to stderr.
func main() {
	log.SetOutput(os.Stderr)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Fprintln(os.Stderr, "Starting Grid Monitor...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scorer, err := model.Load(cfg.Model.Path)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Model %s loaded from %s\n", scorer.Name(), cfg.Model.Path)

	// Offsets survive restarts only when Redis is configured
	var offsets telemetry.OffsetStore = telemetry.NewMemoryOffsetStore()
	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		offsets = telemetry.NewRedisOffsetStore(redisClient)
		fmt.Fprintln(os.Stderr, "Telemetry offsets checkpointed in Redis")
	}

	m := metrics.New()
	keys, err := keystore.Open(cfg.Keys.Dir, cfg.Keys.Suffix)
	if err != nil {
		log.Fatalf("Failed to open key directory: %v", err)
	}

	var relay channel.Broadcaster
	var relayServer *channel.Server
	if cfg.Channel.ListenPort > 0 {
		server := channel.NewServer(channel.ServerConfig{
			Addr:         fmt.Sprintf(":%d", cfg.Channel.ListenPort),
			WriteTimeout: cfg.Channel.WriteTimeout,
		}, connection.NewManager(cfg.Channel.MaxSubscribers), m)
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start relay server: %v", err)
		}
		defer server.Stop()
		relay = server
		relayServer = server
		fmt.Fprintf(os.Stderr, "Relay server listening on %s\n", server.Addr())
	}

	if cfg.Status.Addr != "" {
		statusServer := status.NewServer("monitor", m, keys)
		if err := statusServer.Start(cfg.Status.Addr); err != nil {
			log.Fatalf("Failed to start status server: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			statusServer.Stop(shutdownCtx)
		}()
	}

	mon := monitor.New(
		monitor.Config{
			Threshold: cfg.Telemetry.Threshold,
			Verbose:   cfg.Telemetry.Verbose,
		},
		telemetry.NewTailer(cfg.Telemetry.CSVPath, offsets),
		detector.NewDetector(cfg.Telemetry.WindowSize, scorer),
		alert.NewEncoder(keys, cfg.Cipher.Suite),
		channel.NewWriter(os.Stdout, relay),
		m,
		log.New(os.Stderr, "", log.LstdFlags),
	)

	fmt.Fprintln(os.Stderr, "\n✓ Grid Monitor is running")
	fmt.Fprintf(os.Stderr, "✓ Tailing %s (window=%d, threshold=%g, suite=%s)\n",
		cfg.Telemetry.CSVPath, cfg.Telemetry.WindowSize, cfg.Telemetry.Threshold, cfg.Cipher.Suite)
	fmt.Fprintln(os.Stderr, "✓ Press Ctrl+C to stop")

	if err := mon.Run(ctx, cfg.Telemetry.PollInterval); err != nil {
		log.Printf("Monitor stopped: %v", err)
	}

	if relayServer != nil {
		stats := relayServer.Stats()
		fmt.Fprintf(os.Stderr, "Relay: %d/%d subscribers, %d lines delivered\n",
			stats.TotalConnections, stats.MaxConnections, stats.LinesDelivered)
	}
	fmt.Fprintf(os.Stderr, "\nShutting down gracefully (%d alerts still pending)...\n", mon.Pending())
}

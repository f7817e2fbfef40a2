package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/gridguard/internal/keystore"
	"github.com/smukkama/gridguard/internal/metrics"
	"github.com/smukkama/gridguard/internal/schedule"
	"github.com/smukkama/gridguard/internal/status"
	"github.com/smukkama/gridguard/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Key Producer...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	store := keystore.NewStore(cfg.Keys.Dir, cfg.Keys.Suffix)
	producer := keystore.NewProducer(store)

	produce := func() {
		key, err := producer.Produce(time.Now())
		if err != nil {
			// Two rotations inside the same second collide on the name
			if errors.Is(err, keystore.ErrKeyExists) {
				log.Printf("Key for this second already exists, skipping")
				return
			}
			log.Printf("Failed to produce key: %v", err)
			return
		}
		m.KeysProduced.Inc()
		fmt.Printf("🔑 Produced key %s\n", key.Name())
	}

	scheduler := schedule.New(1)
	scheduler.Start()
	defer scheduler.Stop()

	// First key right away so encoders never wait a full interval
	if err := scheduler.Schedule("initial-key", time.Now(), produce); err != nil {
		log.Fatalf("Failed to schedule initial key: %v", err)
	}
	if err := scheduler.Every("rotate-key", cfg.Keys.Interval, produce); err != nil {
		log.Fatalf("Failed to schedule key rotation: %v", err)
	}

	if cfg.Status.Addr != "" {
		statusServer := status.NewServer("keyproducer", m, store)
		if err := statusServer.Start(cfg.Status.Addr); err != nil {
			log.Fatalf("Failed to start status server: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			statusServer.Stop(shutdownCtx)
		}()
	}

	fmt.Println("\n✓ Key Producer is running")
	fmt.Printf("✓ Writing a key to %s every %s\n", store.Dir(), cfg.Keys.Interval)
	fmt.Println("✓ Press Ctrl+C to stop")

	<-ctx.Done()

	// No rotation may start once shutdown begins
	scheduler.Cancel("rotate-key")

	stats := scheduler.Stats()
	fmt.Printf("\nShutting down gracefully (%d rotations run)...\n", stats.Executed)
}

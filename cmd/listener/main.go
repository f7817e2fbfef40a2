package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/gridguard/internal/alert"
	"github.com/smukkama/gridguard/internal/channel"
	"github.com/smukkama/gridguard/internal/database"
	"github.com/smukkama/gridguard/internal/keystore"
	"github.com/smukkama/gridguard/internal/listener"
	"github.com/smukkama/gridguard/internal/metrics"
	"github.com/smukkama/gridguard/internal/queue"
	"github.com/smukkama/gridguard/internal/sink"
	"github.com/smukkama/gridguard/internal/status"
	"github.com/smukkama/gridguard/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Alert Listener...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	keys, err := keystore.Open(cfg.Keys.Dir, cfg.Keys.Suffix)
	if err != nil {
		log.Fatalf("Failed to open key directory: %v", err)
	}

	sinks := sink.Multi{sink.NewLogSink(os.Stdout)}

	if cfg.Kafka.Enabled() {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, cfg.Kafka.NumPartitions, 1); err != nil {
			fmt.Printf("Note: Topic creation failed: %v\n", err)
		}
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()
		sinks = append(sinks, sink.NewKafkaSink(producer))
		fmt.Printf("Publishing decrypted alerts to Kafka topic %s\n", cfg.Kafka.TopicAlerts)
	}

	if cfg.Database.Driver != "" {
		db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		batch := sink.NewBatchSink(db, cfg.Sink.BatchSize, cfg.Sink.FlushInterval)
		batch.Start(context.Background())
		defer batch.Stop()
		sinks = append(sinks, batch)
		fmt.Printf("Archiving decrypted alerts to %s\n", db.Driver())
	}

	if cfg.Status.Addr != "" {
		statusServer := status.NewServer("listener", m, keys)
		if err := statusServer.Start(cfg.Status.Addr); err != nil {
			log.Fatalf("Failed to start status server: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			statusServer.Stop(shutdownCtx)
		}()
	}

	// Read the relay when one is configured, otherwise the piped stream
	reader := channel.NewReader(os.Stdin)
	if cfg.Channel.ConnectAddr != "" {
		r, conn, err := channel.Dial(ctx, cfg.Channel.ConnectAddr)
		if err != nil {
			log.Fatalf("Failed to connect to relay: %v", err)
		}
		defer conn.Close()
		// Unblock the reader on shutdown
		go func() {
			<-ctx.Done()
			conn.Close()
		}()
		reader = r
		fmt.Printf("Connected to relay %s\n", cfg.Channel.ConnectAddr)
	}

	l := listener.New(reader, alert.NewDecoder(keys, cfg.Cipher.Suite), sinks, m, nil)

	fmt.Println("\n✓ Alert Listener is running")
	fmt.Printf("✓ Trial decrypting against %s (suite=%s)\n", keys.Dir(), cfg.Cipher.Suite)
	fmt.Println("✓ Press Ctrl+C to stop")

	if err := l.Run(ctx); err != nil {
		log.Printf("Listener stopped: %v", err)
	}

	fmt.Println("\nShutting down gracefully...")
}

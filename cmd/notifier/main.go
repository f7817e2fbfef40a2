package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/smukkama/gridguard/internal/notification"
	"github.com/smukkama/gridguard/internal/queue"
	"github.com/smukkama/gridguard/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.Kafka.Enabled() {
		log.Fatalf("KAFKA_BROKERS is required for the notifier")
	}

	fmt.Println("Starting Notification Service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create email notifier
	notifier := notification.NewEmailNotifier(&cfg.SMTP)

	// Test SMTP connection (optional, will skip if not configured)
	if err := notifier.TestConnection(); err != nil {
		fmt.Printf("Note: %v (notifications will be logged only)\n", err)
	}

	// Create consumer for decrypted alerts
	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, "notification-group")
	defer consumer.Close()
	fmt.Println("Kafka consumer initialized")

	fmt.Println("\n✓ Notification Service is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	for {
		decrypted, msg, err := consumer.ConsumeAlert(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			log.Printf("Failed to consume alert: %v\n", err)
			if msg.Value != nil {
				// Undecodable message, skip it
				consumer.Commit(ctx, msg)
			}
			continue
		}

		// Send notification
		if err := notifier.SendAlert(decrypted); err != nil {
			log.Printf("Failed to send notification: %v\n", err)
			// Don't commit on error - retry
			continue
		}

		// Commit offset
		if err := consumer.Commit(ctx, msg); err != nil {
			log.Printf("Failed to commit offset: %v\n", err)
		}
	}

	stats := consumer.Stats()
	fmt.Printf("\nShutting down gracefully (%d messages consumed)...\n", stats.Messages)
}

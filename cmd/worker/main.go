// Worker consumes session events from Kafka and forwards them to the OTel log
// pipeline and the audit log. Set KAFKA_BROKERS, SESSION_EVENTS_TOPIC, KAFKA_GROUP_ID
// and optionally OTEL_EXPORTER_OTLP_ENDPOINT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"session-authority/internal/app"
	"session-authority/internal/config"
	"session-authority/internal/telemetry"
	"session-authority/internal/telemetry/consumer"
	telemetryotel "session-authority/internal/telemetry/otel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.LogLevel, os.Stdout).With("component", "worker")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    cfg.OTelServiceName + "-worker",
		ServiceVersion: app.Version,
		Insecure:       cfg.OTelInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		_ = providers.Shutdown(shutdownCtx)
	}()

	c, err := consumer.NewKafkaConsumer(cfg.KafkaBrokersList(), cfg.SessionEventsTopic, cfg.KafkaGroupID, log)
	if err != nil {
		return err
	}
	defer c.Close()

	sink := telemetry.Multi{
		consumer.LogSink{Logger: log},
		telemetryotel.NewEventEmitter(providers.LoggerProvider),
	}
	log.Info("consuming session events", "topic", cfg.SessionEventsTopic, "group", cfg.KafkaGroupID)
	err = c.Run(ctx, sink)
	log.Info("worker stopped")
	return err
}

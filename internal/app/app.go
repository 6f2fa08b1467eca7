// Package app wires the session authority runtime: store, codec, telemetry
// sinks and the gRPC and metrics servers.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"session-authority/internal/config"
	"session-authority/internal/db"
	healthhandler "session-authority/internal/health/handler"
	"session-authority/internal/security"
	sessionhandler "session-authority/internal/session/handler"
	"session-authority/internal/session/repository"
	"session-authority/internal/session/service"
	"session-authority/internal/telemetry"
	telemetryotel "session-authority/internal/telemetry/otel"
	"session-authority/internal/telemetry/producer"
)

// Version is reported as the OTel service version; set with -ldflags.
var Version = "dev"

// App owns every long-lived dependency of the authority.
type App struct {
	cfg *config.Config
	log *slog.Logger

	pool      *pgxpool.Pool
	repo      repository.Repository
	authority *service.Authority

	providers *telemetryotel.Providers
	producer  producer.Producer
	registry  *prometheus.Registry
	health    *healthhandler.Server
}

// New constructs a fully wired App from config. Partially built resources are
// released on error.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, nil)
	}
	a := &App{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	if err := a.init(ctx); err != nil {
		_ = a.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.openStore(ctx); err != nil {
		return err
	}

	secrets, err := cfg.TokenSecrets()
	if err != nil {
		return err
	}
	codec, err := security.NewCodec(secrets, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return err
	}

	a.providers, err = telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: Version,
		Insecure:       cfg.OTelInsecure,
	})
	if err != nil {
		return err
	}
	a.providers.SetGlobal()

	kp, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SessionEventsTopic)
	if err != nil {
		return err
	}
	if kp != nil {
		a.producer = kp
	}
	events := telemetry.Multi{telemetryotel.NewEventEmitter(a.providers.LoggerProvider)}
	if a.producer != nil {
		events = append(events, a.producer)
		log.Info("session events published to kafka", "topic", cfg.SessionEventsTopic)
	}

	a.authority = service.NewAuthority(a.repo, codec, service.Config{
		AccessTTL:            cfg.AccessTTL(),
		RefreshTTL:           cfg.RefreshTTL(),
		EmailVerificationTTL: cfg.EmailVerificationTokenTTL(),
		PasswordResetTTL:     cfg.PasswordResetTokenTTL(),
		Retention:            cfg.Retention(),
	},
		service.WithLogger(log),
		service.WithEvents(events),
		service.WithMetrics(service.NewMetrics(a.registry)),
	)

	var pinger healthhandler.Pinger
	if a.pool != nil {
		pinger = a.pool
	}
	a.health = healthhandler.NewServer(pinger, log, sessionhandler.ServiceName)
	return nil
}

func (a *App) openStore(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		if a.cfg.IsProduction() {
			return errors.New("app: in-memory session store is not allowed in production")
		}
		a.log.Warn("DATABASE_URL is not set; using in-memory session store")
		a.repo = repository.NewMemoryRepository()
		return nil
	}
	pool, err := db.Open(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns)
	if err != nil {
		return err
	}
	a.pool = pool
	a.repo = repository.NewPostgresRepository(pool)
	return nil
}

// Authority returns the wired session authority.
func (a *App) Authority() *service.Authority { return a.authority }

// Registry is the Prometheus registry served on /metrics.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Close releases every resource in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.providers != nil {
		errs = append(errs, a.providers.Shutdown(ctx))
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}

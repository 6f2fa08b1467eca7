package handler

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger reports whether the session store is reachable (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the standard gRPC health service driven by a store ping.
type Server struct {
	*health.Server
	pinger   Pinger
	services []string
	logger   *slog.Logger
}

// NewServer returns a health server that reports NOT_SERVING until the first
// Probe. services are the service names reported alongside the overall ("") status.
// If pinger is nil, Probe always reports SERVING.
func NewServer(pinger Pinger, logger *slog.Logger, services ...string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Server: health.NewServer(), pinger: pinger, services: services, logger: logger}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Probe pings the store and updates the reported status.
func (s *Server) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn("health: store ping failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.set(st)
	return st
}

// Run calls Probe every interval until ctx is done, then marks the server NOT_SERVING.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	s.Probe(ctx)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.SetServingStatus("", st)
	for _, name := range s.services {
		s.SetServingStatus(name, st)
	}
}

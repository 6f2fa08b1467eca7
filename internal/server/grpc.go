package server

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "session-authority/internal/health/handler"
	"session-authority/internal/server/interceptors"
	sessionhandler "session-authority/internal/session/handler"
	"session-authority/internal/session/service"
)

// HealthCheckMethod is the unary method of the standard health service.
const HealthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps holds the services exposed over gRPC.
type Deps struct {
	// Authority backs SessionService. If nil, session RPCs return Unimplemented.
	Authority *service.Authority
	// Health is the standard health service. If nil, it is not registered.
	Health *healthhandler.Server
	Logger *slog.Logger
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - authority.v1.SessionService → internal/session/handler
//   - grpc.health.v1.Health       → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	sessionhandler.RegisterSessionServiceServer(s, sessionhandler.NewServer(deps.Authority, deps.Logger))
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}

// Options configures the interceptor chain of NewGRPCServer.
type Options struct {
	// InternalAPIKey authenticates internal methods; empty rejects them all.
	InternalAPIKey string
	// Metrics records per-RPC counters. If nil, no RPC metrics are recorded.
	Metrics *interceptors.RPCMetrics
	// Tracing installs the otelgrpc stats handler.
	Tracing bool
	Logger  *slog.Logger
}

// Policy returns the method policy enforced by the auth interceptor: the
// SessionService rules plus a public health check.
func Policy() interceptors.Policy {
	p := sessionhandler.Policy()
	p[HealthCheckMethod] = interceptors.MethodPolicy{Access: interceptors.Public}
	return p
}

// NewGRPCServer builds a server with the metrics, auth and access log
// interceptors. verifier is usually the same authority passed in Deps.
func NewGRPCServer(verifier interceptors.AccessVerifier, opts Options) *grpc.Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	skip := map[string]bool{HealthCheckMethod: true}
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			interceptors.TelemetryUnary(opts.Metrics, skip),
			interceptors.AuthUnary(verifier, Policy(), opts.InternalAPIKey, logger),
			interceptors.AuditUnary(logger, skip),
		),
	}
	if opts.Tracing {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}
	return grpc.NewServer(serverOpts...)
}

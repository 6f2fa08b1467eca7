package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"session-authority/internal/server"
	"session-authority/internal/server/interceptors"
	"session-authority/internal/session/service"
	"session-authority/internal/telemetry"
)

const healthInterval = 15 * time.Second

// Run serves gRPC and /metrics and runs the sweeper until ctx is done, then
// stops gracefully and closes the App.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
	if err != nil {
		return err
	}

	gs := server.NewGRPCServer(a.authority, server.Options{
		InternalAPIKey: a.cfg.InternalAPIKey,
		Metrics:        interceptors.NewRPCMetrics(a.registry),
		Tracing:        true,
		Logger:         a.log,
	})
	server.RegisterServices(gs, server.Deps{Authority: a.authority, Health: a.health, Logger: a.log})
	if a.cfg.InternalAPIKey == "" {
		a.log.Warn("INTERNAL_API_KEY is not set; internal methods will reject every call")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		a.health.Run(runCtx, healthInterval)
	}()
	go func() {
		defer wg.Done()
		service.NewSweeper(a.authority, a.cfg.CleanupInterval(), a.log).Run(runCtx)
	}()

	var metricsSrv *http.Server
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.log.Info("metrics server listening", "addr", a.cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	go func() {
		a.log.Info("gRPC server listening", "addr", a.cfg.GRPCAddr)
		if err := gs.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.log.Error("server failed", "error", runErr)
	}

	a.log.Info("shutting down gRPC server...")
	cancel()
	gs.GracefulStop()
	if metricsSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		stop()
	}
	wg.Wait()
	// Let in-flight async event emits finish before the sinks close.
	time.Sleep(telemetry.ShutdownDrainDuration)

	closeCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := a.Close(closeCtx); err != nil {
		a.log.Error("shutdown", "error", err)
	}
	a.log.Info("gRPC server stopped")
	return runErr
}

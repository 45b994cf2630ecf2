package main

import (
	"context"
	"estate-live/infrastructure/ws"
	"estate-live/internal"
	"estate-live/observability"
	"estate-live/runtime"
	"estate-live/runtime/workers"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the hub and serves until a signal arrives.
// Returning an error instead of exiting lets every defer run.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	policy, err := config.Policy()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// 2. Hub & Supervision
	metrics := observability.NewMetrics(config.MetricsNamespace)
	registry := runtime.NewRegistry(policy)
	hub := runtime.NewHub(log, registry, metrics, config.BufferSize)

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewDispatchWorker(hub.Inbound(), hub, log),
		workers.NewProcessStatsWorker(log, hub, metrics, config.StatsInterval),
	)

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 4. HTTP Server Setup
	wsServer := ws.NewServer(log, hub, config.ServerConfig())
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           internal.NewRouter(log, wsServer, metrics.Handler(), registry, config.Origins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting hub", "address", config.Address(), "policy", policy, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 5. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		sup.Stop()
		<-supDone
		return err
	}

	// 6. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	// Hijacked websocket connections are not closed by Shutdown.
	hub.CloseAll()
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (default: $STARFALL_CONFIG)")
	addr := flag.String("addr", "", "HTTP listen address, overrides the config")
	clientDir := flag.String("client", "", "Path to the web client directory, overrides the config")
	flag.Parse()

	if err := run(*configPath, *addr, *clientDir); err != nil {
		fmt.Fprintf(os.Stderr, "starfall: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, clientDir string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if clientDir != "" {
		cfg.Server.ClientDir = clientDir
	}
	if d := cfg.Game.IdleTimeout(); d > 0 {
		SessionIdleTimeout = d
	}

	log := NewLogger(cfg.Log)

	db, err := OpenDB(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.Storage.Path, err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := NewMetrics(reg)
	if err != nil {
		return err
	}

	analytics := NewAnalytics(db, log)
	defer analytics.Stop()

	svc := &Services{
		DB:        db,
		Auth:      NewAuth(db, cfg.Auth.JWTSecret, log),
		Analytics: analytics,
		Metrics:   metrics,
		Log:       log,
		Game:      cfg.Game,
	}
	hub := NewHub(svc)
	go hub.Run()

	stopReaper := make(chan struct{})
	go hub.sessions.RunReaper(stopReaper)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           SetupRoutes(hub, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.Server.Addr, "client_dir", cfg.Server.ClientDir, "db", cfg.Storage.Path)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	close(stopReaper)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	hub.sessions.StopAll()
	return nil
}

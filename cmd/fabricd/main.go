// Command fabricd is the reference driver binary: it loads configuration,
// declares a small example state tree, starts the fabric session server,
// and exposes /healthz and /metrics over HTTP — the same "construct
// dependencies, start one HTTP server, block on signal" shape as the
// teacher's cmd/api/main.go, trimmed to this module's single server
// instead of that file's two-dozen subsystem wiring (DESIGN.md).
package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocx/statefabric/internal/config"
	"github.com/ocx/statefabric/internal/wire"
	"github.com/ocx/statefabric/pkg/fabric"
)

func main() {
	cfgPath := os.Getenv("FABRICD_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("fabricd: load config: %v", err)
	}
	slog.SetLogLoggerLevel(cfg.SlogLevel())

	port, err := listenPort(cfg.Server.ListenAddr)
	if err != nil {
		log.Fatalf("fabricd: %v", err)
	}
	host, _, _ := net.SplitHostPort(cfg.Server.ListenAddr)

	driver, err := fabric.New(fabric.Config{
		Port:           port,
		IP:             host,
		Version:        cfg.Handshake.Version,
		Cookies:        cfg.Handshake.Cookies,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, registerExampleState)
	if err != nil {
		log.Fatalf("fabricd: build driver: %v", err)
	}

	if err := driver.Start(); err != nil {
		log.Fatalf("fabricd: start: %v", err)
	}
	slog.Info("fabricd started", "listen_addr", cfg.Server.ListenAddr, "version", cfg.Handshake.Version)

	metricsSrv := startMetricsServer(cfg.Server.MetricsAddr, driver)

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	slog.Info("fabricd: received shutdown signal, shutting down gracefully")
	shutdownCancel()

	if err := driver.Stop(); err != nil {
		slog.Error("fabricd: driver stop error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		slog.Error("fabricd: metrics server shutdown error", "error", err)
	}

	<-shutdownCtx.Done()
	slog.Info("fabricd stopped")
}

// registerExampleState declares the small demo slot tree fabricd ships
// with: one Value, one Signal, and one List, enough to exercise the
// handshake/sync/dispatch path end to end against a real viewer.
func registerExampleState(b *fabric.Builder) {
	exposure := fabric.NewValue(b, "camera.exposure", wire.Float32, float32(0.5))
	exposure.RegisterSignalInterest(true)

	_ = fabric.NewSignal[string](b, "camera.shutter_pressed", wire.String)
	_ = fabric.NewList(b, "camera.recent_captures", wire.String, nil)
}

// listenPort extracts the numeric port fabric.Config wants from a
// host:port listen address; main passes the host part as fabric.Config.IP,
// so an address with no host binds every interface (spec §6's IP
// defaulting to "0.0.0.0").
func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, err
	}
	return port, nil
}

// startMetricsServer exposes /healthz and /metrics on a separate HTTP
// server from the fabric's own WebSocket listener, matching the
// teacher's practice of a dedicated health endpoint alongside the main
// router (cmd/api/main.go's "/health").
func startMetricsServer(addr string, driver *fabric.Driver) *http.Server {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "ok"
		if !driver.IsRunning() {
			status = "not_running"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"connected": driver.IsConnected(),
		})
	}).Methods("GET")

	router.Handle("/metrics", promhttp.HandlerFor(driver.Metrics().Registry, promhttp.HandlerOpts{})).Methods("GET")

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("fabricd: metrics server failed", "error", err)
		}
	}()
	slog.Info("fabricd metrics listening", "addr", addr)
	return srv
}

// Package app wires the ingest pipeline together: sink, registry,
// scanner, dedup buffer and the metrics endpoint.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/koyashiro/home-environments/internal/ble"
	"github.com/koyashiro/home-environments/internal/config"
	"github.com/koyashiro/home-environments/internal/dedup"
	"github.com/koyashiro/home-environments/internal/devices"
	"github.com/koyashiro/home-environments/internal/httpapi"
	"github.com/koyashiro/home-environments/internal/metrics"
	"github.com/koyashiro/home-environments/internal/store"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"timezone", cfg.Timezone,
		"bleAdapter", cfg.BLEAdapter,
		"flushInterval", cfg.FlushInterval,
		"metricsAddr", cfg.MetricsAddr,
	)

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()
	slog.Info("database connection successful")

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	// Without a registry every broadcast would be silently ignored, so
	// a failed load aborts startup.
	registry, err := devices.Load(ctx, st)
	if err != nil {
		return err
	}
	slog.Info("device registry loaded", "devices", registry.Len())
	if registry.Len() == 0 {
		slog.Warn("device catalog is empty; every broadcast will be ignored (dbtool seed-devices)")
	}
	for _, d := range registry.Devices() {
		slog.Info("registered device", "address", d.Addr.String(), "type", d.Type.String(), "name", d.Name)
	}

	metrics.Init(st.DB())

	mux := httpapi.NewMux(st.DB())
	mux.Handle("GET /metrics", metrics.Handler())
	srv := httpapi.NewServer(cfg.MetricsAddr, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics listening", "addr", cfg.MetricsAddr)
		errCh <- srv.ListenAndServe()
	}()

	buf := dedup.NewBuffer()
	ing := newIngester(registry, buf, cfg.Location)

	scanner := ble.NewScanner(ble.Options{Adapter: cfg.BLEAdapter})
	go func() {
		if err := scanner.Run(ctx, ing.Handle); err != nil {
			// Keep serving metrics and retained samples; without an
			// adapter there is simply nothing new to capture.
			slog.Warn("ble scan unavailable (continuing without live capture)", "error", err)
		}
	}()

	ticker := time.NewTicker(cfg.FlushInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ticker.C:
			flushBuffer(ctx, buf, st)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if n, err := buf.Drain(shutdownCtx, st); err != nil {
		slog.Error("final drain failed", "error", err, "buffered", buf.Len())
	} else if n > 0 {
		slog.Info("final drain complete", "rows", n)
	}

	slog.Info("metrics server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

func flushBuffer(ctx context.Context, buf *dedup.Buffer, st *store.Store) {
	start := time.Now()
	n, err := buf.Flush(ctx, time.Now(), st)
	if err != nil {
		metrics.ObserveFlush(metrics.ResultError, 0, time.Since(start))
		slog.Error("flush failed (samples retained for retry)", "error", err, "buffered", buf.Len())
		return
	}
	metrics.ObserveFlush(metrics.ResultSuccess, n, time.Since(start))
	metrics.SetBufferedSamples(buf.Len())
	if n > 0 {
		slog.Info("samples flushed", "rows", n, "buffered", buf.Len())
	}
}

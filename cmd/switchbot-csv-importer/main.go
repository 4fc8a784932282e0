package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/koyashiro/home-environments/internal/config"
	"github.com/koyashiro/home-environments/internal/csvimport"
	"github.com/koyashiro/home-environments/internal/devices"
	"github.com/koyashiro/home-environments/internal/logging"
	"github.com/koyashiro/home-environments/internal/store"
	"github.com/koyashiro/home-environments/internal/switchbot"
)

var version = "dev"
var appName = "switchbot-csv-importer"

func main() {
	deviceID := flag.String("device-id", "", "MAC address the export belongs to")
	file := flag.String("file", "", "path to the SwitchBot app CSV export")
	flag.Parse()

	if *deviceID == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	device, err := switchbot.ParseAddr(*deviceID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -device-id: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, device, *file); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("import failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, device switchbot.Addr, path string) error {
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	// Imports are attributed to a catalog device, never to a free-form
	// address, so the sink's referential checks cannot fail mid-file.
	registry, err := devices.Load(ctx, st)
	if err != nil {
		return err
	}
	d, ok := registry.Lookup(device)
	if !ok {
		return fmt.Errorf("device %s is not registered; seed the catalog first (dbtool seed-devices)", device)
	}

	imp := csvimport.NewImporter(st, cfg.Location, cfg.ImportBatchSize)
	n, err := imp.ImportFile(ctx, device, path)
	if err != nil {
		return err
	}

	slog.Info("import complete",
		"device", d.Name,
		"file", path,
		"rows", n,
		"timezone", cfg.Timezone,
	)
	return nil
}

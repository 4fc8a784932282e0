package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/koyashiro/home-environments/internal/config"
	"github.com/koyashiro/home-environments/internal/logging"
	"github.com/koyashiro/home-environments/internal/store"
	"github.com/koyashiro/home-environments/internal/switchbot"
)

var version = "dev"
var appName = "dbtool"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	switch os.Args[1] {
	case "migrate":
		if err := st.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")
	case "seed-devices":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "usage: %s seed-devices <devices.yaml>\n", os.Args[0])
			os.Exit(1)
		}
		n, err := seedDevices(ctx, st, os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed-devices: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("seeded %d devices\n", n)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <command>\n  migrate              apply pending schema migrations\n  seed-devices <file>  upsert catalog rows from a YAML file\n", os.Args[0])
}

// seedDevice is one catalog row in the seed file:
//
//	- address: aa:bb:cc:dd:ee:01
//	  type: Hub 2
//	  name: Living Room
//	  sort_order: 1
type seedDevice struct {
	Address   string `yaml:"address"`
	Type      string `yaml:"type"`
	Name      string `yaml:"name"`
	SortOrder int    `yaml:"sort_order"`
}

func seedDevices(ctx context.Context, st *store.Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var seeds []seedDevice
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	catalog := make([]switchbot.Device, 0, len(seeds))
	for i, s := range seeds {
		addr, err := switchbot.ParseAddr(s.Address)
		if err != nil {
			return 0, fmt.Errorf("device %d: %w", i, err)
		}
		deviceType, err := switchbot.ParseDeviceType(s.Type)
		if err != nil {
			return 0, fmt.Errorf("device %d (%s): %w", i, s.Address, err)
		}
		catalog = append(catalog, switchbot.Device{
			Addr:      addr,
			Type:      deviceType,
			Name:      s.Name,
			SortOrder: s.SortOrder,
		})
	}

	if err := st.UpsertDevices(ctx, catalog); err != nil {
		return 0, err
	}
	return len(catalog), nil
}

package store

import (
	_ "embed"

	"context"
	"fmt"
	"log/slog"

	"github.com/koyashiro/home-environments/internal/switchbot"
)

//go:embed sql/get-devices.sql
var getDevicesSQL string

//go:embed sql/upsert-device.sql
var upsertDeviceSQL string

// ListDevices returns the full device catalog in sort order.
func (s *Store) ListDevices(ctx context.Context) ([]switchbot.Device, error) {
	rows, err := s.db.QueryContext(ctx, getDevicesSQL)
	if err != nil {
		return nil, fmt.Errorf("get devices: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("Failed to close device rows", "error", err)
		}
	}()

	var devices []switchbot.Device
	for rows.Next() {
		var (
			id        []byte
			typeName  string
			name      string
			sortOrder int
		)
		if err := rows.Scan(&id, &typeName, &name, &sortOrder); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		addr, err := switchbot.AddrFromBytes(id)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", name, err)
		}
		deviceType, err := switchbot.ParseDeviceType(typeName)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", addr, err)
		}
		devices = append(devices, switchbot.Device{
			Addr:      addr,
			Type:      deviceType,
			Name:      name,
			SortOrder: sortOrder,
		})
	}
	return devices, rows.Err()
}

// UpsertDevices inserts or updates catalog rows keyed by address. All
// rows apply in one transaction so a partial seed never becomes
// visible.
func (s *Store) UpsertDevices(ctx context.Context, devices []switchbot.Device) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin device upsert: %w", err)
	}
	for _, d := range devices {
		if _, err := tx.ExecContext(ctx, upsertDeviceSQL, d.Addr[:], d.Type.String(), d.Name, d.SortOrder); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert device %s: %w", d.Addr, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit device upsert: %w", err)
	}
	return nil
}

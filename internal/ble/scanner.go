// Package ble wraps BlueZ scanning with context cancellation and
// normalizes scan results into advertisements the ingest pipeline can
// consume.
package ble

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/koyashiro/home-environments/internal/switchbot"
)

// Advertisement is a single BLE broadcast observation.
type Advertisement struct {
	Addr             switchbot.Addr
	RSSI             int16
	LocalName        string
	ManufacturerData map[uint16][]byte
	ServiceData      map[string][]byte
	SeenAt           time.Time
}

type Options struct {
	Adapter string // "hci0" by default
}

// Scanner listens for advertisements on one adapter.
type Scanner struct {
	adapter *bluetooth.Adapter
	opts    Options
}

func NewScanner(opts Options) *Scanner {
	if opts.Adapter == "" {
		opts.Adapter = "hci0"
	}

	return &Scanner{
		adapter: bluetooth.NewAdapter(opts.Adapter),
		opts:    opts,
	}
}

func (s *Scanner) Run(ctx context.Context, onAdvertisement func(Advertisement)) error {
	slog.Info("ble: enabling adapter", "adapter", s.opts.Adapter)
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable (%s): %w", s.opts.Adapter, err)
	}
	slog.Info("ble: adapter enabled", "adapter", s.opts.Adapter)

	go func() {
		<-ctx.Done()
		_ = s.adapter.StopScan()
	}()

	slog.Info("ble: scanning started", "adapter", s.opts.Adapter)

	// adapter.Scan blocks until StopScan() or error.
	err := s.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		adv, err := advertisementFrom(r.Address.String(), r.RSSI, r.LocalName(), r.ManufacturerData(), r.ServiceData(), time.Now())
		if err != nil {
			// Non-MAC addresses cannot belong to a registered device.
			slog.Debug("ble: skipping advertisement", "address", r.Address.String(), "error", err)
			return
		}
		if onAdvertisement != nil {
			onAdvertisement(adv)
		}
	})

	// If ctx canceled, treat as clean shutdown.
	if ctx.Err() != nil {
		slog.Info("ble: scanning stopped (context canceled)")
		return nil
	}

	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}

	slog.Info("ble: scanning stopped")
	return nil
}

func advertisementFrom(
	address string,
	rssi int16,
	localName string,
	manufacturerData []bluetooth.ManufacturerDataElement,
	serviceData []bluetooth.ServiceDataElement,
	seenAt time.Time,
) (Advertisement, error) {
	addr, err := switchbot.ParseAddr(address)
	if err != nil {
		return Advertisement{}, err
	}

	adv := Advertisement{
		Addr:      addr,
		RSSI:      rssi,
		LocalName: localName,
		SeenAt:    seenAt,
	}
	if len(manufacturerData) > 0 {
		adv.ManufacturerData = make(map[uint16][]byte, len(manufacturerData))
		for _, md := range manufacturerData {
			adv.ManufacturerData[md.CompanyID] = append([]byte(nil), md.Data...)
		}
	}
	if len(serviceData) > 0 {
		adv.ServiceData = make(map[string][]byte, len(serviceData))
		for _, sd := range serviceData {
			adv.ServiceData[sd.UUID.String()] = append([]byte(nil), sd.Data...)
		}
	}
	return adv, nil
}

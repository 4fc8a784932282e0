package app

import (
	"log/slog"
	"time"

	"github.com/koyashiro/home-environments/internal/ble"
	"github.com/koyashiro/home-environments/internal/dedup"
	"github.com/koyashiro/home-environments/internal/devices"
	"github.com/koyashiro/home-environments/internal/metrics"
	"github.com/koyashiro/home-environments/internal/ratoc"
	"github.com/koyashiro/home-environments/internal/switchbot"
)

// ingester turns scanned advertisements into buffered observations.
type ingester struct {
	registry *devices.Registry
	buf      *dedup.Buffer
	location *time.Location
}

func newIngester(registry *devices.Registry, buf *dedup.Buffer, location *time.Location) *ingester {
	if location == nil {
		location = time.UTC
	}
	return &ingester{registry: registry, buf: buf, location: location}
}

// Handle processes one advertisement. It runs on the scan callback, so
// it must not block.
func (in *ingester) Handle(adv ble.Advertisement) {
	// Power meters broadcast under their own company ID and are not
	// part of the environment schema. Surface the reading and move on.
	if data, ok := adv.ManufacturerData[ratoc.CompanyID]; ok {
		in.handleWattChecker(adv, data)
		return
	}

	device, ok := in.registry.Lookup(adv.Addr)
	if !ok {
		metrics.IncAdvertisement(metrics.AdvertisementUnknownDevice)
		slog.Debug("ignoring advertisement from unregistered device",
			"address", adv.Addr.String(),
			"name", adv.LocalName,
			"rssi", adv.RSSI,
		)
		return
	}

	// Registered devices also broadcast frames without sensor data,
	// e.g. pairing beacons. Those are not decode failures.
	if len(adv.ServiceData[switchbot.ServiceDataUUID]) == 0 && len(adv.ManufacturerData[switchbot.CompanyID]) == 0 {
		metrics.IncAdvertisement(metrics.AdvertisementNoPayload)
		slog.Debug("advertisement carries no sensor payload", "device", device.Name, "address", adv.Addr.String())
		return
	}

	m, err := switchbot.DecodeBLEData(device.Type, adv.ManufacturerData, adv.ServiceData)
	if err != nil {
		metrics.IncAdvertisement(metrics.AdvertisementDecodeError)
		slog.Warn("decode failed",
			"device", device.Name,
			"address", adv.Addr.String(),
			"type", device.Type.String(),
			"error", err,
		)
		return
	}

	outcome := in.buf.Offer(adv.Addr, adv.SeenAt, m)
	metrics.IncAdvertisement(outcome.String())
	metrics.SetBufferedSamples(in.buf.Len())
	slog.Debug("observation buffered",
		"device", device.Name,
		"observedAt", adv.SeenAt.In(in.location).Format(time.RFC3339),
		"temperature", m.Temperature,
		"humidity", m.Humidity,
		"outcome", outcome.String(),
	)
}

func (in *ingester) handleWattChecker(adv ble.Advertisement, data []byte) {
	metrics.IncAdvertisement(metrics.AdvertisementWattChecker)
	m, err := ratoc.Decode(data)
	if err != nil {
		slog.Debug("wattchecker decode failed", "address", adv.Addr.String(), "error", err)
		return
	}
	slog.Debug("wattchecker reading",
		"address", adv.Addr.String(),
		"voltage", m.Voltage,
		"current_ma", m.Current,
		"power", m.Power,
	)
}

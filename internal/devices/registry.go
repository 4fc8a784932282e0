// Package devices holds the in-memory registry of known sensors. The
// registry is loaded once at startup; broadcasts from addresses not in
// it are ignored.
package devices

import (
	"context"
	"fmt"

	"github.com/koyashiro/home-environments/internal/switchbot"
)

// Catalog is the source the registry loads from. *store.Store
// satisfies it.
type Catalog interface {
	ListDevices(ctx context.Context) ([]switchbot.Device, error)
}

// Registry answers whether a BLE address belongs to a known device.
// It is immutable after Load and safe for concurrent reads.
type Registry struct {
	byAddr  map[switchbot.Addr]switchbot.Device
	ordered []switchbot.Device
}

// Load reads the full catalog. An empty catalog is valid; a failed
// read is not, since running without a registry would silently ignore
// every broadcast.
func Load(ctx context.Context, catalog Catalog) (*Registry, error) {
	devices, err := catalog.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device registry: %w", err)
	}
	byAddr := make(map[switchbot.Addr]switchbot.Device, len(devices))
	for _, d := range devices {
		byAddr[d.Addr] = d
	}
	return &Registry{byAddr: byAddr, ordered: devices}, nil
}

// Lookup returns the device registered at addr.
func (r *Registry) Lookup(addr switchbot.Addr) (switchbot.Device, bool) {
	d, ok := r.byAddr[addr]
	return d, ok
}

// Devices returns the registered devices in catalog order.
func (r *Registry) Devices() []switchbot.Device {
	return r.ordered
}

func (r *Registry) Len() int {
	return len(r.byAddr)
}

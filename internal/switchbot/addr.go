package switchbot

import (
	"fmt"
	"net"
)

// Addr is the 6-byte hardware address a device broadcasts from.
// It is comparable, so it can key maps directly.
type Addr [6]byte

// ParseAddr parses a textual hardware address such as
// "e4:5f:01:23:45:67". Both cases and dash separators are accepted.
func ParseAddr(s string) (Addr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return Addr{}, fmt.Errorf("parse device address: %w", err)
	}
	if len(hw) != len(Addr{}) {
		return Addr{}, fmt.Errorf("device address %q: expected %d bytes, got %d", s, len(Addr{}), len(hw))
	}
	var a Addr
	copy(a[:], hw)
	return a, nil
}

// AddrFromBytes converts a raw 6-byte catalog id into an Addr.
func AddrFromBytes(b []byte) (Addr, error) {
	if len(b) != len(Addr{}) {
		return Addr{}, fmt.Errorf("device address: expected %d bytes, got %d", len(Addr{}), len(b))
	}
	var a Addr
	copy(a[:], b)
	return a, nil
}

func (a Addr) String() string { return net.HardwareAddr(a[:]).String() }

// Package ratoc decodes RATOC Systems RS-BTWATTCH2 watt-checker BLE
// advertisements.
package ratoc

import (
	"encoding/binary"
	"fmt"
)

// CompanyID keys RATOC Systems manufacturer data in an advertisement.
const CompanyID uint16 = 0x0b60

const minPayloadLen = 8

// Measurement is one decoded power reading. It is a different shape
// from an environment measurement and never mixes with one.
type Measurement struct {
	Voltage float64 // volts
	Current uint16  // milliamps
	Power   float64 // watts
}

// Decode decodes the watt checker's manufacturer data payload. Byte 0
// is the relay state, which is not part of the measurement.
func Decode(data []byte) (Measurement, error) {
	if len(data) < minPayloadLen {
		return Measurement{}, fmt.Errorf("manufacturer data too short: expected at least %d bytes, got %d", minPayloadLen, len(data))
	}

	voltage := float64(binary.LittleEndian.Uint16(data[1:3])) / 10
	current := binary.LittleEndian.Uint16(data[3:5])
	// Power is a 24-bit big-endian field, zero-extended, in milliwatts.
	power := float64(uint32(data[5])<<16|uint32(data[6])<<8|uint32(data[7])) / 1000

	return Measurement{
		Voltage: voltage,
		Current: current,
		Power:   power,
	}, nil
}

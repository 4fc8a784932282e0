package switchbot

import "fmt"

// DeviceType is the closed set of SwitchBot models a catalog row can
// declare. The string values match the catalog's type column exactly.
type DeviceType string

const (
	Hub         DeviceType = "Hub"
	HubMini     DeviceType = "Hub Mini"
	Hub2        DeviceType = "Hub 2"
	Hub3        DeviceType = "Hub 3"
	Meter       DeviceType = "Meter"
	MeterPlus   DeviceType = "MeterPlus"
	WoIOSensor  DeviceType = "WoIOSensor"
	MeterPro    DeviceType = "MeterPro"
	MeterProCO2 DeviceType = "MeterPro(CO2)"
)

// ParseDeviceType validates s against the closed model set.
func ParseDeviceType(s string) (DeviceType, error) {
	switch t := DeviceType(s); t {
	case Hub, HubMini, Hub2, Hub3, Meter, MeterPlus, WoIOSensor, MeterPro, MeterProCO2:
		return t, nil
	default:
		return "", fmt.Errorf("unknown device type: %q", s)
	}
}

func (t DeviceType) String() string { return string(t) }

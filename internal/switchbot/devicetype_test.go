package switchbot

import "testing"

func TestParseDeviceType(t *testing.T) {
	for _, s := range []string{
		"Hub", "Hub Mini", "Hub 2", "Hub 3", "Meter",
		"MeterPlus", "WoIOSensor", "MeterPro", "MeterPro(CO2)",
	} {
		dt, err := ParseDeviceType(s)
		if err != nil {
			t.Errorf("ParseDeviceType(%q): %v", s, err)
			continue
		}
		if dt.String() != s {
			t.Errorf("ParseDeviceType(%q): round-trip got %q", s, dt.String())
		}
	}
}

func TestParseDeviceType_Unknown(t *testing.T) {
	if _, err := ParseDeviceType("Bot"); err == nil {
		t.Error("ParseDeviceType(Bot): expected error")
	}
	if _, err := ParseDeviceType("meterplus"); err == nil {
		t.Error("ParseDeviceType is case-sensitive: expected error for lowercase")
	}
}

package ratoc

import (
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	// relay on, 100.5 V, 1234 mA, 123.456 W
	data := []byte{0x01, 0xed, 0x03, 0xd2, 0x04, 0x01, 0xe2, 0x40}

	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Voltage != 100.5 {
		t.Errorf("voltage: got %v, want 100.5", m.Voltage)
	}
	if m.Current != 1234 {
		t.Errorf("current: got %d, want 1234", m.Current)
	}
	if m.Power != 123.456 {
		t.Errorf("power: got %v, want 123.456", m.Power)
	}
}

func TestDecode_RelayFlagIgnored(t *testing.T) {
	off := []byte{0x00, 0xe8, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00}
	on := []byte{0x01, 0xe8, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00}

	mOff, err := Decode(off)
	if err != nil {
		t.Fatalf("Decode(relay off): %v", err)
	}
	mOn, err := Decode(on)
	if err != nil {
		t.Fatalf("Decode(relay on): %v", err)
	}
	if mOff != mOn {
		t.Errorf("relay flag changed the measurement: %+v vs %+v", mOff, mOn)
	}
	if mOff.Voltage != 100.0 {
		t.Errorf("voltage: got %v, want 100.0", mOff.Voltage)
	}
}

func TestDecode_Truncated(t *testing.T) {
	_, err := Decode(make([]byte, 7))
	if err == nil {
		t.Fatal("Decode(7 bytes): expected error")
	}
	if !strings.Contains(err.Error(), "expected at least 8 bytes, got 7") {
		t.Errorf("error should report expected and actual lengths, got %q", err)
	}
}

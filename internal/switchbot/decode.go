// Package switchbot implements the SwitchBot BLE broadcast protocol:
// the device catalog model set and bit-exact decoding of environment
// measurements from advertisement payloads.
//
// Ref: https://github.com/OpenWonderLabs/SwitchBotAPI-BLE
package switchbot

import (
	"encoding/binary"
	"fmt"
)

// CompanyID keys SwitchBot manufacturer data in an advertisement.
const CompanyID uint16 = 0x0969

// ServiceDataUUID keys SwitchBot service data in an advertisement, in
// canonical 128-bit form.
const ServiceDataUUID = "0000fd3d-0000-1000-8000-00805f9b34fb"

// DecodeBLEData decodes one advertisement into a Measurement.
//
// The service-data path is tried first: the leading service-data byte
// identifies the device model, so that payload is self-describing. If
// it fails, the manufacturer data is decoded using the declared model,
// the one the catalog registered for the device. When neither path
// succeeds both errors are reported.
func DecodeBLEData(declared DeviceType, manufacturerData map[uint16][]byte, serviceData map[string][]byte) (Measurement, error) {
	m, svcErr := decodeWithServiceData(manufacturerData, serviceData)
	if svcErr == nil {
		return m, nil
	}

	m, mfrErr := DecodeManufacturerData(declared, manufacturerData)
	if mfrErr == nil {
		return m, nil
	}

	return Measurement{}, fmt.Errorf("service data: %w; declared model: %w", svcErr, mfrErr)
}

func decodeWithServiceData(manufacturerData map[uint16][]byte, serviceData map[string][]byte) (Measurement, error) {
	svc, ok := serviceData[ServiceDataUUID]
	if !ok {
		return Measurement{}, fmt.Errorf("service data %s: %w", ServiceDataUUID, ErrNotFound)
	}
	if len(svc) < 1 {
		return Measurement{}, &TruncatedError{Expected: 1, Actual: len(svc)}
	}
	model, err := detectDeviceType(svc[0])
	if err != nil {
		return Measurement{}, err
	}
	return DecodeManufacturerData(model, manufacturerData)
}

// DecodeManufacturerData decodes SwitchBot manufacturer data using the
// layout of the given device model.
func DecodeManufacturerData(model DeviceType, manufacturerData map[uint16][]byte) (Measurement, error) {
	data, ok := manufacturerData[CompanyID]
	if !ok {
		return Measurement{}, fmt.Errorf("manufacturer data %#04x: %w", CompanyID, ErrNotFound)
	}

	switch model {
	case Hub2:
		return decodeHub2(data)
	case MeterPlus:
		return decodeMeterPlus(data)
	case WoIOSensor:
		return decodeWoIOSensor(data)
	case MeterProCO2:
		return decodeMeterProCO2(data)
	default:
		// Hub, Hub Mini, Hub 3, Meter and MeterPro are valid catalog
		// models whose manufacturer-data layout is not published.
		return Measurement{}, fmt.Errorf("%s: %w", model, ErrUnsupportedModel)
	}
}

// detectDeviceType maps the leading service-data byte to a model.
func detectDeviceType(b byte) (DeviceType, error) {
	switch b {
	case 0x76:
		return Hub2, nil
	case 0x54:
		return Meter, nil
	case 0x69:
		return MeterPlus, nil
	case 0x77:
		return WoIOSensor, nil
	case 0x35:
		return MeterProCO2, nil
	default:
		return "", &UnknownVariantError{Variant: b}
	}
}

func decodeHub2(data []byte) (Measurement, error) {
	if len(data) < 17 {
		return Measurement{}, &TruncatedError{Expected: 17, Actual: len(data)}
	}

	temperature := decodeTemperature(data[13], data[14])
	humidity, err := decodeHumidity(data[15])
	if err != nil {
		return Measurement{}, err
	}
	light, err := decodeLightLevel(data[12])
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{
		Temperature: temperature,
		Humidity:    humidity,
		Light:       &light,
	}, nil
}

func decodeMeterPlus(data []byte) (Measurement, error) {
	if len(data) < 11 {
		return Measurement{}, &TruncatedError{Expected: 11, Actual: len(data)}
	}

	temperature := decodeTemperature(data[8], data[9])
	humidity, err := decodeHumidity(data[10])
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{
		Temperature: temperature,
		Humidity:    humidity,
	}, nil
}

func decodeWoIOSensor(data []byte) (Measurement, error) {
	if len(data) < 12 {
		return Measurement{}, &TruncatedError{Expected: 12, Actual: len(data)}
	}

	temperature := decodeTemperature(data[8], data[9])
	humidity, err := decodeHumidity(data[10])
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{
		Temperature: temperature,
		Humidity:    humidity,
	}, nil
}

func decodeMeterProCO2(data []byte) (Measurement, error) {
	if len(data) < 16 {
		return Measurement{}, &TruncatedError{Expected: 16, Actual: len(data)}
	}

	temperature := decodeTemperature(data[8], data[9])
	humidity, err := decodeHumidity(data[10])
	if err != nil {
		return Measurement{}, err
	}
	co2 := decodeCO2(data[13:15])

	return Measurement{
		Temperature: temperature,
		Humidity:    humidity,
		CO2:         &co2,
	}, nil
}

// decodeTemperature unpacks the two-byte temperature field: the low
// nibble of lo is the fractional decimal digit, the low seven bits of
// hi are the integral part, and the top bit of hi is the sign flag
// (set means positive).
func decodeTemperature(lo, hi byte) float64 {
	fractional := int(lo & 0x0f)
	integral := int(hi & 0x7f)
	sign := -1
	if hi&0x80 != 0 {
		sign = 1
	}
	return float64(sign*(integral*10+fractional)) / 10
}

func decodeHumidity(b byte) (uint8, error) {
	humidity := b & 0x7f
	if humidity > 100 {
		return 0, &OutOfRangeError{Field: "humidity", Value: uint16(humidity), Max: 100}
	}
	return humidity, nil
}

func decodeCO2(v []byte) uint16 {
	return binary.BigEndian.Uint16(v)
}

func decodeLightLevel(b byte) (uint8, error) {
	lightLevel := b & 0x7f
	if lightLevel > 20 {
		return 0, &OutOfRangeError{Field: "light level", Value: uint16(lightLevel), Max: 20}
	}
	return lightLevel, nil
}

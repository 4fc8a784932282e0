// Package csvimport loads historical measurements from SwitchBot app
// CSV exports. The app emits a few column layouts depending on the
// device model; the layout is sniffed from the header row.
package csvimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/koyashiro/home-environments/internal/metrics"
	"github.com/koyashiro/home-environments/internal/store"
	"github.com/koyashiro/home-environments/internal/switchbot"
)

// timestampLayout matches the app export format. Timestamps are naive
// and interpreted in the configured timezone.
const timestampLayout = "2006-01-02 15:04"

const (
	measuredAtIndex  = 0
	temperatureIndex = 1
	humidityIndex    = 2
	co2Index         = 3
	lightLevelIndex  = 6
)

type format int

const (
	formatTemperatureHumidity format = iota
	formatTemperatureHumidityCO2
	formatTemperatureHumidityLight
)

// maxIndex is the highest column the format reads.
func (f format) maxIndex() int {
	switch f {
	case formatTemperatureHumidityCO2:
		return co2Index
	case formatTemperatureHumidityLight:
		return lightLevelIndex
	default:
		return humidityIndex
	}
}

func detectFormat(header []string) format {
	line := strings.Join(header, ",")
	if strings.Contains(line, "Co2") {
		return formatTemperatureHumidityCO2
	}
	if strings.Contains(line, "Light_Value") {
		return formatTemperatureHumidityLight
	}
	return formatTemperatureHumidity
}

// Sink receives parsed rows. *store.Store satisfies it.
type Sink interface {
	InsertMeasurements(ctx context.Context, measurements []store.Measurement) error
}

// Importer parses an export file and writes it to the sink in batches.
type Importer struct {
	sink      Sink
	location  *time.Location
	batchSize int
}

func NewImporter(sink Sink, location *time.Location, batchSize int) *Importer {
	if location == nil {
		location = time.UTC
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Importer{sink: sink, location: location, batchSize: batchSize}
}

// ImportFile imports one export file attributed to device. It returns
// the number of rows written.
func (i *Importer) ImportFile(ctx context.Context, device switchbot.Addr, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return i.Import(ctx, device, f)
}

// Import reads export rows from r and writes them to the sink. Any
// malformed row aborts the import; rows from completed batches stay
// persisted, and rerunning the import is safe because the sink ignores
// rows that already exist.
func (i *Importer) Import(ctx context.Context, device switchbot.Addr, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	f := detectFormat(header)
	if len(header) <= f.maxIndex() {
		return 0, fmt.Errorf("csv header has %d columns, need at least %d", len(header), f.maxIndex()+1)
	}

	total := 0
	batch := make([]store.Measurement, 0, i.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.sink.InsertMeasurements(ctx, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		total += len(batch)
		metrics.AddImportedRows(len(batch))
		batch = batch[:0]
		return nil
	}

	// The header is line 1.
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("row %d: %w", line, err)
		}
		m, err := i.parseRow(device, f, row)
		if err != nil {
			return total, fmt.Errorf("row %d: %w", line, err)
		}
		batch = append(batch, m)
		if len(batch) >= i.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

func (i *Importer) parseRow(device switchbot.Addr, f format, row []string) (store.Measurement, error) {
	measuredAt, err := time.ParseInLocation(timestampLayout, row[measuredAtIndex], i.location)
	if err != nil {
		return store.Measurement{}, fmt.Errorf("parse timestamp %q: %w", row[measuredAtIndex], err)
	}
	temperature, err := strconv.ParseFloat(row[temperatureIndex], 64)
	if err != nil {
		return store.Measurement{}, fmt.Errorf("parse temperature %q: %w", row[temperatureIndex], err)
	}
	humidity, err := strconv.ParseUint(row[humidityIndex], 10, 8)
	if err != nil {
		return store.Measurement{}, fmt.Errorf("parse humidity %q: %w", row[humidityIndex], err)
	}

	m := store.Measurement{
		Device:      device,
		MeasuredAt:  measuredAt,
		Temperature: temperature,
		Humidity:    uint8(humidity),
	}
	switch f {
	case formatTemperatureHumidityCO2:
		co2, err := strconv.ParseUint(row[co2Index], 10, 16)
		if err != nil {
			return store.Measurement{}, fmt.Errorf("parse CO2 %q: %w", row[co2Index], err)
		}
		v := uint16(co2)
		m.CO2 = &v
	case formatTemperatureHumidityLight:
		light, err := strconv.ParseUint(row[lightLevelIndex], 10, 8)
		if err != nil {
			return store.Measurement{}, fmt.Errorf("parse light level %q: %w", row[lightLevelIndex], err)
		}
		v := uint8(light)
		m.Light = &v
	}
	return m, nil
}

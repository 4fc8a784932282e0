package csvimport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koyashiro/home-environments/internal/store"
	"github.com/koyashiro/home-environments/internal/switchbot"
)

// Ensure the production sink satisfies the interface.
var _ Sink = (*store.Store)(nil)

type fakeSink struct {
	batches [][]store.Measurement
	err     error
}

func (f *fakeSink) InsertMeasurements(_ context.Context, measurements []store.Measurement) error {
	if f.err != nil {
		return f.err
	}
	batch := make([]store.Measurement, len(measurements))
	copy(batch, measurements)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeSink) rows() []store.Measurement {
	var all []store.Measurement
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

func mustAddr(t *testing.T, s string) switchbot.Addr {
	t.Helper()
	addr, err := switchbot.ParseAddr(s)
	if err != nil {
		t.Fatalf("ParseAddr(%q): %v", s, err)
	}
	return addr
}

const meterHeader = "Timestamp,Temperature_Celsius(°C),Relative_Humidity(%)"

func TestImport_TemperatureHumidityLayout(t *testing.T) {
	sink := &fakeSink{}
	imp := NewImporter(sink, time.UTC, 0)
	device := mustAddr(t, "aa:bb:cc:dd:ee:01")

	input := meterHeader + "\n" +
		"2024-01-15 09:30,21.5,48\n" +
		"2024-01-15 09:31,-0.5,93\n"

	n, err := imp.Import(context.Background(), device, strings.NewReader(input))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Fatalf("Import: got %d rows, want 2", n)
	}

	rows := sink.rows()
	if len(rows) != 2 {
		t.Fatalf("sink rows: got %d, want 2", len(rows))
	}
	want := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	if !rows[0].MeasuredAt.Equal(want) {
		t.Errorf("MeasuredAt = %v, want %v", rows[0].MeasuredAt, want)
	}
	if rows[0].Device != device || rows[0].Temperature != 21.5 || rows[0].Humidity != 48 {
		t.Errorf("row 0: got %+v", rows[0])
	}
	if rows[0].CO2 != nil || rows[0].Light != nil {
		t.Errorf("row 0 optional fields: got co2=%v light=%v, want nil nil", rows[0].CO2, rows[0].Light)
	}
	if rows[1].Temperature != -0.5 {
		t.Errorf("row 1 temperature: got %v, want -0.5", rows[1].Temperature)
	}
}

func TestImport_CO2Layout(t *testing.T) {
	sink := &fakeSink{}
	imp := NewImporter(sink, time.UTC, 0)

	input := meterHeader + ",Co2(ppm)\n" +
		"2024-01-15 09:30,21.5,48,624\n"

	n, err := imp.Import(context.Background(), mustAddr(t, "aa:bb:cc:dd:ee:01"), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 1 {
		t.Fatalf("Import: got %d rows, want 1", n)
	}

	row := sink.rows()[0]
	if row.CO2 == nil || *row.CO2 != 624 {
		t.Errorf("CO2: got %v, want 624", row.CO2)
	}
	if row.Light != nil {
		t.Errorf("Light: got %v, want nil", row.Light)
	}
}

func TestImport_LightLevelLayout(t *testing.T) {
	sink := &fakeSink{}
	imp := NewImporter(sink, time.UTC, 0)

	input := meterHeader + ",DPT_Celsius(°C),VPD(kPa),Absolute_Humidity(g/m³),Light_Value\n" +
		"2024-01-15 09:30,21.5,48,9.9,0.62,9.14,14\n"

	n, err := imp.Import(context.Background(), mustAddr(t, "aa:bb:cc:dd:ee:01"), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 1 {
		t.Fatalf("Import: got %d rows, want 1", n)
	}

	row := sink.rows()[0]
	if row.Light == nil || *row.Light != 14 {
		t.Errorf("Light: got %v, want 14", row.Light)
	}
	if row.CO2 != nil {
		t.Errorf("CO2: got %v, want nil", row.CO2)
	}
}

func TestImport_NaiveTimestampsUseLocation(t *testing.T) {
	sink := &fakeSink{}
	jst := time.FixedZone("JST", 9*60*60)
	imp := NewImporter(sink, jst, 0)

	input := meterHeader + "\n2024-01-15 09:30,21.5,48\n"

	if _, err := imp.Import(context.Background(), mustAddr(t, "aa:bb:cc:dd:ee:01"), strings.NewReader(input)); err != nil {
		t.Fatalf("Import: %v", err)
	}

	got := sink.rows()[0].MeasuredAt
	want := time.Date(2024, 1, 15, 9, 30, 0, 0, jst)
	if !got.Equal(want) {
		t.Errorf("MeasuredAt = %v, want %v", got, want)
	}
	if !got.Equal(time.Date(2024, 1, 15, 0, 30, 0, 0, time.UTC)) {
		t.Errorf("MeasuredAt UTC instant = %v, want 00:30Z", got.UTC())
	}
}

func TestImport_MalformedRowFailsFast(t *testing.T) {
	sink := &fakeSink{}
	imp := NewImporter(sink, time.UTC, 0)

	input := meterHeader + "\n" +
		"2024-01-15 09:30,21.5,48\n" +
		"2024-01-15 09:31,warm,49\n"

	n, err := imp.Import(context.Background(), mustAddr(t, "aa:bb:cc:dd:ee:01"), strings.NewReader(input))
	if err == nil {
		t.Fatal("Import: expected error for malformed temperature")
	}
	if !strings.Contains(err.Error(), "row 3") || !strings.Contains(err.Error(), `"warm"`) {
		t.Errorf("error message: got %q", err.Error())
	}
	if n != 0 {
		t.Errorf("Import: got %d rows written, want 0", n)
	}
	if len(sink.batches) != 0 {
		t.Errorf("sink batches: got %d, want 0", len(sink.batches))
	}
}

func TestImport_ShortRowFailsFast(t *testing.T) {
	sink := &fakeSink{}
	imp := NewImporter(sink, time.UTC, 0)

	input := meterHeader + "\n2024-01-15 09:30,21.5\n"

	_, err := imp.Import(context.Background(), mustAddr(t, "aa:bb:cc:dd:ee:01"), strings.NewReader(input))
	if err == nil {
		t.Fatal("Import: expected error for short row")
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Errorf("error message: got %q", err.Error())
	}
}

func TestImport_BatchBoundaries(t *testing.T) {
	sink := &fakeSink{}
	imp := NewImporter(sink, time.UTC, 2)

	var sb strings.Builder
	sb.WriteString(meterHeader + "\n")
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		sb.WriteString(base.Add(time.Duration(i) * time.Minute).Format(timestampLayout))
		sb.WriteString(",21.5,48\n")
	}

	n, err := imp.Import(context.Background(), mustAddr(t, "aa:bb:cc:dd:ee:01"), strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 5 {
		t.Fatalf("Import: got %d rows, want 5", n)
	}
	if len(sink.batches) != 3 {
		t.Fatalf("sink batches: got %d, want 3", len(sink.batches))
	}
	if len(sink.batches[0]) != 2 || len(sink.batches[1]) != 2 || len(sink.batches[2]) != 1 {
		t.Errorf("batch sizes: got %d, %d, %d, want 2, 2, 1", len(sink.batches[0]), len(sink.batches[1]), len(sink.batches[2]))
	}
}

func TestImport_SinkErrorAborts(t *testing.T) {
	sinkErr := errors.New("connection refused")
	sink := &fakeSink{err: sinkErr}
	imp := NewImporter(sink, time.UTC, 1)

	input := meterHeader + "\n2024-01-15 09:30,21.5,48\n"

	n, err := imp.Import(context.Background(), mustAddr(t, "aa:bb:cc:dd:ee:01"), strings.NewReader(input))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("Import error: got %v, want %v", err, sinkErr)
	}
	if n != 0 {
		t.Errorf("Import: got %d rows written, want 0", n)
	}
}

func TestImport_HeaderOnly(t *testing.T) {
	sink := &fakeSink{}
	imp := NewImporter(sink, time.UTC, 0)

	n, err := imp.Import(context.Background(), mustAddr(t, "aa:bb:cc:dd:ee:01"), strings.NewReader(meterHeader+"\n"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 0 {
		t.Fatalf("Import: got %d rows, want 0", n)
	}
	if len(sink.batches) != 0 {
		t.Errorf("sink batches: got %d, want 0", len(sink.batches))
	}
}

func TestImportFile(t *testing.T) {
	sink := &fakeSink{}
	imp := NewImporter(sink, time.UTC, 0)

	path := filepath.Join(t.TempDir(), "bedroom.csv")
	content := meterHeader + "\n2024-01-15 09:30,21.5,48\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	n, err := imp.ImportFile(context.Background(), mustAddr(t, "aa:bb:cc:dd:ee:01"), path)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if n != 1 {
		t.Fatalf("ImportFile: got %d rows, want 1", n)
	}
}

func TestImportFile_Missing(t *testing.T) {
	imp := NewImporter(&fakeSink{}, time.UTC, 0)

	_, err := imp.ImportFile(context.Background(), mustAddr(t, "aa:bb:cc:dd:ee:01"), filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatal("ImportFile: expected error for missing file")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   format
	}{
		{name: "meter", header: meterHeader, want: formatTemperatureHumidity},
		{name: "co2", header: meterHeader + ",Co2(ppm)", want: formatTemperatureHumidityCO2},
		{name: "hub2", header: meterHeader + ",DPT_Celsius(°C),VPD(kPa),Absolute_Humidity(g/m³),Light_Value", want: formatTemperatureHumidityLight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectFormat(strings.Split(tt.header, ",")); got != tt.want {
				t.Errorf("detectFormat = %v, want %v", got, tt.want)
			}
		})
	}
}

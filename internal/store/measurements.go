package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/koyashiro/home-environments/internal/switchbot"
)

// Measurement is one durable sample row. MeasuredAt is the
// minute-aligned bucket the reading was attributed to, not the raw
// observation time.
type Measurement struct {
	Device      switchbot.Addr
	MeasuredAt  time.Time
	Temperature float64
	Humidity    uint8
	CO2         *uint16
	Light       *uint8
}

// insertChunkSize bounds the placeholder count of a single batch
// statement.
const insertChunkSize = 1000

const measurementColumns = 6

// InsertMeasurements batch-upserts sample rows. Rows that collide with
// an already persisted (device, minute) pair are left untouched, so
// redelivering a batch after a failed acknowledgement is a no-op.
func (s *Store) InsertMeasurements(ctx context.Context, measurements []Measurement) error {
	for len(measurements) > 0 {
		n := min(len(measurements), insertChunkSize)
		if err := s.insertMeasurementChunk(ctx, measurements[:n]); err != nil {
			return err
		}
		measurements = measurements[n:]
	}
	return nil
}

func (s *Store) insertMeasurementChunk(ctx context.Context, chunk []Measurement) error {
	var query strings.Builder
	query.WriteString("INSERT INTO switchbot_measurements (device_id, measured_at, temperature_celsius, humidity_percent, co2_ppm, light_level) VALUES ")

	args := make([]any, 0, len(chunk)*measurementColumns)
	for i, m := range chunk {
		if i > 0 {
			query.WriteString(", ")
		}
		base := i * measurementColumns
		fmt.Fprintf(&query, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)

		var co2 any
		if m.CO2 != nil {
			co2 = int64(*m.CO2)
		}
		var light any
		if m.Light != nil {
			light = int64(*m.Light)
		}
		args = append(args, m.Device[:], m.MeasuredAt.UTC(), m.Temperature, int64(m.Humidity), co2, light)
	}
	query.WriteString(" ON CONFLICT (device_id, measured_at) DO NOTHING;")

	if _, err := s.db.ExecContext(ctx, query.String(), args...); err != nil {
		return fmt.Errorf("insert %d measurements: %w", len(chunk), err)
	}
	return nil
}

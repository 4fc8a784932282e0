// Package metrics exposes Prometheus instrumentation for the ingest
// pipeline.
package metrics

import (
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "homeenv_"

// Label values used by the ingest pipeline and the flush loop.
const (
	ResultSuccess = "success"
	ResultError   = "error"

	AdvertisementWattChecker   = "wattchecker"
	AdvertisementUnknownDevice = "unknown_device"
	AdvertisementNoPayload     = "no_payload"
	AdvertisementDecodeError   = "decode_error"
)

var (
	registerOnce sync.Once

	advertisementsTotal *prometheus.CounterVec

	bufferedSamples   prometheus.Gauge
	flushedSamples    prometheus.Counter
	flushFailures     prometheus.Counter
	flushDuration     prometheus.Histogram
	importedRowsTotal prometheus.Counter
)

// Init registers the pipeline metrics. Passing the sink database also
// registers its connection pool stats.
func Init(db *sql.DB) {
	registerOnce.Do(func() {
		advertisementsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "advertisements_total",
				Help: "Total handled BLE advertisements by disposition",
			},
			[]string{"result"},
		)

		bufferedSamples = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "buffered_samples",
				Help: "Samples currently held in the dedup buffer",
			},
		)
		flushedSamples = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "flushed_samples_total",
				Help: "Total samples persisted to the sink",
			},
		)
		flushFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "flush_failures_total",
				Help: "Total flushes that failed and were retried later",
			},
		)
		flushDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "flush_duration_seconds",
				Help:    "Sink flush latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)
		importedRowsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "imported_rows_total",
				Help: "Total rows written by the CSV importer",
			},
		)

		prometheus.MustRegister(
			advertisementsTotal,
			bufferedSamples,
			flushedSamples,
			flushFailures,
			flushDuration,
			importedRowsTotal,
		)

		if db != nil {
			prometheus.MustRegister(collectors.NewDBStatsCollector(db, "sink"))
		}
	})
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncAdvertisement counts one handled advertisement by disposition.
func IncAdvertisement(result string) {
	if result == "" {
		result = "unknown"
	}
	if advertisementsTotal != nil {
		advertisementsTotal.WithLabelValues(result).Inc()
	}
}

// SetBufferedSamples records the dedup buffer depth.
func SetBufferedSamples(n int) {
	if bufferedSamples != nil {
		bufferedSamples.Set(float64(n))
	}
}

// ObserveFlush records one flush attempt.
func ObserveFlush(result string, rows int, duration time.Duration) {
	if flushDuration != nil {
		flushDuration.Observe(duration.Seconds())
	}
	switch result {
	case ResultSuccess:
		if flushedSamples != nil && rows > 0 {
			flushedSamples.Add(float64(rows))
		}
	default:
		if flushFailures != nil {
			flushFailures.Inc()
		}
	}
}

// AddImportedRows counts rows written by the CSV importer.
func AddImportedRows(n int) {
	if n <= 0 {
		return
	}
	if importedRowsTotal != nil {
		importedRowsTotal.Add(float64(n))
	}
}

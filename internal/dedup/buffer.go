// Package dedup collapses repeated BLE broadcast observations into at
// most one reading per device and minute. Broadcast frames repeat every
// few seconds, so the same logical sample arrives many times; the
// buffer keeps the observation closest to the minute boundary and
// hands finalized buckets to a sink in batches.
package dedup

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/koyashiro/home-environments/internal/store"
	"github.com/koyashiro/home-environments/internal/switchbot"
)

// tolerance is the largest distance from a minute boundary at which an
// observation is still attributed to that minute. Observations further
// out are dropped rather than guessed at.
const tolerance = 20 * time.Second

// Sink receives finalized rows. *store.Store satisfies it.
type Sink interface {
	InsertMeasurements(ctx context.Context, measurements []store.Measurement) error
}

// OfferOutcome reports what Offer did with an observation.
type OfferOutcome int

const (
	// OfferInserted means the bucket was empty and the observation
	// was stored.
	OfferInserted OfferOutcome = iota
	// OfferReplaced means the observation was strictly closer to the
	// minute boundary than the stored one and replaced it.
	OfferReplaced
	// OfferKeptExisting means a stored observation at equal or
	// smaller distance won. Equal distance keeps the earlier arrival.
	OfferKeptExisting
	// OfferOutOfTolerance means the observation was more than the
	// tolerance away from every minute boundary and was dropped.
	OfferOutOfTolerance
)

func (o OfferOutcome) String() string {
	switch o {
	case OfferInserted:
		return "inserted"
	case OfferReplaced:
		return "replaced"
	case OfferKeptExisting:
		return "kept_existing"
	case OfferOutOfTolerance:
		return "out_of_tolerance"
	default:
		return "unknown"
	}
}

type entry struct {
	bucket     time.Time
	observedAt time.Time
	m          switchbot.Measurement
}

// Buffer holds at most one pending observation per (device, minute).
// All methods are safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries map[switchbot.Addr]map[int64]entry
}

func NewBuffer() *Buffer {
	return &Buffer{entries: make(map[switchbot.Addr]map[int64]entry)}
}

// bucketFor attributes an observation time to its nearest minute.
// ok is false when the observation is out of tolerance.
func bucketFor(observedAt time.Time) (bucket time.Time, ok bool) {
	bucket = observedAt.Round(time.Minute)
	d := observedAt.Sub(bucket)
	if d < 0 {
		d = -d
	}
	if d > tolerance {
		return time.Time{}, false
	}
	return bucket, true
}

// Offer records an observation into its minute bucket. When the bucket
// already holds an observation, the one strictly closer to the minute
// boundary wins; on a tie the stored one stays.
func (b *Buffer) Offer(device switchbot.Addr, observedAt time.Time, m switchbot.Measurement) OfferOutcome {
	bucket, ok := bucketFor(observedAt)
	if !ok {
		return OfferOutOfTolerance
	}
	key := bucket.Unix()

	b.mu.Lock()
	defer b.mu.Unlock()

	buckets := b.entries[device]
	if buckets == nil {
		buckets = make(map[int64]entry)
		b.entries[device] = buckets
	}

	existing, exists := buckets[key]
	if exists && distance(observedAt, bucket) >= distance(existing.observedAt, bucket) {
		return OfferKeptExisting
	}
	buckets[key] = entry{bucket: bucket, observedAt: observedAt, m: m}
	if exists {
		return OfferReplaced
	}
	return OfferInserted
}

func distance(observedAt, bucket time.Time) time.Duration {
	d := observedAt.Sub(bucket)
	if d < 0 {
		d = -d
	}
	return d
}

// Len returns the number of buffered observations.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, buckets := range b.entries {
		n += len(buckets)
	}
	return n
}

// Flush persists every finalized bucket through the sink and evicts it
// on success. A bucket is finalized once its minute lies beyond the
// tolerance window behind now, so no later observation can still land
// in it. On sink failure nothing is evicted and the rows are retried
// on the next flush.
func (b *Buffer) Flush(ctx context.Context, now time.Time, sink Sink) (int, error) {
	horizon := now.Add(-tolerance)
	return b.flush(ctx, sink, func(bucket time.Time) bool {
		return bucket.Before(horizon)
	})
}

// Drain persists every buffered observation regardless of age. Called
// once at shutdown so in-flight minutes are not lost.
func (b *Buffer) Drain(ctx context.Context, sink Sink) (int, error) {
	return b.flush(ctx, sink, func(time.Time) bool { return true })
}

type evictKey struct {
	device switchbot.Addr
	key    int64
}

func (b *Buffer) flush(ctx context.Context, sink Sink, finalized func(time.Time) bool) (int, error) {
	b.mu.Lock()
	var (
		rows  []store.Measurement
		evict []evictKey
	)
	for device, buckets := range b.entries {
		for key, e := range buckets {
			if !finalized(e.bucket) {
				continue
			}
			rows = append(rows, store.Measurement{
				Device:      device,
				MeasuredAt:  e.bucket,
				Temperature: e.m.Temperature,
				Humidity:    e.m.Humidity,
				CO2:         e.m.CO2,
				Light:       e.m.Light,
			})
			evict = append(evict, evictKey{device: device, key: key})
		}
	}
	b.mu.Unlock()

	if len(rows) == 0 {
		return 0, nil
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].MeasuredAt.Equal(rows[j].MeasuredAt) {
			return rows[i].MeasuredAt.Before(rows[j].MeasuredAt)
		}
		return bytes.Compare(rows[i].Device[:], rows[j].Device[:]) < 0
	})

	// The insert runs unlocked. Finalized buckets can no longer be
	// offered to, so a concurrent Offer cannot produce an entry that
	// the eviction below would lose.
	if err := sink.InsertMeasurements(ctx, rows); err != nil {
		return 0, err
	}

	b.mu.Lock()
	for _, k := range evict {
		if buckets, ok := b.entries[k.device]; ok {
			delete(buckets, k.key)
			if len(buckets) == 0 {
				delete(b.entries, k.device)
			}
		}
	}
	b.mu.Unlock()
	return len(rows), nil
}

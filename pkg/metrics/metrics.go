package metrics

import (
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

// Point is one recorded sample
type Point struct {
	Time  time.Time `json:"time"`
	Value int64     `json:"value"`
}

var (
	mu      sync.RWMutex
	storage tstorage.Storage
	values  = map[string]int64{}
)

// InitMetrics opens the time series storage under workdir/data/metrics.
// An empty workdir keeps samples in memory only.
func InitMetrics(workdir string) error {
	opts := []tstorage.Option{
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7 * 24 * time.Hour),
	}
	if workdir != "" {
		opts = append(opts, tstorage.WithDataPath(filepath.Join(workdir, "data", "metrics")))
	}
	s, err := tstorage.NewStorage(opts...)
	if err != nil {
		return err
	}
	mu.Lock()
	if storage != nil {
		_ = storage.Close()
	}
	storage = s
	mu.Unlock()
	return nil
}

// SetGauge records the current value of name
func SetGauge(name string, value int64) {
	mu.Lock()
	values[name] = value
	s := storage
	mu.Unlock()
	record(s, name, value)
}

// Add increments the counter name and returns the new value
func Add(name string, delta int64) int64 {
	mu.Lock()
	values[name] += delta
	v := values[name]
	s := storage
	mu.Unlock()
	record(s, name, v)
	return v
}

func Incr(name string) int64 {
	return Add(name, 1)
}

// Value returns the latest value of name
func Value(name string) int64 {
	mu.RLock()
	defer mu.RUnlock()
	return values[name]
}

// Snapshot returns the latest value of every metric
func Snapshot() map[string]int64 {
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]int64, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

// Series returns the samples of name recorded within the last since duration
func Series(name string, since time.Duration) ([]Point, error) {
	mu.RLock()
	s := storage
	mu.RUnlock()
	if s == nil {
		return nil, nil
	}
	now := time.Now()
	points, err := s.Select(name, nil, now.Add(-since).Unix(), now.Unix()+1)
	if errors.Is(err, tstorage.ErrNoDataPoints) {
		return []Point{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Point, 0, len(points))
	for _, p := range points {
		out = append(out, Point{Time: time.Unix(p.Timestamp, 0), Value: int64(p.Value)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// Close flushes the storage
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}

func record(s tstorage.Storage, name string, value int64) {
	if s == nil {
		return
	}
	_ = s.InsertRows([]tstorage.Row{{
		Metric:    name,
		DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
	}})
}

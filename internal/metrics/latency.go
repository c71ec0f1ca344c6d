// Package metrics collects client outcomes: Prometheus counters for scraping
// and HDR histograms for the batch latency summary.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latency range recorded by a Recorder, in microseconds.
const (
	histogramMin     = 1
	histogramMax     = 3600000000 // 1 hour
	histogramSigFigs = 3
)

// Recorder aggregates request latencies in an HDR histogram.
//
// Recorder is safe for concurrent use. Counters are atomic; the histogram
// is guarded by a mutex because RecordValue is not thread-safe.
type Recorder struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram

	total    atomic.Int64
	success  atomic.Int64
	failed   atomic.Int64
	attempts atomic.Int64

	start time.Time
}

// Summary is a point-in-time view of a Recorder.
type Summary struct {
	Total    int64
	Success  int64
	Failed   int64
	Attempts int64
	Wall     time.Duration

	Min  time.Duration
	Mean time.Duration
	P50  time.Duration
	P90  time.Duration
	P99  time.Duration
	Max  time.Duration
}

// NewRecorder creates an empty recorder. The wall clock starts now.
func NewRecorder() *Recorder {
	return &Recorder{
		hist:  hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
		start: time.Now(),
	}
}

// Record adds one completed request.
func (r *Recorder) Record(elapsed time.Duration, success bool, attempts int) {
	micros := elapsed.Microseconds()
	if micros < histogramMin {
		micros = histogramMin
	}
	if micros > histogramMax {
		micros = histogramMax
	}

	r.mu.Lock()
	_ = r.hist.RecordValue(micros)
	r.mu.Unlock()

	r.total.Add(1)
	r.attempts.Add(int64(attempts))
	if success {
		r.success.Add(1)
	} else {
		r.failed.Add(1)
	}
}

// Percentile returns the latency at percentile p (0-100).
func (r *Recorder) Percentile(p float64) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hist.TotalCount() == 0 {
		return 0
	}
	return micros(r.hist.ValueAtQuantile(p))
}

// Summary returns the current aggregate.
func (r *Recorder) Summary() Summary {
	s := Summary{
		Total:    r.total.Load(),
		Success:  r.success.Load(),
		Failed:   r.failed.Load(),
		Attempts: r.attempts.Load(),
		Wall:     time.Since(r.start),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hist.TotalCount() == 0 {
		return s
	}
	s.Min = micros(r.hist.Min())
	s.Mean = time.Duration(r.hist.Mean() * float64(time.Microsecond))
	s.P50 = micros(r.hist.ValueAtQuantile(50))
	s.P90 = micros(r.hist.ValueAtQuantile(90))
	s.P99 = micros(r.hist.ValueAtQuantile(99))
	s.Max = micros(r.hist.Max())
	return s
}

// SuccessRate returns the fraction of successful requests.
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total)
}

// Throughput returns requests per second over the wall time.
func (s Summary) Throughput() float64 {
	if s.Wall <= 0 {
		return 0
	}
	return float64(s.Total) / s.Wall.Seconds()
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

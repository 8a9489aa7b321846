// Package monitor tracks runtime health counters for the status surface.
package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks overall system performance.
type SystemMetrics struct {
	// Latency histograms
	TickLatency  *LatencyHistogram
	OrderLatency *LatencyHistogram
	APILatency   *LatencyHistogram

	// Counters
	ticksProcessed uint64
	ordersPlaced   uint64
	apiRequests    uint64
	errorsCount    uint64

	startedAt time.Time
}

// LatencyHistogram tracks latency samples with a sliding window and lazy
// stats computation.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		TickLatency:  NewLatencyHistogram(1000),
		OrderLatency: NewLatencyHistogram(1000),
		APILatency:   NewLatencyHistogram(1000),
		startedAt:    time.Now(),
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99. Recomputes only when samples
// have changed since the last call.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	min, max := sorted[0], sorted[n-1]
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   min,
		Max:   max,
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// IncrementTicks increments the completed tick counter.
func (m *SystemMetrics) IncrementTicks() {
	atomic.AddUint64(&m.ticksProcessed, 1)
}

// IncrementOrders increments the placed order counter.
func (m *SystemMetrics) IncrementOrders() {
	atomic.AddUint64(&m.ordersPlaced, 1)
}

// IncrementAPIRequests increments the served request counter.
func (m *SystemMetrics) IncrementAPIRequests() {
	atomic.AddUint64(&m.apiRequests, 1)
}

// IncrementErrors increments the error counter.
func (m *SystemMetrics) IncrementErrors() {
	atomic.AddUint64(&m.errorsCount, 1)
}

// MetricsSnapshot is a point-in-time view of all counters.
type MetricsSnapshot struct {
	TickLatency    LatencyStats `json:"tick_latency"`
	OrderLatency   LatencyStats `json:"order_latency"`
	APILatency     LatencyStats `json:"api_latency"`
	TicksProcessed uint64       `json:"ticks_processed"`
	OrdersPlaced   uint64       `json:"orders_placed"`
	APIRequests    uint64       `json:"api_requests"`
	ErrorsCount    uint64       `json:"errors_count"`
	GoroutineCount int          `json:"goroutine_count"`
	HeapAlloc      uint64       `json:"heap_alloc_bytes"`
	UptimeSeconds  float64      `json:"uptime_seconds"`
	Timestamp      time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MetricsSnapshot{
		TickLatency:    m.TickLatency.Stats(),
		OrderLatency:   m.OrderLatency.Stats(),
		APILatency:     m.APILatency.Stats(),
		TicksProcessed: atomic.LoadUint64(&m.ticksProcessed),
		OrdersPlaced:   atomic.LoadUint64(&m.ordersPlaced),
		APIRequests:    atomic.LoadUint64(&m.apiRequests),
		ErrorsCount:    atomic.LoadUint64(&m.errorsCount),
		GoroutineCount: runtime.NumGoroutine(),
		HeapAlloc:      memStats.HeapAlloc,
		UptimeSeconds:  time.Since(m.startedAt).Seconds(),
		Timestamp:      time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: h,
	}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}

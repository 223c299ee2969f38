// Copyright (c) 2026 Meshrail, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package httpmetrics instruments HTTP data-plane services so that every
// request/response exchange is counted, classified exactly once, and
// attributed a time-to-first-byte latency, partitioned by destination.
package httpmetrics

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/net/metrics/bucket"
	"go.uber.org/zap"

	"github.com/meshrail/meshrail/classify"
)

var (
	_timeNow             = time.Now // for tests
	_defaultRegistrySize = 128

	// Latency bucket upper bounds in milliseconds, shared by every
	// aggregate.
	_bucketsMs = bucket.NewRPCLatency()
)

// Registry maps destination keys to their shared metrics aggregates. It
// lives for the lifetime of the proxy process; entries are created lazily on
// first use and never removed. An export collaborator reads it through
// Snapshot.
type Registry[T comparable] struct {
	logger *zap.Logger

	mu       sync.RWMutex
	byTarget map[T]*Metrics
}

// NewRegistry constructs an empty registry. A nil logger disables logging.
func NewRegistry[T comparable](logger *zap.Logger) *Registry[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry[T]{
		logger:   logger,
		byTarget: make(map[T]*Metrics, _defaultRegistrySize),
	}
}

// Get returns the aggregate shared by all exchanges to target, creating it
// on first use.
func (r *Registry[T]) Get(target T) *Metrics {
	r.mu.RLock()
	m := r.byTarget[target]
	r.mu.RUnlock()
	if m != nil {
		return m
	}
	return r.create(target)
}

func (r *Registry[T]) create(target T) *Metrics {
	r.mu.Lock()
	// Entries are created rarely, so the overhead of defer is acceptable.
	defer r.mu.Unlock()

	if m, ok := r.byTarget[target]; ok {
		// Someone beat us to the punch.
		return m
	}

	m := newMetrics()
	r.byTarget[target] = m
	r.logger.Debug("Created metrics aggregate.", zap.Any("target", target))
	return m
}

// Snapshot copies the state of every aggregate for exposition.
func (r *Registry[T]) Snapshot() map[T]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[T]Snapshot, len(r.byTarget))
	for target, m := range r.byTarget {
		snap[target] = m.Snapshot()
	}
	return snap
}

// Metrics is the aggregate for one destination, shared by every concurrent
// exchange to it and guarded by a single lock. The lock is held only for
// individual increments, never across a suspension point.
type Metrics struct {
	mu           sync.Mutex
	total        int64
	byClass      map[classify.Class]*classMetrics
	unclassified classMetrics
}

func newMetrics() *Metrics {
	return &Metrics{byClass: make(map[classify.Class]*classMetrics)}
}

// incrTotal counts one request whose body reached end-of-stream. Nil-safe so
// an instrumentation-less service can still serve traffic.
func (m *Metrics) incrTotal() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.total++
	m.mu.Unlock()
}

// recordClass counts the outcome of one exchange with its first-byte
// latency. Unclassified exchanges (classified false) land in a dedicated
// bucket. Nil-safe.
func (m *Metrics) recordClass(c classify.Class, classified bool, latency time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cm := &m.unclassified
	if classified {
		var ok bool
		if cm, ok = m.byClass[c]; !ok {
			cm = &classMetrics{}
			m.byClass[c] = cm
		}
	}
	cm.count++
	cm.latency.add(latency)
}

// Snapshot copies the aggregate's current state.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	byClass := make(map[classify.Class]ClassSnapshot, len(m.byClass))
	for c, cm := range m.byClass {
		byClass[c] = cm.snapshot()
	}
	return Snapshot{
		Total:        m.total,
		ByClass:      byClass,
		Unclassified: m.unclassified.snapshot(),
	}
}

// classMetrics aggregates the exchanges that shared one outcome class.
type classMetrics struct {
	count   int64
	latency latencyHistogram
}

func (cm *classMetrics) snapshot() ClassSnapshot {
	return ClassSnapshot{Count: cm.count, LatencyCounts: cm.latency.copyCounts()}
}

// latencyHistogram counts first-byte latencies in fixed millisecond buckets,
// with a final overflow bucket.
type latencyHistogram struct {
	counts []int64
}

func (h *latencyHistogram) add(d time.Duration) {
	if h.counts == nil {
		h.counts = make([]int64, len(_bucketsMs)+1)
	}
	ms := d.Milliseconds()
	i := sort.Search(len(_bucketsMs), func(i int) bool { return _bucketsMs[i] >= ms })
	h.counts[i]++
}

func (h *latencyHistogram) copyCounts() []int64 {
	if h.counts == nil {
		return nil
	}
	counts := make([]int64, len(h.counts))
	copy(counts, h.counts)
	return counts
}

// Snapshot is a point-in-time copy of one destination's aggregate.
type Snapshot struct {
	Total        int64
	ByClass      map[classify.Class]ClassSnapshot
	Unclassified ClassSnapshot
}

// ClassSnapshot is a point-in-time copy of one outcome class's metrics.
type ClassSnapshot struct {
	Count int64

	// LatencyCounts holds per-bucket observation counts; bucket upper
	// bounds are LatencyBucketBounds, plus a final overflow bucket. Nil when
	// nothing has been recorded.
	LatencyCounts []int64
}

// LatencyObservations sums the latency observations across all buckets.
func (s ClassSnapshot) LatencyObservations() int64 {
	var n int64
	for _, c := range s.LatencyCounts {
		n += c
	}
	return n
}

// LatencyBucketBounds returns the histogram bucket upper bounds in
// milliseconds.
func LatencyBucketBounds() []int64 {
	bounds := make([]int64, len(_bucketsMs))
	copy(bounds, _bucketsMs)
	return bounds
}

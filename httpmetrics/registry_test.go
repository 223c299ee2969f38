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

package httpmetrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meshrail/meshrail/classify"
	"github.com/meshrail/meshrail/dst"
)

func TestRegistryCreatesEntriesLazily(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	assert.Empty(t, reg.Snapshot())

	m := reg.Get(_target)
	assert.NotNil(t, m)
	assert.Len(t, reg.Snapshot(), 1)
	assert.Same(t, m, reg.Get(_target), "an entry, once created, is shared")

	other := dst.Inbound(dst.NewAddr("127.0.0.1", 4143))
	assert.NotSame(t, m, reg.Get(other), "keys with different directions get distinct entries")
	assert.Len(t, reg.Snapshot(), 2)
}

func TestRegistryConcurrentGet(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)

	const goroutines = 32
	entries := make([]*Metrics, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries[i] = reg.Get(_target)
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, entries[0], entries[i], "all racers must agree on one entry")
	}
	assert.Len(t, reg.Snapshot(), 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	m := reg.Get(_target)
	m.incrTotal()
	m.recordClass(classify.Class{Result: classify.Success}, true, time.Millisecond)

	snap := reg.Snapshot()[_target]
	m.incrTotal()
	m.recordClass(classify.Class{Result: classify.Success}, true, time.Millisecond)

	assert.Equal(t, int64(1), snap.Total, "a snapshot must not track later mutation")
	assert.Equal(t, int64(1), snap.ByClass[classify.Class{Result: classify.Success}].Count)
}

func TestNilMetricsHandleIsSafe(t *testing.T) {
	var m *Metrics
	m.incrTotal()
	m.recordClass(classify.Class{}, false, 0)
}

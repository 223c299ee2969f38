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
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshrail/meshrail/classify"
	"github.com/meshrail/meshrail/dst"
	"github.com/meshrail/meshrail/internal/clock"
	"github.com/meshrail/meshrail/transport"
	"github.com/meshrail/meshrail/transport/transporttest"
)

// bucketFor returns the histogram index that latency lands in.
func bucketFor(latency time.Duration) int {
	bounds := LatencyBucketBounds()
	ms := latency.Milliseconds()
	return sort.Search(len(bounds), func(i int) bool { return bounds[i] >= ms })
}

func withFakeTime(t *testing.T) *clock.FakeClock {
	t.Helper()
	fc := clock.NewFake()
	orig := _timeNow
	_timeNow = fc.Now
	t.Cleanup(func() { _timeNow = orig })
	return fc
}

func TestLatencyAttributedToFirstByte(t *testing.T) {
	fc := withFakeTime(t)

	reg := NewRegistry[dst.DstAddr](nil)
	inner := &transporttest.Service{
		Response: &transport.Response{
			Status: 200,
			Body:   &transporttest.Body{Frames: [][]byte{[]byte("x")}},
		},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	require.NoError(t, err)

	fc.Add(40 * time.Millisecond)
	_, err = res.Body.Data(context.Background())
	require.NoError(t, err)

	// Time passing after the first byte must not affect the recorded
	// latency.
	fc.Add(5 * time.Second)
	consume(t, res.Body)

	cs := reg.Get(_target).Snapshot().ByClass[classify.Class{Result: classify.Success}]
	require.Equal(t, int64(1), cs.LatencyObservations())
	assert.Equal(t, int64(1), cs.LatencyCounts[bucketFor(40*time.Millisecond)])
}

func TestLatencyFallsBackToFinalizationTime(t *testing.T) {
	fc := withFakeTime(t)

	reg := NewRegistry[dst.DstAddr](nil)
	inner := &transporttest.Service{
		Response: &transport.Response{Status: 200, Body: &transporttest.Body{}},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	require.NoError(t, err)

	fc.Add(70 * time.Millisecond)
	require.NoError(t, res.Body.Close())

	cs := reg.Get(_target).Snapshot().ByClass[classify.Class{Result: classify.Success}]
	require.Equal(t, int64(1), cs.LatencyObservations())
	assert.Equal(t, int64(1), cs.LatencyCounts[bucketFor(70*time.Millisecond)],
		"with no byte received, latency spans open to finalization")
}

func TestRequestBodyCloseIsNotACountingPoint(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	body := &RequestBody{
		metrics: reg.Get(_target),
		inner:   &transporttest.Body{Frames: [][]byte{[]byte("unfinished")}},
	}

	require.NoError(t, body.Close())
	assert.Zero(t, reg.Get(_target).Snapshot().Total,
		"an abandoned request body must not count as a request")
}

func TestRequestBodyTrailersPassThrough(t *testing.T) {
	inner := &transporttest.Body{TrailerHeaders: map[string][]string{"X-Checksum": {"ab12"}}}
	body := &RequestBody{inner: inner}

	trailers, err := body.Trailers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ab12", trailers.Get("X-Checksum"))
	assert.True(t, body.EndStream())
}

func TestResponseBodyTrailersErrorClassified(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	trailersErr := assert.AnError
	inner := &transporttest.Service{
		Response: &transport.Response{
			Status: 200,
			Body:   &transporttest.Body{TrailersErr: trailersErr},
		},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	require.NoError(t, err)

	_, err = res.Body.Trailers(context.Background())
	assert.Equal(t, trailersErr, err)

	failed := classify.Class{Result: classify.Failure, Reason: classify.ReasonStreamError}
	assert.Equal(t, int64(1), reg.Get(_target).Snapshot().ByClass[failed].Count)
}

func TestGRPCOutcomeWaitsForTrailers(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	inner := &transporttest.Service{
		Response: &transport.Response{
			Status: 200,
			Header: map[string][]string{"Content-Type": {"application/grpc"}},
			Body: &transporttest.Body{
				Frames:         [][]byte{[]byte("msg")},
				TrailerHeaders: map[string][]string{"Grpc-Status": {"13"}},
			},
		},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	require.NoError(t, err)
	consume(t, res.Body)

	failed := classify.Class{Result: classify.Failure, Reason: classify.ReasonGRPCStatus}
	snap := reg.Get(_target).Snapshot()
	assert.Equal(t, int64(1), snap.ByClass[failed].Count,
		"a 200 gRPC response with a failure grpc-status is a failure")
}

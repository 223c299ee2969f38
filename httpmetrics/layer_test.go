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
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshrail/meshrail/classify"
	"github.com/meshrail/meshrail/dst"
	"github.com/meshrail/meshrail/transport"
	"github.com/meshrail/meshrail/transport/transporttest"
)

var _target = dst.Outbound(dst.NewAddr("books.test.svc", 8080))

func measuredService(t *testing.T, reg *Registry[dst.DstAddr], inner transport.Service) transport.Service {
	t.Helper()
	factory := NewLayer(reg).Bind(transport.FactoryFunc[dst.DstAddr](
		func(dst.DstAddr) (transport.Service, error) { return inner, nil },
	))
	svc, err := factory.NewService(_target)
	require.NoError(t, err)
	return svc
}

func classifyCtx() context.Context {
	return classify.WithClassify(context.Background(), classify.NewDefault())
}

// consume drains a response body the way a well-behaved caller would: all
// data frames, then trailers, then Close.
func consume(t *testing.T, body transport.Body) {
	t.Helper()
	for {
		_, err := body.Data(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	_, err := body.Trailers(context.Background())
	require.NoError(t, err)
	require.NoError(t, body.Close())
}

func TestEmptyBodySuccessScenario(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	inner := &transporttest.Service{
		Response: &transport.Response{
			Status: 200,
			Header: make(http.Header),
			Body:   &transporttest.Body{TrailerHeaders: make(http.Header)},
		},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET", Body: &transporttest.Body{}})
	require.NoError(t, err)
	consume(t, res.Body)

	snap := reg.Get(_target).Snapshot()
	assert.Equal(t, int64(1), snap.Total, "empty request body must be counted synchronously")
	assert.Equal(t, int64(1), snap.ByClass[classify.Class{Result: classify.Success}].Count)
	assert.Zero(t, snap.Unclassified.Count)
}

func TestNilRequestBodyCountsImmediately(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	inner := &transporttest.Service{Response: &transport.Response{Status: 200}}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), reg.Get(_target).Snapshot().Total)
	consume(t, res.Body)
}

func TestRequestBodyCountedAtEndOfStream(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	inner := &transporttest.Service{Response: &transport.Response{Status: 200}}
	svc := measuredService(t, reg, inner)

	req := &transport.Request{
		Method: "POST",
		Body:   &transporttest.Body{Frames: [][]byte{[]byte("a"), []byte("b")}},
	}
	res, err := svc.Call(classifyCtx(), req)
	require.NoError(t, err)

	// The inner service received the decorated body; drive it like the
	// transport would.
	body := inner.LastRequest.Body
	_, err = body.Data(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reg.Get(_target).Snapshot().Total, "mid-stream polls must not count")

	_, err = body.Data(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), reg.Get(_target).Snapshot().Total, "the final frame completes the request")

	_, err = body.Data(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, int64(1), reg.Get(_target).Snapshot().Total, "polls past end-of-stream must not double-count")

	consume(t, res.Body)
}

func TestClassRecordedOnFirstDataFrame(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	inner := &transporttest.Service{
		Response: &transport.Response{
			Status: 200,
			Body:   &transporttest.Body{Frames: [][]byte{[]byte("hello"), []byte("world")}},
		},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	require.NoError(t, err)

	_, err = res.Body.Data(context.Background())
	require.NoError(t, err)

	success := classify.Class{Result: classify.Success}
	snap := reg.Get(_target).Snapshot()
	require.Equal(t, int64(1), snap.ByClass[success].Count, "the first data frame finalizes the head class")

	consume(t, res.Body)
	snap = reg.Get(_target).Snapshot()
	assert.Equal(t, int64(1), snap.ByClass[success].Count, "later frames, trailers, and Close must not re-record")
	assert.Equal(t, int64(1), snap.ByClass[success].LatencyObservations())
}

func TestServerErrorStatusClassified(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	inner := &transporttest.Service{
		Response: &transport.Response{Status: 502, Body: &transporttest.Body{}},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	require.NoError(t, err)
	consume(t, res.Body)

	snap := reg.Get(_target).Snapshot()
	assert.Equal(t, int64(1), snap.ByClass[classify.Class{Result: classify.Failure}].Count)
	assert.Zero(t, snap.Unclassified.Count)
}

func TestStreamErrorClassifiedAndPropagated(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	streamErr := errors.New("RST_STREAM")
	inner := &transporttest.Service{
		Response: &transport.Response{
			Status: 200,
			Body:   &transporttest.Body{FramesErr: streamErr},
		},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	require.NoError(t, err)

	_, err = res.Body.Data(context.Background())
	assert.Equal(t, streamErr, err, "stream errors must propagate unchanged")

	failed := classify.Class{Result: classify.Failure, Reason: classify.ReasonStreamError}
	snap := reg.Get(_target).Snapshot()
	assert.Equal(t, int64(1), snap.ByClass[failed].Count)

	require.NoError(t, res.Body.Close())
	snap = reg.Get(_target).Snapshot()
	assert.Equal(t, int64(1), snap.ByClass[failed].Count, "Close after an error must not re-record")
	assert.Zero(t, snap.Unclassified.Count)
}

func TestStreamErrorAfterFirstFrameKeepsHeadClass(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	streamErr := errors.New("RST_STREAM")
	inner := &transporttest.Service{
		Response: &transport.Response{
			Status: 200,
			Body:   &transporttest.Body{Frames: [][]byte{[]byte("partial")}, FramesErr: streamErr},
		},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	require.NoError(t, err)

	_, err = res.Body.Data(context.Background())
	require.NoError(t, err)
	_, err = res.Body.Data(context.Background())
	assert.Equal(t, streamErr, err)

	// The first frame already finalized the head class; the later error must
	// not produce a second record.
	snap := reg.Get(_target).Snapshot()
	assert.Equal(t, int64(1), snap.ByClass[classify.Class{Result: classify.Success}].Count)
	assert.Zero(t, snap.ByClass[classify.Class{Result: classify.Failure, Reason: classify.ReasonStreamError}].Count)
}

func TestAbandonedStreamClassifiedOnClose(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	inner := &transporttest.Service{
		Response: &transport.Response{
			Status: 200,
			Body:   &transporttest.Body{Frames: [][]byte{[]byte("never read")}},
		},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	require.NoError(t, err)

	// The caller walks away without reading a single byte.
	require.NoError(t, res.Body.Close())

	success := classify.Class{Result: classify.Success}
	snap := reg.Get(_target).Snapshot()
	assert.Equal(t, int64(1), snap.ByClass[success].Count, "abandonment still records a class")
	assert.Equal(t, int64(1), snap.ByClass[success].LatencyObservations())

	require.NoError(t, res.Body.Close())
	assert.Equal(t, int64(1), reg.Get(_target).Snapshot().ByClass[success].Count, "redundant Close must be a no-op")
}

func TestCallErrorClassified(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	callErr := errors.New("connection refused")
	inner := &transporttest.Service{CallErr: callErr}
	svc := measuredService(t, reg, inner)

	_, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET"})
	assert.Equal(t, callErr, err)

	failed := classify.Class{Result: classify.Failure, Reason: classify.ReasonStreamError}
	assert.Equal(t, int64(1), reg.Get(_target).Snapshot().ByClass[failed].Count)
}

func TestNoClassifierRecordsUnclassified(t *testing.T) {
	reg := NewRegistry[dst.DstAddr](nil)
	inner := &transporttest.Service{
		Response: &transport.Response{Status: 200, Body: &transporttest.Body{}},
	}
	svc := measuredService(t, reg, inner)

	res, err := svc.Call(context.Background(), &transport.Request{Method: "GET"})
	require.NoError(t, err)
	consume(t, res.Body)

	snap := reg.Get(_target).Snapshot()
	assert.Equal(t, int64(1), snap.Unclassified.Count)
	assert.Empty(t, snap.ByClass)
	assert.Equal(t, int64(1), snap.Unclassified.LatencyObservations())
}

func TestReadyPassesThrough(t *testing.T) {
	readyErr := errors.New("not ready")
	svc := measuredService(t, NewRegistry[dst.DstAddr](nil), &transporttest.Service{ReadyErr: readyErr})
	assert.Equal(t, readyErr, svc.Ready(context.Background()))
}

func TestConcurrentExchangesShareOneAggregate(t *testing.T) {
	const exchanges = 64

	reg := NewRegistry[dst.DstAddr](nil)
	layer := NewLayer(reg)

	var wg sync.WaitGroup
	for i := 0; i < exchanges; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			status := 200
			if i%4 == 0 {
				status = 503
			}
			inner := &transporttest.Service{
				Response: &transport.Response{Status: status, Body: &transporttest.Body{}},
			}
			factory := layer.Bind(transport.FactoryFunc[dst.DstAddr](
				func(dst.DstAddr) (transport.Service, error) { return inner, nil },
			))
			svc, err := factory.NewService(_target)
			if err != nil {
				t.Error(err)
				return
			}

			res, err := svc.Call(classifyCtx(), &transport.Request{Method: "GET", Body: &transporttest.Body{}})
			if err != nil {
				t.Error(err)
				return
			}
			for {
				if _, err := res.Body.Data(context.Background()); err != nil {
					break
				}
			}
			if _, err := res.Body.Trailers(context.Background()); err != nil {
				t.Error(err)
			}
			if err := res.Body.Close(); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	snap := reg.Get(_target).Snapshot()
	assert.Equal(t, int64(exchanges), snap.Total)

	var classified int64
	for _, cs := range snap.ByClass {
		classified += cs.Count
	}
	assert.Equal(t, int64(exchanges), classified+snap.Unclassified.Count,
		"every exchange must record exactly one class")
	assert.Equal(t, int64(exchanges/4), snap.ByClass[classify.Class{Result: classify.Failure}].Count)
}

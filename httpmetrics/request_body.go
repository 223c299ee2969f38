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
	"io"
	"net/http"

	"go.uber.org/atomic"

	"github.com/meshrail/meshrail/transport"
)

// RequestBody decorates a request body to count the request the moment the
// body is known to have no more data. The count is driven only by the
// in-band end-of-stream signal; teardown is deliberately not a counting
// point, because the request total records "the request happened", not
// cleanup.
type RequestBody struct {
	metrics *Metrics
	counted atomic.Bool
	inner   transport.Body
}

var _ transport.Body = (*RequestBody)(nil)

// EndStream passes through to the inner body.
func (b *RequestBody) EndStream() bool {
	return b.inner.EndStream()
}

// Data passes through to the inner body, incrementing the total request
// counter exactly once when the stream ends. Repeated reads past
// end-of-stream cannot double-count.
func (b *RequestBody) Data(ctx context.Context) ([]byte, error) {
	data, err := b.inner.Data(ctx)
	if err == io.EOF || (err == nil && b.inner.EndStream()) {
		if b.metrics != nil && b.counted.CompareAndSwap(false, true) {
			b.metrics.incrTotal()
		}
	}
	return data, err
}

// Trailers passes through to the inner body.
func (b *RequestBody) Trailers(ctx context.Context) (http.Header, error) {
	return b.inner.Trailers(ctx)
}

// Close passes through to the inner body.
func (b *RequestBody) Close() error {
	return b.inner.Close()
}

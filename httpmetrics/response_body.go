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
	"time"

	"github.com/meshrail/meshrail/classify"
	"github.com/meshrail/meshrail/transport"
)

// ResponseBody decorates a response body to classify the exchange exactly
// once, on whichever path concludes it: the first data frame confirming a
// head-derived class, a mid-stream error, trailers, or Close when the
// consumer abandons the stream. The metrics handle is taken on the first
// record, which makes every other path a no-op.
type ResponseBody struct {
	classAtFirstByte    classify.Class
	hasClassAtFirstByte bool
	classifier          classify.ClassifyResponse
	metrics             *Metrics
	streamOpenAt        time.Time
	firstByteAt         time.Time
	inner               transport.Body
}

var _ transport.Body = (*ResponseBody)(nil)

// EndStream passes through to the inner body.
func (b *ResponseBody) EndStream() bool {
	return b.inner.EndStream()
}

// Data passes through to the inner body. The first delivered frame stamps
// the first-byte time and finalizes a pending head-derived class; errors are
// classified and re-thrown unchanged.
func (b *ResponseBody) Data(ctx context.Context) ([]byte, error) {
	data, err := b.inner.Data(ctx)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, b.measureErr(err)
	}

	if b.firstByteAt.IsZero() {
		b.firstByteAt = _timeNow()
	}
	if b.hasClassAtFirstByte {
		// A real data frame confirms the head class; record it and retire
		// the classifier so it cannot fire again.
		c := b.classAtFirstByte
		b.hasClassAtFirstByte = false
		b.classifier = nil
		b.recordClass(c, true)
	}
	return data, nil
}

// Trailers passes through to the inner body, classifying the end of the
// stream if nothing else has.
func (b *ResponseBody) Trailers(ctx context.Context) (http.Header, error) {
	trailers, err := b.inner.Trailers(ctx)
	if err != nil {
		return nil, b.measureErr(err)
	}

	if b.classifier != nil {
		c := b.classifier.EOS(trailers)
		b.classifier = nil
		b.hasClassAtFirstByte = false
		b.recordClass(c, true)
	}
	return trailers, nil
}

// Close guarantees the exchange is classified even when the consumer
// abandons the stream before trailers: the end-of-stream path runs with no
// trailers. Redundant Closes are no-ops.
func (b *ResponseBody) Close() error {
	var (
		c          classify.Class
		classified bool
	)
	if b.classifier != nil {
		c = b.classifier.EOS(nil)
		b.classifier = nil
		classified = true
	}
	b.hasClassAtFirstByte = false
	b.recordClass(c, classified)
	return b.inner.Close()
}

// measureErr classifies a stream error and records it, then hands the error
// back for propagation. Errors are never masked.
func (b *ResponseBody) measureErr(err error) error {
	b.hasClassAtFirstByte = false
	var (
		c          classify.Class
		classified bool
	)
	if b.classifier != nil {
		c = b.classifier.Error(err)
		b.classifier = nil
		classified = true
	}
	b.recordClass(c, classified)
	return err
}

// recordClass takes ownership of the metrics handle, so whichever exit path
// gets here first is the only one that records.
func (b *ResponseBody) recordClass(c classify.Class, classified bool) {
	metrics := b.metrics
	if metrics == nil {
		return
	}
	b.metrics = nil

	firstByteAt := b.firstByteAt
	if firstByteAt.IsZero() {
		firstByteAt = _timeNow()
	}
	metrics.recordClass(c, classified, firstByteAt.Sub(b.streamOpenAt))
}

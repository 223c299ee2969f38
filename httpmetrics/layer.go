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

	"github.com/meshrail/meshrail/classify"
	"github.com/meshrail/meshrail/transport"
)

// Layer binds a registry so it can wrap service factories; the services the
// wrapped factories produce record metrics without changing the
// request/response contract visible to callers.
type Layer[T comparable] struct {
	registry *Registry[T]
}

// NewLayer binds a shared registry.
func NewLayer[T comparable](registry *Registry[T]) *Layer[T] {
	return &Layer[T]{registry: registry}
}

// Bind wraps an inner service factory.
func (l *Layer[T]) Bind(inner transport.Factory[T]) transport.Factory[T] {
	return &factory[T]{registry: l.registry, inner: inner}
}

type factory[T comparable] struct {
	registry *Registry[T]
	inner    transport.Factory[T]
}

// NewService constructs the inner service and pairs it with the registry
// entry shared by every service bound to the same target.
func (f *factory[T]) NewService(target T) (transport.Service, error) {
	inner, err := f.inner.NewService(target)
	if err != nil {
		return nil, err
	}
	// A Measure without a sink still serves traffic; instrumentation is
	// never allowed to break the request path.
	var metrics *Metrics
	if f.registry != nil {
		metrics = f.registry.Get(target)
	}
	return &Measure{metrics: metrics, inner: inner}, nil
}

// Measure is a Service wrapper that instruments the bodies of each exchange
// it forwards to the inner service.
type Measure struct {
	metrics *Metrics
	inner   transport.Service
}

var _ transport.Service = (*Measure)(nil)

// Ready passes through to the inner service.
func (m *Measure) Ready(ctx context.Context) error {
	return m.inner.Ready(ctx)
}

// Call forwards one exchange to the inner service with both bodies
// decorated for metrics. The classification strategy, if any, is taken from
// the request context where the routing layer installed it.
func (m *Measure) Call(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	reqMetrics := m.metrics
	if req.Body == nil || req.Body.EndStream() {
		// The body is already complete; count it now rather than waiting
		// for a poll that may never come.
		reqMetrics.incrTotal()
		reqMetrics = nil
	}
	if req.Body != nil {
		decorated := *req
		decorated.Body = &RequestBody{metrics: reqMetrics, inner: req.Body}
		req = &decorated
	}

	var classifier classify.ClassifyResponse
	if strategy, ok := classify.FromContext(ctx); ok {
		classifier = strategy.NewClassifyResponse()
	}

	streamOpenAt := _timeNow()
	res, err := m.inner.Call(ctx, req)
	if err != nil {
		// The response head never arrived. Classify the failure here so the
		// exchange still records exactly one class, then let the error
		// through untouched.
		var (
			c          classify.Class
			classified bool
		)
		if classifier != nil {
			c = classifier.Error(err)
			classified = true
		}
		m.metrics.recordClass(c, classified, _timeNow().Sub(streamOpenAt))
		return nil, err
	}

	var headClass classify.Class
	hasHeadClass := false
	if classifier != nil {
		if c, ok := classifier.Start(res); ok {
			headClass = c
			hasHeadClass = true
		}
	}

	inner := res.Body
	if inner == nil {
		inner = transport.EmptyBody()
	}
	res.Body = &ResponseBody{
		classAtFirstByte:    headClass,
		hasClassAtFirstByte: hasHeadClass,
		classifier:          classifier,
		metrics:             m.metrics,
		streamOpenAt:        streamOpenAt,
		inner:               inner,
	}
	return res, nil
}

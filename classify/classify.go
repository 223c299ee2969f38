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

// Package classify assigns a discrete outcome class to each request/response
// exchange, based on the response head, trailers, or the error that ended
// the stream.
package classify

import (
	"context"
	"net/http"

	"github.com/meshrail/meshrail/transport"
)

// Result is the verdict of a classification.
type Result int

const (
	// Success marks an exchange that completed acceptably.
	Success Result = iota
	// Failure marks an exchange that did not.
	Failure
)

// String returns "success" or "failure".
func (r Result) String() string {
	if r == Failure {
		return "failure"
	}
	return "success"
}

// Reasons distinguishing how a class was derived.
const (
	// ReasonGRPCStatus marks classes derived from a grpc-status trailer.
	ReasonGRPCStatus = "grpc-status"
	// ReasonStreamError marks classes assigned because the stream errored.
	ReasonStreamError = "stream-error"
)

// Class is the discrete outcome label assigned to one exchange. Class is a
// value type and is used as a map key in metrics aggregates.
type Class struct {
	Result Result

	// Reason distinguishes how the class was derived; empty for classes
	// derived from the response status.
	Reason string
}

// IsFailure reports whether the class marks the exchange as failed.
func (c Class) IsFailure() bool { return c.Result == Failure }

// Classify produces a single-use ClassifyResponse for each exchange.
type Classify interface {
	NewClassifyResponse() ClassifyResponse
}

// ClassifyResponse observes one exchange and produces its class. Each method
// may be invoked at most once per exchange, and only one of Error or EOS is
// ever invoked.
type ClassifyResponse interface {
	// Start observes the response head. It may already yield a class (for
	// example from the status code); if it does not, classification waits
	// for the end of the stream.
	Start(res *transport.Response) (Class, bool)

	// Error classifies a transport error that ended the exchange.
	Error(err error) Class

	// EOS classifies the end of the response stream. trailers is nil when
	// the stream ended, or was abandoned, without trailers.
	EOS(trailers http.Header) Class
}

type contextKey struct{}

// WithClassify attaches the classification strategy the routing layer chose
// for this request. The instrumentation middleware picks it up from the
// request context.
func WithClassify(ctx context.Context, c Classify) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the classification strategy attached to ctx, if any.
func FromContext(ctx context.Context) (Classify, bool) {
	c, ok := ctx.Value(contextKey{}).(Classify)
	return c, ok
}

type extensionKey struct{}

// Attach annotates a response with an already-computed class so that later
// layers (notably the retry decision) can reuse it instead of re-evaluating
// classification rules.
func Attach(res *transport.Response, c Class) {
	res.Extensions.Set(extensionKey{}, c)
}

// Attached returns the class annotated on the response, if any.
func Attached(res *transport.Response) (Class, bool) {
	c, ok := res.Extensions.Value(extensionKey{}).(Class)
	return c, ok
}

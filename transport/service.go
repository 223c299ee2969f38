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

package transport

import "context"

// Service is a request handling unit: anything that can report readiness and
// serve one request/response exchange.
type Service interface {
	// Ready blocks until the service can accept a call, or ctx is done.
	Ready(ctx context.Context) error

	// Call serves one exchange. The returned response's Body must be closed
	// by the caller on every exit path.
	Call(ctx context.Context, req *Request) (*Response, error)
}

// A Factory constructs Services bound to a target.
type Factory[T comparable] interface {
	NewService(target T) (Service, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc[T comparable] func(target T) (Service, error)

// NewService calls the underlying function.
func (f FactoryFunc[T]) NewService(target T) (Service, error) { return f(target) }

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

import "net/http"

// Request is the proxy's low level representation of one HTTP request.
type Request struct {
	// Method is the HTTP method of the request.
	Method string

	// Authority is the host the request is addressed to.
	Authority string

	// Path is the request target path.
	Path string

	// Headers for the request.
	Header http.Header

	// Request payload. A nil Body is equivalent to an empty one.
	Body Body
}

// Response is the proxy's low level representation of one HTTP response.
type Response struct {
	// Status is the HTTP status code of the response head.
	Status int

	// Headers for the response.
	Header http.Header

	// Response payload. A nil Body is equivalent to an empty one.
	Body Body

	// Extensions carries annotations attached to the response by middleware
	// layers for consumption by later layers.
	Extensions Extensions
}

// Extensions is a bag of per-exchange annotations keyed by package-private
// key types, in the manner of context values. The zero value is ready to use.
type Extensions struct {
	values map[interface{}]interface{}
}

// Value returns the annotation stored under key, or nil.
func (e *Extensions) Value(key interface{}) interface{} {
	return e.values[key]
}

// Set stores an annotation under key, replacing any existing value.
func (e *Extensions) Set(key, value interface{}) {
	if e.values == nil {
		e.values = make(map[interface{}]interface{})
	}
	e.values[key] = value
}

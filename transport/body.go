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

import (
	"context"
	"io"
	"net/http"
)

// Body is a streaming message body: an ordered sequence of data frames,
// optionally followed by trailing headers.
//
// A Body is owned by a single consumer at a time; its methods must not be
// called concurrently. Close must be called on every exit path, including
// when the consumer abandons the stream before reading it to completion, and
// implementations must tolerate redundant Close calls.
type Body interface {
	// EndStream reports whether the body is known to have no further data
	// frames. It may be called at any time without consuming the stream.
	EndStream() bool

	// Data returns the next data frame, blocking until a frame is available,
	// the stream ends, or ctx is done. It returns io.EOF once all data frames
	// have been consumed.
	Data(ctx context.Context) ([]byte, error)

	// Trailers returns the trailing headers, if any. It is valid only after
	// Data has returned io.EOF. A nil header map is a valid result.
	Trailers(ctx context.Context) (http.Header, error)

	// Close releases the body's resources.
	Close() error
}

// EmptyBody returns a Body that is at end-of-stream from the start and
// carries no trailers.
func EmptyBody() Body { return emptyBody{} }

type emptyBody struct{}

func (emptyBody) EndStream() bool                               { return true }
func (emptyBody) Data(context.Context) ([]byte, error)          { return nil, io.EOF }
func (emptyBody) Trailers(context.Context) (http.Header, error) { return nil, nil }
func (emptyBody) Close() error                                  { return nil }

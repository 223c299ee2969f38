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

// Package transporttest provides scripted transport fakes for tests.
package transporttest

import (
	"context"
	"io"
	"net/http"

	"github.com/meshrail/meshrail/transport"
)

// Body is a scripted transport.Body. It yields Frames in order, then either
// FramesErr (if set) or io.EOF, and then Trailers.
type Body struct {
	// Frames are the data frames to yield, in order.
	Frames [][]byte

	// FramesErr, if set, is returned after the last frame instead of io.EOF.
	FramesErr error

	// TrailerHeaders and TrailersErr script the Trailers call.
	TrailerHeaders http.Header
	TrailersErr    error

	next       int
	CloseCalls int
}

var _ transport.Body = (*Body)(nil)

// EndStream reports whether all frames have been consumed. A body scripted to
// fail is never at end-of-stream.
func (b *Body) EndStream() bool {
	return b.next >= len(b.Frames) && b.FramesErr == nil
}

// Data yields the next scripted frame.
func (b *Body) Data(context.Context) ([]byte, error) {
	if b.next < len(b.Frames) {
		frame := b.Frames[b.next]
		b.next++
		return frame, nil
	}
	if b.FramesErr != nil {
		return nil, b.FramesErr
	}
	return nil, io.EOF
}

// Trailers yields the scripted trailers.
func (b *Body) Trailers(context.Context) (http.Header, error) {
	if b.TrailersErr != nil {
		return nil, b.TrailersErr
	}
	return b.TrailerHeaders, nil
}

// Close records the call.
func (b *Body) Close() error {
	b.CloseCalls++
	return nil
}

// Service is a scripted transport.Service.
type Service struct {
	ReadyErr error

	// Response and CallErr script the result of Call.
	Response *transport.Response
	CallErr  error

	// LastRequest records the most recent request passed to Call.
	LastRequest *transport.Request
	Calls       int
}

var _ transport.Service = (*Service)(nil)

// Ready returns the scripted readiness error.
func (s *Service) Ready(context.Context) error { return s.ReadyErr }

// Call records the request and returns the scripted result.
func (s *Service) Call(_ context.Context, req *transport.Request) (*transport.Response, error) {
	s.Calls++
	s.LastRequest = req
	if s.CallErr != nil {
		return nil, s.CallErr
	}
	return s.Response, nil
}

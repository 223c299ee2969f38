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

package classify

import (
	"net/http"
	"strings"

	"github.com/meshrail/meshrail/profiles"
	"github.com/meshrail/meshrail/transport"
)

// NewDefault returns the default classification strategy: 5xx statuses are
// failures and everything else succeeds, except that gRPC responses defer to
// the grpc-status trailer.
func NewDefault() Classify { return defaultClassify{} }

type defaultClassify struct{}

func (defaultClassify) NewClassifyResponse() ClassifyResponse {
	return &defaultResponse{}
}

type defaultResponse struct {
	status int
}

func (d *defaultResponse) Start(res *transport.Response) (Class, bool) {
	d.status = res.Status
	if isGRPC(res.Header) {
		// The outcome is in the trailers; nothing to say yet.
		return Class{}, false
	}
	return statusClass(res.Status), true
}

func (d *defaultResponse) Error(err error) Class {
	return Class{Result: Failure, Reason: ReasonStreamError}
}

func (d *defaultResponse) EOS(trailers http.Header) Class {
	if code := trailers.Get("Grpc-Status"); code != "" {
		if code == "0" {
			return Class{Result: Success, Reason: ReasonGRPCStatus}
		}
		return Class{Result: Failure, Reason: ReasonGRPCStatus}
	}
	return statusClass(d.status)
}

func statusClass(status int) Class {
	if status >= 500 {
		return Class{Result: Failure}
	}
	return Class{Result: Success}
}

func isGRPC(h http.Header) bool {
	return strings.HasPrefix(h.Get("Content-Type"), "application/grpc")
}

// NewRules returns a strategy that classifies by the given rules, first
// match wins, falling back to the default strategy for unmatched responses.
func NewRules(classes profiles.ResponseClasses) Classify {
	return rulesClassify{classes: classes}
}

type rulesClassify struct {
	classes profiles.ResponseClasses
}

func (c rulesClassify) NewClassifyResponse() ClassifyResponse {
	return &rulesResponse{classes: c.classes}
}

type rulesResponse struct {
	classes  profiles.ResponseClasses
	fallback defaultResponse

	matched    Class
	hasMatched bool
}

func (r *rulesResponse) Start(res *transport.Response) (Class, bool) {
	for _, rule := range r.classes {
		if rule.IsMatch(res) {
			r.matched = Class{Result: Success}
			if rule.IsFailure() {
				r.matched = Class{Result: Failure}
			}
			r.hasMatched = true
			return r.matched, true
		}
	}
	return r.fallback.Start(res)
}

func (r *rulesResponse) Error(err error) Class {
	return r.fallback.Error(err)
}

func (r *rulesResponse) EOS(trailers http.Header) Class {
	// A rule verdict from the response head stands even when the stream is
	// torn down before its first data frame.
	if r.hasMatched {
		return r.matched
	}
	return r.fallback.EOS(trailers)
}

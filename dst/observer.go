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

package dst

import (
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const (
	_dstTag       = "dst"
	_directionTag = "direction"
	_reasonTag    = "reason"
)

// retryObserver records retry decisions for one destination to tally and
// zap.
type retryObserver struct {
	logger *zap.Logger

	retries          tally.Counter
	noRetrySuccesses tally.Counter
	noRetryTimeouts  tally.Counter
	noRetryBudgets   tally.Counter
}

func newRetryObserver(logger *zap.Logger, scope tally.Scope, d DstAddr) *retryObserver {
	scope = scope.Tagged(map[string]string{
		_dstTag:       d.String(),
		_directionTag: d.Direction().String(),
	})
	noRetry := func(reason NoRetryReason) tally.Counter {
		return scope.Tagged(map[string]string{_reasonTag: reason.String()}).Counter("no_retries")
	}
	return &retryObserver{
		logger: logger.With(
			zap.String(_dstTag, d.String()),
			zap.String(_directionTag, d.Direction().String()),
		),
		retries:          scope.Counter("retries"),
		noRetrySuccesses: noRetry(ReasonSuccess),
		noRetryTimeouts:  noRetry(ReasonTimeout),
		noRetryBudgets:   noRetry(ReasonBudget),
	}
}

func (o *retryObserver) retry() {
	o.retries.Inc(1)
	o.logger.Debug("Permitted retry.")
}

func (o *retryObserver) noRetry(reason NoRetryReason) {
	switch reason {
	case ReasonTimeout:
		o.noRetryTimeouts.Inc(1)
		o.logger.Debug("Denied retry: window elapsed.")
	case ReasonBudget:
		o.noRetryBudgets.Inc(1)
		o.logger.Warn("Denied retry: budget exhausted.")
	default:
		o.noRetrySuccesses.Inc(1)
	}
}

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
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/meshrail/meshrail/budget"
	"github.com/meshrail/meshrail/classify"
	"github.com/meshrail/meshrail/profiles"
	"github.com/meshrail/meshrail/transport"
)

var _timeNow = time.Now // for tests

// RouteOption customizes route observability.
type RouteOption interface {
	apply(*routeOptions)
}

type routeOptionFunc func(*routeOptions)

func (f routeOptionFunc) apply(opts *routeOptions) { f(opts) }

type routeOptions struct {
	scope  tally.Scope
	logger *zap.Logger
}

var defaultRouteOptions = routeOptions{
	scope:  tally.NoopScope,
	logger: zap.NewNop(),
}

// WithTally sets a Tally scope that will be used to record retry-decision
// metrics.
func WithTally(scope tally.Scope) RouteOption {
	return routeOptionFunc(func(opts *routeOptions) {
		opts.scope = scope
	})
}

// WithLogger sets a zap Logger that will be used to record retry-decision
// logs.
func WithLogger(logger *zap.Logger) RouteOption {
	return routeOptionFunc(func(opts *routeOptions) {
		opts.logger = logger
	})
}

// A Route binds a destination key to the policy the routing collaborator
// supplied for it. Routes are read-only after construction and cheap to
// copy; policy is shared, not duplicated.
type Route struct {
	dstAddr  DstAddr
	profile  profiles.Route
	observer *retryObserver
}

// NewRoute binds a destination key to its profile.
func NewRoute(d DstAddr, profile profiles.Route, opts ...RouteOption) Route {
	options := defaultRouteOptions
	for _, opt := range opts {
		opt.apply(&options)
	}
	return Route{
		dstAddr:  d,
		profile:  profile,
		observer: newRetryObserver(options.logger, options.scope, d),
	}
}

// DstAddr returns the destination key the route is bound to.
func (r Route) DstAddr() DstAddr { return r.dstAddr }

// Classify returns the route's response classification strategy.
func (r Route) Classify() classify.Classify {
	if classes := r.profile.ResponseClasses(); len(classes) > 0 {
		return classify.NewRules(classes)
	}
	return classify.NewDefault()
}

// Retries returns the route's retry decision, or false if the route has no
// retry budget configured.
func (r Route) Retries() (*Retry, bool) {
	ret := r.profile.Retries()
	if ret == nil {
		return nil, false
	}
	return &Retry{
		budget:          ret.Budget(),
		responseClasses: r.profile.ResponseClasses(),
		timeout:         ret.Timeout(),
		observer:        r.observer,
	}, true
}

// Retry decides whether a failed exchange may be retried, charging a shared
// budget.
type Retry struct {
	budget          *budget.Budget
	responseClasses profiles.ResponseClasses
	timeout         time.Duration
	observer        *retryObserver
}

// Retry reports whether the caller is permitted to retry the exchange that
// produced res. A nil error permits the retry; a NoRetry error carries the
// reason it was denied.
//
// Every invocation mutates the shared budget: failures withdraw from it and
// successes deposit to it. This is what ties retry volume to the recent
// success ratio.
func (r *Retry) Retry(startedAt time.Time, res *transport.Response) error {
	if _timeNow().Sub(startedAt) > r.timeout {
		r.observer.noRetry(ReasonTimeout)
		return NoRetry{Reason: ReasonTimeout}
	}

	// Prefer a classification attached by an earlier layer over evaluating
	// the route's rules here.
	isFailure := false
	if res == nil {
		isFailure = true
	} else if class, ok := classify.Attached(res); ok {
		isFailure = class.IsFailure()
	} else {
		for _, rule := range r.responseClasses {
			if rule.IsMatch(res) {
				isFailure = rule.IsFailure()
				break
			}
		}
	}

	if isFailure {
		if err := r.budget.Withdraw(); err != nil {
			r.observer.noRetry(ReasonBudget)
			return NoRetry{Reason: ReasonBudget}
		}
		r.observer.retry()
		return nil
	}

	r.budget.Deposit()
	r.observer.noRetry(ReasonSuccess)
	return NoRetry{Reason: ReasonSuccess}
}

// NoRetryReason says why a retry was denied.
type NoRetryReason int

const (
	// ReasonSuccess denies the retry because the exchange succeeded.
	ReasonSuccess NoRetryReason = iota
	// ReasonTimeout denies the retry because the route's retry window
	// elapsed.
	ReasonTimeout
	// ReasonBudget denies the retry because the budget is exhausted.
	ReasonBudget
)

// String names the reason.
func (r NoRetryReason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonBudget:
		return "budget"
	default:
		return "success"
	}
}

// NoRetry is the decision not to retry an exchange. It is a local return
// value for the retry orchestrator, not an error surfaced to callers.
type NoRetry struct {
	Reason NoRetryReason
}

// Error implements error.
func (e NoRetry) Error() string {
	return "retry not permitted: " + e.Reason.String()
}

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

// Package profiles models the per-route policy supplied by the routing
// collaborator: response classification rules and an optional retry policy.
package profiles

import (
	"time"

	"github.com/meshrail/meshrail/budget"
	"github.com/meshrail/meshrail/transport"
)

// A Route is the policy for one route: how responses are classified and
// whether failed exchanges may be retried. Routes are read-only after
// construction and cheap to copy; the classification rules and retry policy
// are shared, not duplicated.
type Route struct {
	responseClasses ResponseClasses
	retries         *Retries
}

// NewRoute builds a Route from classification rules and an optional retry
// policy. A nil retries means the route never permits retries.
func NewRoute(classes ResponseClasses, retries *Retries) Route {
	return Route{responseClasses: classes, retries: retries}
}

// ResponseClasses returns the route's classification rules in match order.
func (r Route) ResponseClasses() ResponseClasses { return r.responseClasses }

// Retries returns the route's retry policy, or nil if the route has none.
func (r Route) Retries() *Retries { return r.retries }

// Retries is the retry policy of a route: a shared budget and the window
// after issuance during which a response may still be evaluated for retry.
type Retries struct {
	budget  *budget.Budget
	timeout time.Duration
}

// NewRetries builds a retry policy around a shared budget.
func NewRetries(b *budget.Budget, timeout time.Duration) *Retries {
	return &Retries{budget: b, timeout: timeout}
}

// Budget returns the shared retry budget.
func (r *Retries) Budget() *budget.Budget { return r.budget }

// Timeout returns the retryability window.
func (r *Retries) Timeout() time.Duration { return r.timeout }

// ResponseClasses is an ordered rule list; the first matching rule decides
// whether a response is a failure.
type ResponseClasses []ResponseClass

// A ResponseClass pairs a match condition with a failure verdict.
type ResponseClass struct {
	failure bool
	match   ResponseMatch
}

// NewResponseClass builds a classification rule.
func NewResponseClass(failure bool, match ResponseMatch) ResponseClass {
	return ResponseClass{failure: failure, match: match}
}

// IsFailure reports whether responses matching this rule count as failures.
func (c ResponseClass) IsFailure() bool { return c.failure }

// IsMatch reports whether the rule applies to the response.
func (c ResponseClass) IsMatch(res *transport.Response) bool {
	return c.match.IsMatch(res)
}

// ResponseMatch is a condition over a response head.
type ResponseMatch interface {
	IsMatch(res *transport.Response) bool
}

// StatusRange matches responses whose status lies in [Min, Max], inclusive.
type StatusRange struct {
	Min, Max int
}

// IsMatch implements ResponseMatch.
func (m StatusRange) IsMatch(res *transport.Response) bool {
	return m.Min <= res.Status && res.Status <= m.Max
}

// All matches when every sub-condition matches.
type All []ResponseMatch

// IsMatch implements ResponseMatch.
func (m All) IsMatch(res *transport.Response) bool {
	for _, sub := range m {
		if !sub.IsMatch(res) {
			return false
		}
	}
	return true
}

// Any matches when at least one sub-condition matches.
type Any []ResponseMatch

// IsMatch implements ResponseMatch.
func (m Any) IsMatch(res *transport.Response) bool {
	for _, sub := range m {
		if sub.IsMatch(res) {
			return true
		}
	}
	return false
}

// Not inverts a condition.
type Not struct {
	Match ResponseMatch
}

// IsMatch implements ResponseMatch.
func (m Not) IsMatch(res *transport.Response) bool {
	return !m.Match.IsMatch(res)
}

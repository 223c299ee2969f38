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

package profiles

import (
	"fmt"
	"time"

	"github.com/uber-go/mapdecode"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"github.com/meshrail/meshrail/budget"
)

const _tagName = "config"

// Budget defaults applied when a retry policy omits them.
const (
	_defaultBudgetTTL           = 10 * time.Second
	_defaultMinRetriesPerSecond = 10
	_defaultRetryRatio          = 0.2
)

// Config is the root of a profile configuration document.
type Config struct {
	// Routes maps route names to their policy.
	Routes map[string]RouteConfig `config:"routes"`
}

// RouteConfig defines how to construct one Route.
type RouteConfig struct {
	// ResponseClasses are classification rules in match order.
	ResponseClasses []ResponseClassConfig `config:"responseClasses"`

	// Retries, if present, enables retries for the route.
	Retries *RetriesConfig `config:"retries"`
}

// ResponseClassConfig defines one classification rule.
type ResponseClassConfig struct {
	Failure bool        `config:"failure"`
	Match   MatchConfig `config:"match"`
}

// MatchConfig defines a response match condition. Exactly one field must be
// set.
type MatchConfig struct {
	Status *StatusRangeConfig `config:"status"`
	All    []MatchConfig      `config:"all"`
	Any    []MatchConfig      `config:"any"`
	Not    *MatchConfig       `config:"not"`
}

// StatusRangeConfig defines an inclusive status code range.
type StatusRangeConfig struct {
	Min int `config:"min"`
	Max int `config:"max"`
}

// RetriesConfig defines a retry policy.
type RetriesConfig struct {
	Budget  *BudgetConfig `config:"budget"`
	Timeout time.Duration `config:"timeout"`
}

// BudgetConfig defines how to construct a retry budget.
type BudgetConfig struct {
	TTL                 time.Duration `config:"ttl"`
	MinRetriesPerSecond int           `config:"minRetriesPerSecond"`
	RetryRatio          float64       `config:"retryRatio"`
}

// LoadYAML parses a profile configuration document and builds the routes it
// defines.
func LoadYAML(data []byte) (map[string]Route, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse profile config: %v", err)
	}
	var cfg Config
	if err := mapdecode.Decode(&cfg, raw, mapdecode.TagName(_tagName)); err != nil {
		return nil, fmt.Errorf("failed to decode profile config: %v", err)
	}
	return cfg.Build()
}

// Build constructs the configured routes, accumulating every configuration
// error rather than stopping at the first.
func (cfg Config) Build() (map[string]Route, error) {
	var errs error
	routes := make(map[string]Route, len(cfg.Routes))
	for name, rc := range cfg.Routes {
		route, err := rc.build()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("route %q: %v", name, err))
			continue
		}
		routes[name] = route
	}
	if errs != nil {
		return nil, errs
	}
	return routes, nil
}

func (rc RouteConfig) build() (Route, error) {
	var errs error

	classes := make(ResponseClasses, 0, len(rc.ResponseClasses))
	for i, cc := range rc.ResponseClasses {
		match, err := cc.Match.build()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("response class %d: %v", i, err))
			continue
		}
		classes = append(classes, NewResponseClass(cc.Failure, match))
	}

	var retries *Retries
	if rc.Retries != nil {
		retries = rc.Retries.build()
	}

	if errs != nil {
		return Route{}, errs
	}
	return NewRoute(classes, retries), nil
}

func (rc *RetriesConfig) build() *Retries {
	ttl := _defaultBudgetTTL
	minRetries := _defaultMinRetriesPerSecond
	ratio := _defaultRetryRatio
	if b := rc.Budget; b != nil {
		if b.TTL > 0 {
			ttl = b.TTL
		}
		if b.MinRetriesPerSecond > 0 {
			minRetries = b.MinRetriesPerSecond
		}
		if b.RetryRatio > 0 {
			ratio = b.RetryRatio
		}
	}
	return NewRetries(budget.New(ttl, minRetries, ratio), rc.Timeout)
}

func (mc MatchConfig) build() (ResponseMatch, error) {
	var (
		matches []ResponseMatch
		errs    error
	)

	if mc.Status != nil {
		if err := mc.Status.validate(); err != nil {
			errs = multierr.Append(errs, err)
		} else {
			matches = append(matches, StatusRange{Min: mc.Status.Min, Max: mc.Status.Max})
		}
	}
	if len(mc.All) > 0 {
		sub, err := buildMatches(mc.All)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			matches = append(matches, All(sub))
		}
	}
	if len(mc.Any) > 0 {
		sub, err := buildMatches(mc.Any)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			matches = append(matches, Any(sub))
		}
	}
	if mc.Not != nil {
		sub, err := mc.Not.build()
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			matches = append(matches, Not{Match: sub})
		}
	}

	if errs != nil {
		return nil, errs
	}
	if len(matches) != 1 {
		return nil, fmt.Errorf("expected exactly one of status, all, any, or not, got %d", len(matches))
	}
	return matches[0], nil
}

func buildMatches(mcs []MatchConfig) ([]ResponseMatch, error) {
	var errs error
	sub := make([]ResponseMatch, 0, len(mcs))
	for _, mc := range mcs {
		m, err := mc.build()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		sub = append(sub, m)
	}
	if errs != nil {
		return nil, errs
	}
	return sub, nil
}

func (sc *StatusRangeConfig) validate() error {
	if sc.Min < 100 || sc.Max > 599 || sc.Min > sc.Max {
		return fmt.Errorf("invalid status range [%d, %d]", sc.Min, sc.Max)
	}
	return nil
}

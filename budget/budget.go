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

// Package budget provides a shared retry budget: a time-windowed counter
// that ties the volume of permitted retries to the volume of recent
// successes, preventing retry storms.
package budget

import (
	"errors"
	"sync"
	"time"

	"github.com/meshrail/meshrail/internal/clock"
)

// ErrOverdrawn is returned by Withdraw when the budget is exhausted.
var ErrOverdrawn = errors.New("budget: retry budget exhausted")

// Budgets are divided into a fixed number of rotating time slots so that
// deposited credit expires after the configured TTL.
const _slots = 10

// A Budget is a shared, concurrency-safe retry budget. Successes deposit
// spendable credit; failures withdraw it. Credit expires after a TTL, and an
// optional reserve grants a minimum retry allowance independent of deposits.
type Budget struct {
	deposit  int64
	withdraw int64
	reserve  int64

	clock  clock.Clock
	window time.Duration

	mu      sync.Mutex
	slots   [_slots]int64
	writer  int
	total   int64
	rotated time.Time
}

// New creates a Budget.
//
// ttl bounds how long deposited credit remains spendable.
// minRetriesPerSecond is an unconditional retry allowance granted even when
// no credit has been deposited. retryRatio is the ratio of retries to
// successes the budget converges to: 0.2 permits one retry per five
// successes. A retryRatio of zero or less disables deposit-funded retries
// entirely, leaving only the reserve.
func New(ttl time.Duration, minRetriesPerSecond int, retryRatio float64) *Budget {
	return newBudget(ttl, minRetriesPerSecond, retryRatio, clock.NewReal())
}

func newBudget(ttl time.Duration, minRetriesPerSecond int, retryRatio float64, c clock.Clock) *Budget {
	var deposit, withdraw int64
	switch {
	case retryRatio <= 0:
		deposit, withdraw = 0, 1
	case retryRatio <= 1:
		deposit, withdraw = 1, int64(1/retryRatio+0.5)
	default:
		deposit, withdraw = int64(retryRatio+0.5), 1
	}
	return &Budget{
		deposit:  deposit,
		withdraw: withdraw,
		reserve:  int64(minRetriesPerSecond) * int64(ttl/time.Second) * withdraw,
		clock:    c,
		window:   ttl / _slots,
	}
}

// Deposit funds the budget with credit for one success. Deposits never fail.
func (b *Budget) Deposit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	b.slots[b.writer] += b.deposit
	b.total += b.deposit
}

// Withdraw consumes the cost of one retry from the budget. It returns
// ErrOverdrawn, without consuming anything, when insufficient budget
// remains.
func (b *Budget) Withdraw() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	if b.total+b.reserve < b.withdraw {
		return ErrOverdrawn
	}
	// The balance may go negative, borrowing against the reserve; negative
	// slots expire with the TTL like any other.
	b.slots[b.writer] -= b.withdraw
	b.total -= b.withdraw
	return nil
}

// advance rotates expired slots out of the window. Must be called with b.mu
// held.
func (b *Budget) advance() {
	now := b.clock.Now()
	if b.rotated.IsZero() {
		b.rotated = now
		return
	}
	n := int(now.Sub(b.rotated) / b.window)
	if n <= 0 {
		return
	}
	if n >= _slots {
		b.slots = [_slots]int64{}
		b.total = 0
		b.rotated = now
		return
	}
	for i := 0; i < n; i++ {
		b.writer = (b.writer + 1) % _slots
		b.total -= b.slots[b.writer]
		b.slots[b.writer] = 0
	}
	b.rotated = b.rotated.Add(time.Duration(n) * b.window)
}

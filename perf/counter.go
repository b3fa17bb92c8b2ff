// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"sync"
	"time"

	"v.io/v23/context"
	"v.io/x/ref/lib/timekeeper"
)

// Counter counts asynchronous operations that have been issued but whose
// completion has not yet been observed. Inc is called once per issued
// operation and Dec once per completion; the count never goes negative.
type Counter struct {
	tk timekeeper.TimeKeeper

	mu         sync.Mutex
	n          int
	underflows int
	zero       chan struct{} // closed whenever n == 0
}

// NewCounter returns a zero counter whose waits are timed by tk, or by the
// system clock if tk is nil.
func NewCounter(tk timekeeper.TimeKeeper) *Counter {
	if tk == nil {
		tk = timekeeper.RealTime()
	}
	c := &Counter{tk: tk, zero: make(chan struct{})}
	close(c.zero)
	return c
}

func (c *Counter) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		c.zero = make(chan struct{})
	}
	c.n++
}

// Dec records a completion. A completion arriving after the counter was
// forced to zero is counted as an underflow and otherwise ignored.
func (c *Counter) Dec() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		c.underflows++
		return
	}
	c.n--
	if c.n == 0 {
		close(c.zero)
	}
}

// Count returns the number of outstanding operations.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Underflows returns the number of completions observed while the count
// was zero.
func (c *Counter) Underflows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.underflows
}

// Reset forces the count to zero.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Counter) resetLocked() {
	if c.n != 0 {
		c.n = 0
		close(c.zero)
	}
}

// Wait waits up to grace for the outstanding operations to complete. Any
// that have not completed by then are reported as missing responses and
// the count is forced to zero.
func (c *Counter) Wait(ctx *context.T, grace time.Duration) error {
	c.mu.Lock()
	zero := c.zero
	c.mu.Unlock()
	select {
	case <-zero:
	case <-c.tk.After(grace):
	case <-ctx.Done():
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	missing := c.n
	c.resetLocked()
	if missing > 0 {
		ctx.Infof("%d missing responses!", missing)
		return ErrMissingResponses.Errorf(ctx, "%d missing responses", missing)
	}
	return nil
}

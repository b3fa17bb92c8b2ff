// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"time"

	"v.io/x/ref/lib/timekeeper"
)

// Clock is a monotonic time source. Now may fail, in which case no timing
// derived from it can be trusted.
type Clock interface {
	Now() (time.Time, error)
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() (time.Time, error)

func (f ClockFunc) Now() (time.Time, error) { return f() }

// ClockOf returns a Clock that reads tk, which never fails.
func ClockOf(tk timekeeper.TimeKeeper) Clock {
	return ClockFunc(func() (time.Time, error) { return tk.Now(), nil })
}

// RealClock returns a Clock reading the system's monotonic clock.
func RealClock() Clock {
	return ClockOf(timekeeper.RealTime())
}

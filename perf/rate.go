// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"time"
)

// Window is the interval covered by a batch: from immediately before the
// first operation was issued to the completion of the last one.
type Window struct {
	Start, End time.Time
}

func (w Window) Elapsed() time.Duration {
	return w.End.Sub(w.Start)
}

// Rate is the throughput of a batch.
type Rate struct {
	Count   int
	Elapsed time.Duration
	// PerSecond is Count * 1e9 / Elapsed in nanoseconds, in integer
	// arithmetic, rounded down but never below one for a non-empty batch.
	PerSecond int64
}

// Rate computes the throughput of count operations over w. A window that
// is empty or runs backwards is a clock anomaly.
func (w Window) Rate(count int) (Rate, error) {
	elapsed := w.Elapsed()
	if elapsed <= 0 {
		return Rate{}, ErrClockAnomaly.Errorf(nil, "elapsed time %v for %d operations", elapsed, count)
	}
	perSecond := int64(count) * int64(time.Second) / elapsed.Nanoseconds()
	if perSecond == 0 && count > 0 {
		perSecond = 1
	}
	return Rate{
		Count:     count,
		Elapsed:   elapsed,
		PerSecond: perSecond,
	}, nil
}

// Float returns the rate in operations per second without truncation.
func (r Rate) Float() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Count) / r.Elapsed.Seconds()
}

// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"time"

	"v.io/x/ref/test/benchmark"
)

// Initial values of Extremes, chosen so that the first sample replaces
// both.
const (
	MinLatencySentinel = 100 * time.Second
	MaxLatencySentinel = time.Duration(0)
)

// Extremes holds the running minimum and maximum of a set of latencies.
type Extremes struct {
	Min, Max time.Duration
	Samples  int
}

// NewExtremes returns Extremes initialized to the sentinels.
func NewExtremes() Extremes {
	return Extremes{Min: MinLatencySentinel, Max: MaxLatencySentinel}
}

// Observe merges d into e. Negative latencies are rejected as a clock
// anomaly and leave e unchanged.
func (e *Extremes) Observe(d time.Duration) error {
	if d < 0 {
		return ErrClockAnomaly.Errorf(nil, "negative latency %v", d)
	}
	if d > e.Max {
		e.Max = d
	}
	if d < e.Min {
		e.Min = d
	}
	e.Samples++
	return nil
}

// Tracker records the latency of each operation of one stream, keeping
// the extremes and a histogram. It is not safe for concurrent use; it is
// owned by the goroutine driving the stream.
type Tracker struct {
	Extremes
	hist *benchmark.Stats
}

func NewTracker() *Tracker {
	return &Tracker{Extremes: NewExtremes(), hist: benchmark.NewStats(16)}
}

// Observe records the latency of an operation issued at issue and
// completed at complete.
func (t *Tracker) Observe(issue, complete time.Time) error {
	d := complete.Sub(issue)
	if err := t.Extremes.Observe(d); err != nil {
		return err
	}
	t.hist.Add(d)
	return nil
}

// Histogram returns the latency distribution.
func (t *Tracker) Histogram() *benchmark.Stats {
	return t.hist
}

// ms converts d to fractional milliseconds.
func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

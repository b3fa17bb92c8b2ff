// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"fmt"
	"path"

	libstats "v.io/x/ref/lib/stats"
	"v.io/x/vtest/vtest"
)

// StatsPrefix is the root of the stats tree the measured figures are
// exported under.
const StatsPrefix = "vtest"

// statsName returns the name of a figure of test num in run.
func statsName(run string, num int, figure string) string {
	return path.Join(StatsPrefix, run, fmt.Sprint(num), figure)
}

// exporter records figures against a test's status and publishes them to
// the stats tree.
type exporter struct {
	st  *vtest.Status
	run string
	num int
}

func (e exporter) integer(name string, v int64, format string, args ...interface{}) {
	e.st.Record(name, format, args...)
	if e.run != "" {
		libstats.NewInteger(statsName(e.run, e.num, name)).Set(v)
	}
}

func (e exporter) float(name string, v float64, format string, args ...interface{}) {
	e.st.Record(name, format, args...)
	if e.run != "" {
		libstats.NewFloat(statsName(e.run, e.num, name)).Set(v)
	}
}

// rate records the throughput of a batch.
func (e exporter) rate(name string, r Rate) {
	e.integer(name, r.PerSecond, "%d operations in %v: %d/s", r.Count, r.Elapsed, r.PerSecond)
}

// latency records the extremes of a batch in milliseconds.
func (e exporter) latency(name string, t *Tracker) {
	e.float(name+"-min-ms", ms(t.Min), "%.3f ms", ms(t.Min))
	e.float(name+"-max-ms", ms(t.Max), "%.3f ms", ms(t.Max))
}

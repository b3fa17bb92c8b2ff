// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf_test

import (
	"errors"
	"flag"
	"strings"
	"testing"
	"time"

	"v.io/x/ref/test/timekeeper"
	"v.io/x/vtest/perf"
)

func TestCounter(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()

	c := perf.NewCounter(nil)
	c.Inc()
	c.Inc()
	c.Dec()
	if got, want := c.Count(), 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	c.Dec()
	c.Dec()
	if got, want := c.Count(), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := c.Underflows(), 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := c.Wait(ctx, time.Minute); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Completions arriving during the wait end it.
	c.Inc()
	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Dec()
	}()
	if err := c.Wait(ctx, time.Minute); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCounterMissingResponses(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()

	mt := timekeeper.NewManualTime()
	c := perf.NewCounter(mt)
	c.Inc()
	c.Inc()
	c.Inc()
	c.Dec()
	go func() {
		if got, want := <-mt.Requests(), 10*time.Millisecond; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		mt.AdvanceTime(10 * time.Millisecond)
	}()
	err := c.Wait(ctx, 10*time.Millisecond)
	if !errors.Is(err, perf.ErrMissingResponses) {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "2 missing responses") {
		t.Errorf("unexpected error message: %v", err)
	}
	if got, want := c.Count(), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	// A late completion must not take the count negative.
	c.Dec()
	if got, want := c.Count(), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtremes(t *testing.T) {
	e := perf.NewExtremes()
	if e.Min != perf.MinLatencySentinel || e.Max != perf.MaxLatencySentinel {
		t.Fatalf("unexpected initial extremes: %+v", e)
	}
	samples := []time.Duration{5 * time.Millisecond, 3 * time.Millisecond, 9 * time.Millisecond, 4 * time.Millisecond, 0, 7 * time.Millisecond}
	prev := e
	for i, d := range samples {
		if err := e.Observe(d); err != nil {
			t.Fatal(err)
		}
		if e.Min > prev.Min || e.Max < prev.Max {
			t.Errorf("sample %d: extremes loosened from %+v to %+v", i, prev, e)
		}
		for _, s := range samples[:i+1] {
			if s < e.Min || s > e.Max {
				t.Errorf("sample %d: %v outside [%v, %v]", i, s, e.Min, e.Max)
			}
		}
		prev = e
	}
	if got, want := e.Min, time.Duration(0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := e.Max, 9*time.Millisecond; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := e.Observe(-time.Nanosecond); !errors.Is(err, perf.ErrClockAnomaly) {
		t.Errorf("unexpected error: %v", err)
	}
	if got, want := e.Samples, len(samples); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTracker(t *testing.T) {
	tr := perf.NewTracker()
	start := time.Unix(100, 0)
	for _, d := range []time.Duration{time.Millisecond, 2 * time.Millisecond} {
		if err := tr.Observe(start, start.Add(d)); err != nil {
			t.Fatal(err)
		}
	}
	if tr.Min != time.Millisecond || tr.Max != 2*time.Millisecond {
		t.Errorf("unexpected extremes: %v, %v", tr.Min, tr.Max)
	}
	if err := tr.Observe(start, start.Add(-time.Millisecond)); !errors.Is(err, perf.ErrClockAnomaly) {
		t.Errorf("unexpected error: %v", err)
	}
	if got, want := tr.Samples, 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if tr.Histogram() == nil {
		t.Errorf("no histogram")
	}
}

func TestRate(t *testing.T) {
	start := time.Unix(100, 0)
	for i, tc := range []struct {
		count     int
		elapsed   time.Duration
		perSecond int64
	}{
		{5000, time.Second, 5000},
		{5000, 10 * time.Second, 500},
		{3, 2 * time.Second, 1},
		{1, time.Millisecond, 1000},
		{7, 3 * time.Nanosecond, 2333333333},
		{2, 3 * time.Second, 1},
		{1, time.Hour, 1},
	} {
		r, err := perf.Window{Start: start, End: start.Add(tc.elapsed)}.Rate(tc.count)
		if err != nil {
			t.Errorf("%d: unexpected error: %v", i, err)
			continue
		}
		if got, want := r.PerSecond, tc.perSecond; got != want {
			t.Errorf("%d: got %v, want %v", i, got, want)
		}
		if r.PerSecond <= 0 || r.Float() <= 0 {
			t.Errorf("%d: rate not positive: %+v", i, r)
		}
	}
	if r, _ := (perf.Window{Start: start, End: start.Add(2 * time.Second)}).Rate(3); r.Float() != 1.5 {
		t.Errorf("got %v, want 1.5", r.Float())
	}
	for _, end := range []time.Time{start, start.Add(-time.Second)} {
		if _, err := (perf.Window{Start: start, End: end}).Rate(10); !errors.Is(err, perf.ErrClockAnomaly) {
			t.Errorf("unexpected error: %v", err)
		}
	}
}

func TestThreshold(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()

	rate := perf.Threshold{Name: "rate", Kind: perf.MinRate, Hardware: 2500, Software: 1000}
	if got, want := rate.Select(true), 2500.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := rate.Select(false), 1000.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	for _, tc := range []struct {
		perSecond int64
		hw        bool
		ok        bool
	}{
		{2500, true, true},
		{2499, true, false},
		{2499, false, true},
		{999, false, false},
	} {
		err := rate.CheckRate(ctx, perf.Rate{Count: 1, Elapsed: time.Second, PerSecond: tc.perSecond}, tc.hw)
		if tc.ok != (err == nil) {
			t.Errorf("%+v: unexpected result: %v", tc, err)
		}
		if err != nil && !errors.Is(err, perf.ErrThreshold) {
			t.Errorf("%+v: unexpected error: %v", tc, err)
		}
	}

	latency := perf.Threshold{Name: "latency", Kind: perf.MaxLatency, Hardware: 10, Software: 20}
	for _, tc := range []struct {
		max time.Duration
		hw  bool
		ok  bool
	}{
		{10 * time.Millisecond, true, true},
		{10*time.Millisecond + time.Microsecond, true, false},
		{15 * time.Millisecond, false, true},
		{21 * time.Millisecond, false, false},
	} {
		err := latency.CheckLatency(ctx, tc.max, tc.hw)
		if tc.ok != (err == nil) {
			t.Errorf("%+v: unexpected result: %v", tc, err)
		}
		if err != nil && !errors.Is(err, perf.ErrThreshold) {
			t.Errorf("%+v: unexpected error: %v", tc, err)
		}
	}
}

func TestConfig(t *testing.T) {
	cfg := perf.DefaultConfig()
	if got, want := cfg.VerifyCount, 5000; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := cfg.Grace, 10*time.Millisecond; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := cfg.VerifyRate().Select(true), 2500.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := cfg.GenRate().Select(true), 200.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := cfg.VerifyLatency().Kind, perf.MaxLatency; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var parsed perf.Config
	perf.RegisterFlags(fs, &parsed)
	if err := fs.Parse([]string{"-perf.verify-count=10", "-perf.sustained=1s", "-perf.hardware=yes", "-perf.verify-rate-hw=1.5"}); err != nil {
		t.Fatal(err)
	}
	if parsed.VerifyCount != 10 || parsed.Sustained != time.Second || parsed.VerifyRateHW != 1.5 || parsed.Keys != 5 {
		t.Errorf("unexpected config: %+v", parsed)
	}

	ctx, cancel := newContext()
	defer cancel()
	for _, tc := range []struct {
		value string
		hw    bool
	}{{"yes", true}, {"no", false}} {
		p, err := perf.Config{Hardware: tc.value}.Probe()
		if err != nil {
			t.Fatal(err)
		}
		if hw, err := p.HardwarePresent(ctx); err != nil || hw != tc.hw {
			t.Errorf("%s: got %v, %v", tc.value, hw, err)
		}
	}
	if _, err := (perf.Config{Hardware: "maybe"}).Probe(); !errors.Is(err, perf.ErrSetup) {
		t.Errorf("unexpected error: %v", err)
	}
	if p, err := (perf.Config{Hardware: "auto"}).Probe(); err != nil {
		t.Error(err)
	} else if _, ok := p.(perf.CPUProbe); !ok {
		t.Errorf("unexpected probe %T", p)
	}
}

func TestInconclusive(t *testing.T) {
	for _, tc := range []struct {
		err  error
		conf bool
	}{
		{perf.ErrSetup.Errorf(nil, "no keys"), true},
		{perf.ErrClock.Errorf(nil, "no clock"), true},
		{perf.ErrMissingResponses.Errorf(nil, "2 missing responses"), false},
		{perf.ErrThreshold.Errorf(nil, "too slow"), false},
	} {
		if got, want := perf.Inconclusive(tc.err), tc.conf; got != want {
			t.Errorf("%v: got %v, want %v", tc.err, got, want)
		}
	}
}

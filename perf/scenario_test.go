// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"v.io/x/ref/test/timekeeper"
	"v.io/x/vtest/perf"
	"v.io/x/vtest/se"
	"v.io/x/vtest/se/emu"
	"v.io/x/vtest/vtest"
)

// A verification batch at a fixed 200µs per operation runs at exactly
// 5000 operations per second, one at a time.
func TestVerifyRateAtFixedLatency(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()
	mt := timekeeper.NewManualTime()
	s, done := activated(t, ctx, emu.WithClock(mt), emu.WithLatency(emu.OpVerify, 200*time.Microsecond))
	defer done()

	pool, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 5, Count: 5000, Curve: se.NISTP256, Signed: true})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(ctx)

	p := &perf.Pipeline{Count: 5000, Clock: perf.ClockOf(mt)}
	b, err := p.Run(ctx, perf.VerifyIssuer(s.Dispatcher(), pool))
	if err != nil {
		t.Fatal(err)
	}
	r, err := b.Rate()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := r.PerSecond, int64(5000); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := r.Elapsed, time.Second; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	th := perf.Threshold{Name: "verification rate", Kind: perf.MinRate, Hardware: 2500, Software: 2500}
	if err := th.CheckRate(ctx, r, true); err != nil {
		t.Error(err)
	}
	if got, want := s.MaxInFlight(), 1; got != want {
		t.Errorf("got %v operations in flight, want %v", got, want)
	}
	if b.Latency.Min != 200*time.Microsecond || b.Latency.Max != 200*time.Microsecond {
		t.Errorf("unexpected latency: %v, %v", b.Latency.Min, b.Latency.Max)
	}
}

func TestSingleOperationLatency(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()
	mt := timekeeper.NewManualTime()
	s, done := activated(t, ctx, emu.WithClock(mt), emu.WithLatency(emu.OpVerify, 3*time.Millisecond))
	defer done()

	pool, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 1, Count: 1, Curve: se.NISTP256, Signed: true})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(ctx)

	b, err := (&perf.Pipeline{Count: 1, Clock: perf.ClockOf(mt)}).Run(ctx, perf.VerifyIssuer(s.Dispatcher(), pool))
	if err != nil {
		t.Fatal(err)
	}
	if b.Latency.Min != 3*time.Millisecond || b.Latency.Max != 3*time.Millisecond {
		t.Errorf("unexpected latency: %v, %v", b.Latency.Min, b.Latency.Max)
	}
	th := perf.Threshold{Name: "verification latency", Kind: perf.MaxLatency, Hardware: 10, Software: 10}
	if err := th.CheckLatency(ctx, b.Latency.Max, false); err != nil {
		t.Error(err)
	}
}

// One failed verification in a batch fails the test but neither stops the
// batch nor prevents it from draining.
func TestAsyncFailureMidBatch(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()
	mt := timekeeper.NewManualTime()
	s, done := activated(t, ctx, emu.WithClock(mt),
		emu.WithLatency(emu.OpVerify, time.Millisecond),
		emu.FailWhen(emu.At(emu.OpVerify, 36)))
	defer done()

	pool, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 5, Count: 1000, Curve: se.NISTP256, Signed: true})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(ctx)

	b, err := (&perf.Pipeline{Count: 1000, Clock: perf.ClockOf(mt)}).Run(ctx, perf.VerifyIssuer(s.Dispatcher(), pool))
	if !errors.Is(err, perf.ErrAsyncFailure) {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Completed != 1000 || b.Failed != 1 || b.State != perf.Failed {
		t.Errorf("unexpected batch: %+v", b)
	}
	if !strings.Contains(b.FirstErr.Error(), "verification 36") {
		t.Errorf("unexpected first error: %v", b.FirstErr)
	}
	r, err := b.Rate()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := r.PerSecond, int64(1000); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// Stopping two load streams that each have an operation that will never
// complete reports both as missing.
func TestLoadStopMissingResponses(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()
	const dropFrom = 50
	s, done := activated(t, ctx, emu.DropWhen(emu.From(emu.OpVerify, dropFrom)))
	defer done()

	pool, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 2, Count: 10, Curve: se.NISTP256, Signed: true})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(ctx)

	load := perf.StartAsyncLoad(ctx, 2, perf.VerifyIssuer(s.Dispatcher(), pool), nil, nil, 10*time.Millisecond)
	// Each stream stalls on the first operation it issues at or after
	// dropFrom, so two such operations mean both have stalled.
	eventually(t, "both streams to stall", func() bool { return s.Ordinal(emu.OpVerify) >= dropFrom+2 })
	ops, err := load.Stop(ctx)
	if !errors.Is(err, perf.ErrMissingResponses) {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "2 missing responses") {
		t.Errorf("unexpected error message: %v", err)
	}
	if got, want := ops, dropFrom; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := load.Outstanding(), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	st := &vtest.Status{}
	st.CheckNoError("load", err)
	if got, want := st.Verdict(), vtest.Fail; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// A duration-bounded batch reports the rate over what actually ran, not
// over its nominal countdown.
func TestSustainedRate(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()
	mt := timekeeper.NewManualTime()
	s, done := activated(t, ctx, emu.WithClock(mt), emu.WithLatency(emu.OpVerify, 2*time.Millisecond))
	defer done()

	pool, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 5, Count: 100, Curve: se.NISTP256, Signed: true})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(ctx)

	p := &perf.Pipeline{Count: math.MaxInt32, Duration: 10 * time.Second, Clock: perf.ClockOf(mt)}
	b, err := p.Run(ctx, perf.VerifyIssuer(s.Dispatcher(), pool))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := b.Completed, 5000; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	r, err := b.Rate()
	if err != nil {
		t.Fatal(err)
	}
	if r.Elapsed != 10*time.Second || r.Count != 5000 || r.PerSecond != 500 {
		t.Errorf("unexpected rate: %+v", r)
	}
}

// Operations of a load stream never show up in the measured stream.
func TestLoadIsolation(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()
	s, done := activated(t, ctx)
	defer done()

	pool, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 2, Count: 20, Curve: se.NISTP256, Signed: true})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(ctx)

	load := perf.StartSyncLoad(ctx, perf.SignCaller(s, pool), nil, time.Second)
	b, err := (&perf.Pipeline{Count: 200}).Run(ctx, perf.VerifyIssuer(s.Dispatcher(), pool))
	ops, lerr := load.Stop(ctx)
	if err != nil || lerr != nil {
		t.Fatalf("unexpected errors: %v, %v", err, lerr)
	}
	if b.Completed != 200 || b.Latency.Samples != 200 {
		t.Errorf("unexpected batch: %+v", b)
	}
	if ops == 0 {
		t.Errorf("load did not run")
	}
}

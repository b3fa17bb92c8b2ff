// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf_test

import (
	"testing"
	"time"

	"v.io/v23/context"
	"v.io/x/lib/vlog"
	"v.io/x/vtest/se"
	"v.io/x/vtest/se/emu"
)

func newContext() (*context.T, context.CancelFunc) {
	ctx, cancel := context.RootContext()
	return context.WithLogger(ctx, vlog.Log), cancel
}

// activated returns an emulated secure element with its engine and
// dispatcher activated, and a function to tear them down.
func activated(t *testing.T, ctx *context.T, opts ...emu.Option) (*emu.SE, func()) {
	s := emu.New(opts...)
	if err := s.Activate(ctx, se.RegionEU); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispatcher().Activate(ctx); err != nil {
		t.Fatal(err)
	}
	return s, func() {
		if err := s.Dispatcher().Deactivate(ctx); err != nil {
			t.Error(err)
		}
		if err := s.Reset(ctx); err != nil {
			t.Error(err)
		}
	}
}

// eventually polls cond until it holds or a generous deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

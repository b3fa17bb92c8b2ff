// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"testing"

	"v.io/x/vtest/perf"
	"v.io/x/vtest/se"
	"v.io/x/vtest/se/emu"
)

func TestPoolSigned(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()
	s, done := activated(t, ctx)
	defer done()

	pool, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 3, Count: 7, Curve: se.NISTP256, Hash: perf.RandomHashes, Signed: true})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := pool.Len(), 7; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := pool.Keys(), 3; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	for i, want := range []int{0, 1, 2, 0, 1, 2, 0, 0, 1} {
		if got := pool.Slot(i); got != want {
			t.Errorf("%d: got slot %v, want %v", i, got, want)
		}
	}
	if !bytes.Equal(pool.Hash(7), pool.Hash(0)) {
		t.Errorf("indices do not wrap")
	}
	if pool.Message(0) != nil {
		t.Errorf("unexpected message")
	}
	for i := 0; i < pool.Len(); i++ {
		if got, want := len(pool.Hash(i)), 32; got != want {
			t.Errorf("%d: got %v, want %v", i, got, want)
		}
		key, err := pool.PublicKey(i).ECDSA()
		if err != nil {
			t.Fatal(err)
		}
		der, err := pool.Signature(i).MarshalDER()
		if err != nil {
			t.Fatal(err)
		}
		if !ecdsa.VerifyASN1(key, pool.Hash(i), der) {
			t.Errorf("%d: signature does not verify", i)
		}
	}

	pool.Release(ctx)
	pool.Release(ctx)
	if _, err := s.CreateRtSign(ctx, 0, pool.Hash(0)); !errors.Is(err, se.ErrKeyNotPresent) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPoolMessages(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()
	s, done := activated(t, ctx)
	defer done()

	pool, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 2, Count: 4, Curve: se.NISTP256, Hash: perf.MessageHashes})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(ctx)
	for i := 0; i < pool.Len(); i++ {
		h := sha256.Sum256(pool.Message(i))
		if !bytes.Equal(h[:], pool.Hash(i)) {
			t.Errorf("%d: hash is not of the message", i)
		}
		if sig := pool.Signature(i); sig.R != nil || sig.S != nil {
			t.Errorf("%d: unexpected signature %v", i, sig)
		}
	}
}

func TestPoolSetupFailure(t *testing.T) {
	ctx, cancel := newContext()
	defer cancel()
	s, done := activated(t, ctx, emu.FailWhen(emu.At(emu.OpSign, 2)))
	defer done()

	_, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 2, Count: 5, Curve: se.NISTP256, Signed: true})
	if !errors.Is(err, perf.ErrSetup) || !perf.Inconclusive(err) {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(err, se.ErrOperation) {
		t.Errorf("cause lost: %v", err)
	}
	// The keys generated before the failure were released.
	for slot := 0; slot < 2; slot++ {
		if err := s.DeleteRtKey(ctx, slot); !errors.Is(err, se.ErrKeyNotPresent) {
			t.Errorf("slot %d: unexpected error: %v", slot, err)
		}
	}

	if _, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 0, Count: 5}); !errors.Is(err, perf.ErrSetup) {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 1, Count: 1, Curve: se.BrainpoolP256R1}); !errors.Is(err, perf.ErrSetup) {
		t.Errorf("unexpected error: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := perf.NewPool(ctx, s, perf.PoolSpec{Keys: 1, Count: 1}); !errors.Is(err, perf.ErrSetup) {
		t.Errorf("unexpected error: %v", err)
	}
	if err := s.Activate(ctx, se.RegionEU); err != nil {
		t.Fatal(err)
	}
}

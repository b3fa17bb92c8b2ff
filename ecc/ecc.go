// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ecc contains the conformance tests of the asynchronous ECC
// dispatcher: its lifecycle, signature verification and point
// decompression. Each test issues its requests, counts them with a
// perf.Counter and checks the results from the callbacks.
package ecc

import (
	"bytes"
	"flag"
	"time"

	"v.io/v23/context"
	"v.io/x/lib/cmd/flagvar"
	"v.io/x/ref/lib/timekeeper"
	"v.io/x/vtest/perf"
	"v.io/x/vtest/se"
	"v.io/x/vtest/vtest"
)

// Config holds the time allowed for responses to arrive.
type Config struct {
	VerifyWait time.Duration `cmdline:"ecc.verify-wait,10ms,Time allowed for verification responses"`
	PingWait   time.Duration `cmdline:"ecc.ping-wait,1ms,Time allowed for ping responses"`
}

// RegisterFlags registers cfg with fs.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	err := flagvar.RegisterFlagsInStruct(fs, "cmdline", cfg, nil, nil)
	if err != nil {
		// panic since this is clearly a programming error.
		panic(err)
	}
}

// Suite is the set of dispatcher conformance tests.
type Suite struct {
	Config     Config
	Dispatcher se.Dispatcher
	// Waiter times the response waits; the system clock if nil.
	Waiter timekeeper.TimeKeeper
}

func (s *Suite) Tests() []vtest.Test {
	return []vtest.Test{
		{Num: 10101, Name: "Dispatcher activation and deactivation", Run: s.activate},
		{Num: 10102, Name: "Dispatcher activated twice", Run: s.activateTwice},
		{Num: 10202, Name: "Dispatcher deactivated when not active", Run: s.deactivateInactive},
		{Num: 10301, Name: "Dispatcher ping", Run: s.withDispatcher(s.ping)},
		{Num: 30101, Name: "Signature verification", Run: s.withVector(s.verify)},
		{Num: 30102, Name: "Signature verification, negative", Run: s.withVector(s.verifyNegative)},
		{Num: 30103, Name: "Signature verification of message", Run: s.withVector(s.verifyMessage)},
		{Num: 30104, Name: "Signature verification with key storage", Run: s.withVector(s.verifyKey)},
		{Num: 30105, Name: "Signature verification of message with key storage", Run: s.withVector(s.verifyKeyOfMessage)},
		{Num: 30106, Name: "Public key decompression", Run: s.withVector(s.decompress)},
		{Num: 30107, Name: "Public key decompression, negative", Run: s.withDispatcher(s.decompressNegative)},
	}
}

func (s *Suite) activate(ctx *context.T, st *vtest.Status) {
	st.CheckEqual("activate", se.ReturnValueOf(s.Dispatcher.Activate(ctx)), se.NoError)
	st.CheckEqual("deactivate", se.ReturnValueOf(s.Dispatcher.Deactivate(ctx)), se.NoError)
}

func (s *Suite) activateTwice(ctx *context.T, st *vtest.Status) {
	st.CheckEqual("activate", se.ReturnValueOf(s.Dispatcher.Activate(ctx)), se.NoError)
	st.CheckEqual("second activate", se.ReturnValueOf(s.Dispatcher.Activate(ctx)), se.NotInitiated)
	st.CheckEqual("deactivate", se.ReturnValueOf(s.Dispatcher.Deactivate(ctx)), se.NoError)
}

func (s *Suite) deactivateInactive(ctx *context.T, st *vtest.Status) {
	st.CheckEqual("deactivate", se.ReturnValueOf(s.Dispatcher.Deactivate(ctx)), se.NotInitiated)
}

// withDispatcher runs body between activation and deactivation of the
// dispatcher.
func (s *Suite) withDispatcher(body func(ctx *context.T, st *vtest.Status)) vtest.Func {
	return func(ctx *context.T, st *vtest.Status) {
		if !st.CheckEqual("activate", se.ReturnValueOf(s.Dispatcher.Activate(ctx)), se.NoError) {
			return
		}
		body(ctx, st)
		st.CheckEqual("deactivate", se.ReturnValueOf(s.Dispatcher.Deactivate(ctx)), se.NoError)
	}
}

func (s *Suite) withVector(body func(ctx *context.T, st *vtest.Status, v *Vector)) vtest.Func {
	return s.withDispatcher(func(ctx *context.T, st *vtest.Status) {
		v, err := NewVector()
		if err != nil {
			st.FlagConf("creating test vector: %v", err)
			return
		}
		body(ctx, st, v)
	})
}

// issuer counts the requests of one test and checks that they are
// accepted and that all of them are answered.
type issuer struct {
	st      *vtest.Status
	counter *perf.Counter
}

func (s *Suite) issuer(st *vtest.Status) *issuer {
	return &issuer{st: st, counter: perf.NewCounter(s.Waiter)}
}

func (is *issuer) issue(what string, call func() error) {
	is.counter.Inc()
	if !is.st.CheckEqual(what, se.ReturnValueOf(call()), se.NoError) {
		is.counter.Dec()
	}
}

func (is *issuer) wait(ctx *context.T, grace time.Duration) {
	is.st.CheckNoError("responses", is.counter.Wait(ctx, grace))
}

// verified returns a callback expecting the verification result want.
func (is *issuer) verified(want se.VerificationResult) se.VerifyCallback {
	return func(_ uint64, ret se.ReturnValue, res se.VerificationResult) {
		is.st.CheckEqual("callback return value", ret, se.NoError)
		is.st.CheckEqual("verification result", res, want)
		is.counter.Dec()
	}
}

func (s *Suite) ping(ctx *context.T, st *vtest.Status) {
	is := s.issuer(st)
	for i := 0; i < 3; i++ {
		is.issue("ping", func() error {
			return s.Dispatcher.Ping(ctx, uint64(i), func(_ uint64, ret se.ReturnValue) {
				is.st.CheckEqual("callback return value", ret, se.NoError)
				is.counter.Dec()
			})
		})
	}
	is.wait(ctx, s.Config.PingWait)
}

func (s *Suite) verify(ctx *context.T, st *vtest.Status, v *Vector) {
	is := s.issuer(st)
	is.issue("verify", func() error {
		return s.Dispatcher.VerifySignature(ctx, 0, v.PublicKey, v.Hash, v.Signature, is.verified(se.Verified))
	})
	is.wait(ctx, s.Config.VerifyWait)
}

func (s *Suite) verifyNegative(ctx *context.T, st *vtest.Status, v *Vector) {
	is := s.issuer(st)
	is.issue("verify", func() error {
		return s.Dispatcher.VerifySignature(ctx, 0, v.PublicKey, v.Hash, v.Corrupt(), is.verified(se.VerificationFailed))
	})
	is.wait(ctx, s.Config.VerifyWait)
}

func (s *Suite) verifyMessage(ctx *context.T, st *vtest.Status, v *Vector) {
	is := s.issuer(st)
	is.issue("verify of message", func() error {
		return s.Dispatcher.VerifySignatureOfMessage(ctx, 0, v.PublicKey, v.Message, v.Signature, is.verified(se.Verified))
	})
	is.wait(ctx, s.Config.VerifyWait)
}

func (s *Suite) verifyKey(ctx *context.T, st *vtest.Status, v *Vector) {
	is := s.issuer(st)
	is.issue("verify with key storage", func() error {
		return s.Dispatcher.VerifySignatureKey(ctx, 0, 0, v.PublicKey, v.Hash, v.Signature, is.verified(se.Verified))
	})
	is.wait(ctx, s.Config.VerifyWait)
}

func (s *Suite) verifyKeyOfMessage(ctx *context.T, st *vtest.Status, v *Vector) {
	is := s.issuer(st)
	is.issue("verify of message with key storage", func() error {
		return s.Dispatcher.VerifySignatureKeyOfMessage(ctx, 0, 0, v.PublicKey, v.Message, v.Signature, is.verified(se.Verified))
	})
	is.wait(ctx, s.Config.VerifyWait)
}

func (s *Suite) decompress(ctx *context.T, st *vtest.Status, v *Vector) {
	is := s.issuer(st)
	is.issue("decompress", func() error {
		return s.Dispatcher.DecompressPublicKey(ctx, 0, v.PublicKey.Curve, v.PublicKey.X, v.YOdd(),
			func(_ uint64, ret se.ReturnValue, pub se.PublicKey) {
				is.st.CheckEqual("callback return value", ret, se.NoError)
				is.st.Check(bytes.Equal(pub.Y, v.PublicKey.Y), "decompressed y coordinate: expected %x, got %x", v.PublicKey.Y, pub.Y)
				is.counter.Dec()
			})
	})
	is.wait(ctx, s.Config.VerifyWait)
}

func (s *Suite) decompressNegative(ctx *context.T, st *vtest.Status) {
	// No coordinate is as large as the field prime.
	x := bytes.Repeat([]byte{0xff}, se.NISTP256.Size())
	is := s.issuer(st)
	is.issue("decompress", func() error {
		return s.Dispatcher.DecompressPublicKey(ctx, 0, se.NISTP256, x, false,
			func(_ uint64, ret se.ReturnValue, _ se.PublicKey) {
				is.st.CheckEqual("callback return value", ret, se.OperationFailed)
				is.counter.Dec()
			})
	})
	is.wait(ctx, s.Config.VerifyWait)
}

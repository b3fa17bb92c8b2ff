// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"v.io/v23/context"
	"v.io/x/ref/lib/timekeeper"
	"v.io/x/vtest/se"
	"v.io/x/vtest/vtest"
)

// Test numbers of the performance suite.
const (
	TestVerifyRate          = 130201
	TestSustainedVerifyRate = 130202
	TestGenRate             = 130301
	TestParallelRates       = 130302
	TestVerifyLatencyLoaded = 130401
	TestVerifyLatency       = 130402
	TestGenLatencyLoaded    = 130501
	TestGenLatency          = 130502
)

// Suite is the set of performance tests run against one engine.
type Suite struct {
	Config     Config
	Engine     se.Engine
	Dispatcher se.Dispatcher
	Probe      Probe
	// Clock times the operations; the system clock if nil.
	Clock Clock
	// Waiter times drain grace periods; the system clock if nil.
	Waiter timekeeper.TimeKeeper
}

// Tests returns the suite's tests in order.
func (s *Suite) Tests() []vtest.Test {
	return []vtest.Test{
		{Num: TestVerifyRate, Name: "ECC signature verification rate", Run: s.session(TestVerifyRate, s.verifyRate)},
		{Num: TestSustainedVerifyRate, Name: "ECC sustained signature verification rate", Run: s.session(TestSustainedVerifyRate, s.sustainedVerifyRate)},
		{Num: TestGenRate, Name: "ECC signature generation rate", Run: s.session(TestGenRate, s.genRate)},
		{Num: TestParallelRates, Name: "ECC signature generation and verification rates in parallel", Run: s.session(TestParallelRates, s.parallelRates)},
		{Num: TestVerifyLatencyLoaded, Name: "ECC signature verification latency, loaded", Run: s.session(TestVerifyLatencyLoaded, s.verifyLatencyLoaded)},
		{Num: TestVerifyLatency, Name: "ECC signature verification latency", Run: s.session(TestVerifyLatency, s.verifyLatency)},
		{Num: TestGenLatencyLoaded, Name: "ECC signature generation latency, loaded", Run: s.session(TestGenLatencyLoaded, s.genLatencyLoaded)},
		{Num: TestGenLatency, Name: "ECC signature generation latency", Run: s.session(TestGenLatency, s.genLatency)},
	}
}

// run is the state shared by the steps of one test.
type run struct {
	st *vtest.Status
	ex exporter
	hw bool
}

// session wraps body so that it runs with the engine and dispatcher
// activated, under the configured deadline. Both are torn down after body
// returns, by which time all its streams have drained or been stopped.
func (s *Suite) session(num int, body func(ctx *context.T, r *run)) vtest.Func {
	return func(ctx *context.T, st *vtest.Status) {
		if s.Config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.Config.Timeout)
			defer cancel()
		}
		if err := s.Engine.Activate(ctx, se.RegionEU); err != nil {
			st.FlagConf("activating engine: %v", err)
			return
		}
		defer func() {
			if err := s.Engine.Reset(ctx); err != nil {
				ctx.Errorf("resetting engine: %v", err)
			}
		}()
		if err := s.Dispatcher.Activate(ctx); err != nil {
			st.FlagConf("activating dispatcher: %v", err)
			return
		}
		defer func() {
			if err := s.Dispatcher.Deactivate(ctx); err != nil {
				ctx.Errorf("deactivating dispatcher: %v", err)
			}
		}()
		r := &run{st: st, ex: exporter{st: st, num: num}, hw: hardwarePresent(ctx, s.Probe)}
		if id := vtest.RunID(ctx); id != uuid.Nil {
			r.ex.run = id.String()
		}
		ctx.VI(1).Infof("test %d: hardware acceleration: %v", num, r.hw)
		body(ctx, r)
	}
}

func (s *Suite) pipeline(count int) *Pipeline {
	return &Pipeline{Count: count, Clock: s.Clock, Waiter: s.Waiter, Grace: s.Config.Grace}
}

func (s *Suite) verifyPool(ctx *context.T, count int) (*Pool, error) {
	return NewPool(ctx, s.Engine, PoolSpec{Keys: s.Config.Keys, Count: count, Curve: se.NISTP256, Hash: RandomHashes, Signed: true})
}

func (s *Suite) signPool(ctx *context.T, count int) (*Pool, error) {
	return NewPool(ctx, s.Engine, PoolSpec{Keys: s.Config.Keys, Count: count, Curve: se.NISTP256, Hash: MessageHashes})
}

// VerifyIssuer returns an IssueFunc verifying entry i of pool, which must
// be signed. An outcome other than a successful verification is a failure.
func VerifyIssuer(d se.Dispatcher, pool *Pool) IssueFunc {
	return func(ctx *context.T, i int, done func(error)) error {
		return d.VerifySignature(ctx, uint64(i), pool.PublicKey(i), pool.Hash(i), pool.Signature(i),
			func(seq uint64, ret se.ReturnValue, res se.VerificationResult) {
				if ret != se.NoError || res != se.Verified {
					done(se.ErrOperation.Errorf(nil, "verification %d: %v, %v", seq, ret, res))
					return
				}
				done(nil)
			})
	}
}

// SignCaller returns a CallFunc signing entry i of pool.
func SignCaller(eng se.Engine, pool *Pool) CallFunc {
	return func(ctx *context.T, i int) error {
		_, err := eng.CreateRtSign(ctx, pool.Slot(i), pool.Hash(i))
		return err
	}
}

// usable reports whether a batch that ended with err has trustworthy
// timing. A failed operation is recorded but does not invalidate the
// timing of the rest.
func usable(st *vtest.Status, err error) bool {
	report(st, err)
	return err == nil || errors.Is(err, ErrAsyncFailure)
}

func (s *Suite) checkRate(ctx *context.T, r *run, name string, b *Batch, err error, th Threshold) {
	if !usable(r.st, err) {
		return
	}
	rate, err := b.Rate()
	if err != nil {
		report(r.st, err)
		return
	}
	r.ex.rate(name, rate)
	r.st.CheckNoError(name, th.CheckRate(ctx, rate, r.hw))
}

func (s *Suite) checkLatency(ctx *context.T, r *run, name string, b *Batch, err error, th Threshold) {
	if !usable(r.st, err) {
		return
	}
	if b.Latency.Samples == 0 {
		r.st.FlagConf("%s: no operations completed", name)
		return
	}
	r.ex.latency(name, b.Latency)
	if ctx.V(1) {
		var hist strings.Builder
		b.Latency.Histogram().Print(&hist)
		ctx.Infof("%s distribution:\n%s", name, hist.String())
	}
	r.st.CheckNoError(name, th.CheckLatency(ctx, b.Latency.Max, r.hw))
}

func (s *Suite) verifyRate(ctx *context.T, r *run) {
	pool, err := s.verifyPool(ctx, s.Config.VerifyCount)
	if err != nil {
		report(r.st, err)
		return
	}
	defer pool.Release(ctx)
	b, err := s.pipeline(s.Config.VerifyCount).Run(ctx, VerifyIssuer(s.Dispatcher, pool))
	s.checkRate(ctx, r, "verify-rate", b, err, s.Config.VerifyRate())
}

func (s *Suite) sustainedVerifyRate(ctx *context.T, r *run) {
	pool, err := s.verifyPool(ctx, s.Config.VerifyCount)
	if err != nil {
		report(r.st, err)
		return
	}
	defer pool.Release(ctx)
	p := s.pipeline(math.MaxInt32)
	p.Duration = s.Config.Sustained
	b, err := p.Run(ctx, VerifyIssuer(s.Dispatcher, pool))
	s.checkRate(ctx, r, "verify-rate", b, err, s.Config.VerifyRate())
}

func (s *Suite) genRate(ctx *context.T, r *run) {
	pool, err := s.signPool(ctx, s.Config.GenCount)
	if err != nil {
		report(r.st, err)
		return
	}
	defer pool.Release(ctx)
	l := &Loop{Count: s.Config.GenCount, Clock: s.Clock}
	b, err := l.Run(ctx, SignCaller(s.Engine, pool))
	s.checkRate(ctx, r, "gen-rate", b, err, s.Config.GenRate())
}

// parallelRates runs a verification pipeline and a signing loop at the
// same time. The streams share only the engine.
func (s *Suite) parallelRates(ctx *context.T, r *run) {
	vpool, err := s.verifyPool(ctx, s.Config.VerifyCount)
	if err != nil {
		report(r.st, err)
		return
	}
	defer vpool.Release(ctx)
	// The signing keys go in the slots after the verification keys.
	spool, err := NewPool(ctx, offsetEngine{s.Engine, s.Config.Keys}, PoolSpec{Keys: s.Config.Keys, Count: s.Config.GenCount, Curve: se.NISTP256, Hash: MessageHashes})
	if err != nil {
		report(r.st, err)
		return
	}
	defer spool.Release(ctx)

	var (
		g                errgroup.Group
		vbatch, sbatch   *Batch
		verr, serr       error
		signer           = offsetEngine{s.Engine, s.Config.Keys}
		verify, generate = s.pipeline(s.Config.VerifyCount), &Loop{Count: s.Config.GenCount, Clock: s.Clock}
	)
	g.Go(func() error {
		vbatch, verr = verify.Run(ctx, VerifyIssuer(s.Dispatcher, vpool))
		return verr
	})
	g.Go(func() error {
		sbatch, serr = generate.Run(ctx, SignCaller(signer, spool))
		return serr
	})
	if err := g.Wait(); err != nil {
		ctx.VI(1).Infof("parallel streams: %v", err)
	}
	s.checkRate(ctx, r, "verify-rate", vbatch, verr, s.Config.VerifyRate())
	s.checkRate(ctx, r, "gen-rate", sbatch, serr, s.Config.GenRate())
}

// cannedSigner generates a key in slot and a hash to sign with it
// repeatedly, for use as background load.
func (s *Suite) cannedSigner(ctx *context.T, slot int) (CallFunc, func(), error) {
	if _, err := s.Engine.GenerateRtKeyPair(ctx, slot, se.NISTP256); err != nil {
		return nil, nil, ErrSetup.Errorf(ctx, "generating load key: %w", err)
	}
	release := func() {
		if err := s.Engine.DeleteRtKey(ctx, slot); err != nil {
			ctx.VI(1).Infof("deleting load key: %v", err)
		}
	}
	hash, err := s.Engine.GetRandomNumber(ctx, se.NISTP256.Size())
	if err != nil {
		release()
		return nil, nil, ErrSetup.Errorf(ctx, "generating load hash: %w", err)
	}
	return func(ctx *context.T, _ int) error {
		_, err := s.Engine.CreateRtSign(ctx, slot, hash)
		return err
	}, release, nil
}

func (s *Suite) stopLoad(ctx *context.T, r *run, load *LoadSimulator) {
	ops, err := load.Stop(ctx)
	r.ex.integer("load-ops", int64(ops), "%d", ops)
	report(r.st, err)
}

func (s *Suite) verifyLatencyLoaded(ctx *context.T, r *run) {
	pool, err := s.verifyPool(ctx, s.Config.VerifyLatencyCount)
	if err != nil {
		report(r.st, err)
		return
	}
	defer pool.Release(ctx)
	call, release, err := s.cannedSigner(ctx, s.Config.Keys)
	if err != nil {
		report(r.st, err)
		return
	}
	defer release()

	load := StartSyncLoad(ctx, call, s.Waiter, s.Config.Grace)
	b, err := s.pipeline(s.Config.VerifyLatencyCount).Run(ctx, VerifyIssuer(s.Dispatcher, pool))
	s.stopLoad(ctx, r, load)
	s.checkLatency(ctx, r, "verify-latency", b, err, s.Config.VerifyLatency())
}

func (s *Suite) verifyLatency(ctx *context.T, r *run) {
	pool, err := s.verifyPool(ctx, s.Config.VerifyLatencyCount)
	if err != nil {
		report(r.st, err)
		return
	}
	defer pool.Release(ctx)
	b, err := s.pipeline(s.Config.VerifyLatencyCount).Run(ctx, VerifyIssuer(s.Dispatcher, pool))
	s.checkLatency(ctx, r, "verify-latency", b, err, s.Config.VerifyLatency())
}

func (s *Suite) genLatencyLoaded(ctx *context.T, r *run) {
	if s.Config.LoadStreams < 1 {
		report(r.st, ErrSetup.Errorf(ctx, "a loaded test needs at least one load stream, got %d", s.Config.LoadStreams))
		return
	}
	spool, err := s.signPool(ctx, s.Config.GenLatencyCount)
	if err != nil {
		report(r.st, err)
		return
	}
	defer spool.Release(ctx)
	vpool, err := NewPool(ctx, offsetEngine{s.Engine, s.Config.Keys}, PoolSpec{Keys: s.Config.Keys, Count: s.Config.Keys, Curve: se.NISTP256, Hash: RandomHashes, Signed: true})
	if err != nil {
		report(r.st, err)
		return
	}
	defer vpool.Release(ctx)

	load := StartAsyncLoad(ctx, s.Config.LoadStreams, VerifyIssuer(s.Dispatcher, vpool), s.Clock, s.Waiter, s.Config.Grace)
	l := &Loop{Count: s.Config.GenLatencyCount, Clock: s.Clock}
	b, err := l.Run(ctx, SignCaller(s.Engine, spool))
	s.stopLoad(ctx, r, load)
	s.checkLatency(ctx, r, "gen-latency", b, err, s.Config.GenLatency())
}

func (s *Suite) genLatency(ctx *context.T, r *run) {
	pool, err := s.signPool(ctx, s.Config.GenLatencyCount)
	if err != nil {
		report(r.st, err)
		return
	}
	defer pool.Release(ctx)
	l := &Loop{Count: s.Config.GenLatencyCount, Clock: s.Clock}
	b, err := l.Run(ctx, SignCaller(s.Engine, pool))
	s.checkLatency(ctx, r, "gen-latency", b, err, s.Config.GenLatency())
}

// offsetEngine shifts the key slots of an engine, so that two pools can be
// built on it without their keys colliding.
type offsetEngine struct {
	se.Engine
	offset int
}

func (e offsetEngine) GenerateRtKeyPair(ctx *context.T, slot int, curve se.Curve) (se.PublicKey, error) {
	return e.Engine.GenerateRtKeyPair(ctx, slot+e.offset, curve)
}

func (e offsetEngine) DeleteRtKey(ctx *context.T, slot int) error {
	return e.Engine.DeleteRtKey(ctx, slot+e.offset)
}

func (e offsetEngine) CreateRtSign(ctx *context.T, slot int, hash []byte) (se.Signature, error) {
	return e.Engine.CreateRtSign(ctx, slot+e.offset, hash)
}

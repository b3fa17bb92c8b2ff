// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package emu provides an in-process secure element that implements
// se.Engine and se.Dispatcher on top of crypto/ecdsa. Operation latency is
// simulated against a timekeeper.TimeKeeper and faults can be injected per
// operation, which makes it suitable for exercising the performance harness
// deterministically.
package emu

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sync"
	"time"

	"github.com/youmark/pkcs8"

	"v.io/v23/context"
	"v.io/x/ref/lib/timekeeper"
	"v.io/x/vtest/se"
)

// Op identifies a class of emulated operation for latency and fault
// injection purposes.
type Op int

const (
	OpGenerateKey Op = iota
	OpSign
	OpRandom
	OpVerify
	OpDecompress
	OpPing
	numOps
)

var opNames = [numOps]string{"generate-key", "sign", "random", "verify", "decompress", "ping"}

func (o Op) String() string {
	if o < 0 || o >= numOps {
		return "unknown"
	}
	return opNames[o]
}

// FaultFunc is called with the operation class and the zero-based ordinal
// of the operation within its class.
type FaultFunc func(op Op, n int) bool

// Option configures an SE.
type Option func(*SE)

// WithClock sets the clock used to simulate latency. If the clock also
// provides AdvanceTime, as the manual clocks used in tests do, latency is
// simulated by advancing it instead of sleeping.
func WithClock(tk timekeeper.TimeKeeper) Option {
	return func(s *SE) { s.clock = tk }
}

// WithLatency sets the simulated duration of every operation of class op.
func WithLatency(op Op, d time.Duration) Option {
	return func(s *SE) { s.latency[op] = d }
}

// WithQueueDepth bounds the number of dispatcher requests that may be
// queued; further requests are rejected with se.ErrQueueFull.
func WithQueueDepth(n int) Option {
	return func(s *SE) { s.queueDepth = n }
}

// FailWhen makes matching operations complete with a failure outcome.
func FailWhen(f FaultFunc) Option {
	return func(s *SE) { s.fail = f }
}

// DropWhen makes matching asynchronous operations never complete.
func DropWhen(f FaultFunc) Option {
	return func(s *SE) { s.drop = f }
}

// RejectWhen makes matching asynchronous operations be rejected when
// issued.
func RejectWhen(f FaultFunc) Option {
	return func(s *SE) { s.reject = f }
}

// At returns a FaultFunc matching the ordinals in ns of class op.
func At(op Op, ns ...int) FaultFunc {
	set := make(map[int]bool, len(ns))
	for _, n := range ns {
		set[n] = true
	}
	return func(o Op, n int) bool { return o == op && set[n] }
}

// From returns a FaultFunc matching every operation of class op with an
// ordinal of at least n.
func From(op Op, n int) FaultFunc {
	return func(o Op, m int) bool { return o == op && m >= n }
}

type advancer interface {
	AdvanceTime(time.Duration)
}

// SE is an emulated secure element.
type SE struct {
	clock      timekeeper.TimeKeeper
	latency    [numOps]time.Duration
	queueDepth int
	fail       FaultFunc
	drop       FaultFunc
	reject     FaultFunc

	mu       sync.Mutex
	state    se.State
	keys     map[int]*ecdsa.PrivateKey
	curves   map[int]se.Curve
	ordinals [numOps]int

	disp *dispatcher
}

// New returns an emulated secure element in the init state.
func New(opts ...Option) *SE {
	s := &SE{
		clock:      timekeeper.RealTime(),
		queueDepth: 64,
		keys:       map[int]*ecdsa.PrivateKey{},
		curves:     map[int]se.Curve{},
	}
	for _, o := range opts {
		o(s)
	}
	s.disp = &dispatcher{se: s}
	return s
}

// Dispatcher returns the asynchronous interface to s.
func (s *SE) Dispatcher() se.Dispatcher {
	return s.disp
}

// MaxInFlight returns the largest number of dispatcher operations that were
// accepted but not yet completed at any one time.
func (s *SE) MaxInFlight() int {
	return s.disp.maxInFlight()
}

// Ordinal returns the number of operations of class op started so far.
func (s *SE) Ordinal(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ordinals[op]
}

// next allocates the ordinal for an operation and reports which faults
// apply to it.
func (s *SE) next(op Op) (n int, fail, drop, reject bool) {
	s.mu.Lock()
	n = s.ordinals[op]
	s.ordinals[op]++
	s.mu.Unlock()
	fail = s.fail != nil && s.fail(op, n)
	drop = s.drop != nil && s.drop(op, n)
	reject = s.reject != nil && s.reject(op, n)
	return
}

func (s *SE) elapse(op Op) {
	d := s.latency[op]
	if d <= 0 {
		return
	}
	if a, ok := s.clock.(advancer); ok {
		a.AdvanceTime(d)
		return
	}
	s.clock.Sleep(d)
}

func (s *SE) Activate(ctx *context.T, region se.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != se.StateActivated {
		ctx.VI(2).Infof("emu: activated (%v)", region)
	}
	s.state = se.StateActivated
	return nil
}

func (s *SE) Reset(ctx *context.T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = se.StateInit
	ctx.VI(2).Infof("emu: reset")
	return nil
}

func (s *SE) State() se.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SE) activated(ctx *context.T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != se.StateActivated {
		return se.ErrNotActivated.Errorf(ctx, "secure element is in state %v", s.state)
	}
	return nil
}

func (s *SE) GenerateRtKeyPair(ctx *context.T, slot int, curve se.Curve) (se.PublicKey, error) {
	if err := s.activated(ctx); err != nil {
		return se.PublicKey{}, err
	}
	if slot < 0 {
		return se.PublicKey{}, se.ErrInvalidParameter.Errorf(ctx, "invalid key slot %d", slot)
	}
	ec, err := curve.Elliptic()
	if err != nil {
		return se.PublicKey{}, err
	}
	_, fail, _, _ := s.next(OpGenerateKey)
	s.elapse(OpGenerateKey)
	if fail {
		return se.PublicKey{}, se.ErrOperation.Errorf(ctx, "key generation failed for slot %d", slot)
	}
	priv, err := ecdsa.GenerateKey(ec, rand.Reader)
	if err != nil {
		return se.PublicKey{}, se.ErrOperation.Errorf(ctx, "key generation failed: %v", err)
	}
	s.store(slot, curve, priv)
	return se.NewPublicKey(curve, &priv.PublicKey), nil
}

func (s *SE) InjectRtKey(ctx *context.T, slot int, der, passphrase []byte) (se.PublicKey, error) {
	if err := s.activated(ctx); err != nil {
		return se.PublicKey{}, err
	}
	key, _, err := pkcs8.ParsePrivateKey(der, passphrase)
	if err != nil {
		return se.PublicKey{}, se.ErrInvalidParameter.Errorf(ctx, "failed to parse PKCS#8 key: %v", err)
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return se.PublicKey{}, se.ErrInvalidParameter.Errorf(ctx, "unsupported key type %T", key)
	}
	var curve se.Curve
	switch priv.Curve {
	case elliptic.P256():
		curve = se.NISTP256
	case elliptic.P384():
		curve = se.NISTP384
	default:
		return se.PublicKey{}, se.ErrUnsupportedCurve.Errorf(ctx, "unsupported curve %v", priv.Curve.Params().Name)
	}
	s.store(slot, curve, priv)
	return se.NewPublicKey(curve, &priv.PublicKey), nil
}

func (s *SE) DeleteRtKey(ctx *context.T, slot int) error {
	if err := s.activated(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[slot]; !ok {
		return se.ErrKeyNotPresent.Errorf(ctx, "no key in slot %d", slot)
	}
	delete(s.keys, slot)
	delete(s.curves, slot)
	return nil
}

func (s *SE) store(slot int, curve se.Curve, priv *ecdsa.PrivateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[slot] = priv
	s.curves[slot] = curve
}

func (s *SE) key(ctx *context.T, slot int) (*ecdsa.PrivateKey, se.Curve, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	priv, ok := s.keys[slot]
	if !ok {
		return nil, 0, se.ErrKeyNotPresent.Errorf(ctx, "no key in slot %d", slot)
	}
	return priv, s.curves[slot], nil
}

func (s *SE) CreateRtSign(ctx *context.T, slot int, hash []byte) (se.Signature, error) {
	if err := s.activated(ctx); err != nil {
		return se.Signature{}, err
	}
	priv, curve, err := s.key(ctx, slot)
	if err != nil {
		return se.Signature{}, err
	}
	if len(hash) == 0 {
		return se.Signature{}, se.ErrInvalidParameter.Errorf(ctx, "empty hash")
	}
	_, fail, _, _ := s.next(OpSign)
	s.elapse(OpSign)
	if fail {
		return se.Signature{}, se.ErrOperation.Errorf(ctx, "signing with slot %d failed", slot)
	}
	der, err := ecdsa.SignASN1(rand.Reader, priv, hash)
	if err != nil {
		return se.Signature{}, se.ErrOperation.Errorf(ctx, "signing failed: %v", err)
	}
	return se.ParseDER(curve, der)
}

func (s *SE) GetRandomNumber(ctx *context.T, n int) ([]byte, error) {
	if err := s.activated(ctx); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, se.ErrInvalidParameter.Errorf(ctx, "invalid random length %d", n)
	}
	_, fail, _, _ := s.next(OpRandom)
	s.elapse(OpRandom)
	if fail {
		return nil, se.ErrOperation.Errorf(ctx, "random number generation failed")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, se.ErrOperation.Errorf(ctx, "random number generation failed: %v", err)
	}
	return buf, nil
}

// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/sha512"
	"sync"

	"v.io/v23/context"
	"v.io/x/vtest/se"
)

// request is a queued dispatcher operation. run is executed on the
// dispatcher goroutine and invokes the caller's callback.
type request struct {
	op   Op
	fail bool
	drop bool
	run  func(fail bool)
}

// dispatcher serves requests from a bounded queue on a single goroutine,
// so completions are delivered in issue order.
type dispatcher struct {
	se *SE

	mu       sync.RWMutex
	active   bool
	queue    chan request
	stopped  chan struct{}
	inFlight int
	maxSeen  int
}

func (d *dispatcher) Activate(ctx *context.T) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return se.ErrWrongState.Errorf(ctx, "dispatcher already active")
	}
	d.active = true
	d.queue = make(chan request, d.se.queueDepth)
	d.stopped = make(chan struct{})
	go d.serve(d.queue, d.stopped)
	return nil
}

// Deactivate stops accepting requests, completes those already queued and
// waits for the dispatcher goroutine to exit.
func (d *dispatcher) Deactivate(ctx *context.T) error {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return se.ErrWrongState.Errorf(ctx, "dispatcher not active")
	}
	d.active = false
	close(d.queue)
	stopped := d.stopped
	d.mu.Unlock()
	<-stopped
	return nil
}

func (d *dispatcher) serve(queue <-chan request, stopped chan<- struct{}) {
	defer close(stopped)
	for req := range queue {
		d.se.elapse(req.op)
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
		if req.drop {
			continue
		}
		req.run(req.fail)
	}
}

func (d *dispatcher) maxInFlight() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxSeen
}

func (d *dispatcher) enqueue(ctx *context.T, op Op, run func(fail bool)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return se.ErrNotActivated.Errorf(ctx, "dispatcher not active")
	}
	_, fail, drop, reject := d.se.next(op)
	if reject {
		return se.ErrOperation.Errorf(ctx, "%v request rejected", op)
	}
	select {
	case d.queue <- request{op: op, fail: fail, drop: drop, run: run}:
	default:
		return se.ErrQueueFull.Errorf(ctx, "dispatcher queue full (%d requests)", cap(d.queue))
	}
	d.inFlight++
	if d.inFlight > d.maxSeen {
		d.maxSeen = d.inFlight
	}
	return nil
}

func checkKey(ctx *context.T, pub se.PublicKey, sig se.Signature) (*ecdsa.PublicKey, error) {
	if pub.Curve != sig.Curve {
		return nil, se.ErrInvalidParameter.Errorf(ctx, "key curve %v does not match signature curve %v", pub.Curve, sig.Curve)
	}
	return pub.ECDSA()
}

func verify(key *ecdsa.PublicKey, hash []byte, sig se.Signature) se.VerificationResult {
	der, err := sig.MarshalDER()
	if err != nil || !ecdsa.VerifyASN1(key, hash, der) {
		return se.VerificationFailed
	}
	return se.Verified
}

func digest(c se.Curve, msg []byte) []byte {
	if c.Size() == 48 {
		h := sha512.Sum384(msg)
		return h[:]
	}
	h := sha256.Sum256(msg)
	return h[:]
}

func (d *dispatcher) VerifySignature(ctx *context.T, seq uint64, pub se.PublicKey, hash []byte, sig se.Signature, cb se.VerifyCallback) error {
	if cb == nil || len(hash) == 0 {
		return se.ErrInvalidParameter.Errorf(ctx, "missing hash or callback")
	}
	key, err := checkKey(ctx, pub, sig)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, OpVerify, func(fail bool) {
		if fail {
			cb(seq, se.OperationFailed, se.NotVerified)
			return
		}
		cb(seq, se.NoError, verify(key, hash, sig))
	})
}

func (d *dispatcher) VerifySignatureOfMessage(ctx *context.T, seq uint64, pub se.PublicKey, msg []byte, sig se.Signature, cb se.VerifyCallback) error {
	return d.VerifySignature(ctx, seq, pub, digest(pub.Curve, msg), sig, cb)
}

func (d *dispatcher) VerifySignatureKey(ctx *context.T, storage int, seq uint64, pub se.PublicKey, hash []byte, sig se.Signature, cb se.VerifyCallback) error {
	return d.VerifySignature(ctx, seq, pub, hash, sig, cb)
}

func (d *dispatcher) VerifySignatureKeyOfMessage(ctx *context.T, storage int, seq uint64, pub se.PublicKey, msg []byte, sig se.Signature, cb se.VerifyCallback) error {
	return d.VerifySignatureOfMessage(ctx, seq, pub, msg, sig, cb)
}

func (d *dispatcher) DecompressPublicKey(ctx *context.T, seq uint64, curve se.Curve, x []byte, yOdd bool, cb se.DecompressCallback) error {
	if cb == nil {
		return se.ErrInvalidParameter.Errorf(ctx, "missing callback")
	}
	ec, err := curve.Elliptic()
	if err != nil {
		return err
	}
	if len(x) != curve.Size() {
		return se.ErrInvalidParameter.Errorf(ctx, "x coordinate must be %d bytes", curve.Size())
	}
	compressed := make([]byte, 1+len(x))
	compressed[0] = 2
	if yOdd {
		compressed[0] = 3
	}
	copy(compressed[1:], x)
	return d.enqueue(ctx, OpDecompress, func(fail bool) {
		px, py := elliptic.UnmarshalCompressed(ec, compressed)
		if fail || px == nil {
			cb(seq, se.OperationFailed, se.PublicKey{})
			return
		}
		cb(seq, se.NoError, se.NewPublicKey(curve, &ecdsa.PublicKey{Curve: ec, X: px, Y: py}))
	})
}

func (d *dispatcher) Ping(ctx *context.T, seq uint64, cb se.PingCallback) error {
	if cb == nil {
		return se.ErrInvalidParameter.Errorf(ctx, "missing callback")
	}
	return d.enqueue(ctx, OpPing, func(fail bool) {
		if fail {
			cb(seq, se.OperationFailed)
			return
		}
		cb(seq, se.NoError)
	})
}

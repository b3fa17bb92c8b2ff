// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"crypto/sha256"
	"crypto/sha512"
	"sync"

	"v.io/v23/context"
	"v.io/x/vtest/se"
)

// HashSource selects how the hashes of a Pool are produced.
type HashSource int

const (
	// RandomHashes draws each hash from the engine's random number
	// generator.
	RandomHashes HashSource = iota
	// MessageHashes draws a random message from the engine and hashes it,
	// keeping the message for the verify-of-message operations.
	MessageHashes
)

// PoolSpec describes the data a Pool is to hold.
type PoolSpec struct {
	Keys  int
	Count int
	Curve se.Curve
	Hash  HashSource
	// Signed pools carry a signature of entry i made with key i%Keys.
	Signed bool
}

const messageSize = 64

// Pool holds the keys, hashes and signatures used by a performance test.
// It is read-only once built and may be shared by concurrent streams.
type Pool struct {
	spec     PoolSpec
	eng      se.Engine
	pubs     []se.PublicKey
	hashes   [][]byte
	messages [][]byte
	sigs     []se.Signature
	once     sync.Once
}

// NewPool builds a pool on an activated engine, generating keys in slots
// 0 to spec.Keys-1. Any failure releases whatever was created and is
// reported as ErrSetup.
func NewPool(ctx *context.T, eng se.Engine, spec PoolSpec) (*Pool, error) {
	if spec.Keys <= 0 || spec.Count <= 0 {
		return nil, ErrSetup.Errorf(ctx, "invalid pool of %d keys and %d entries", spec.Keys, spec.Count)
	}
	p := &Pool{spec: spec, eng: eng}
	if err := p.fill(ctx); err != nil {
		p.Release(ctx)
		return nil, ErrSetup.Errorf(ctx, "building test data: %w", err)
	}
	ctx.VI(1).Infof("pool: %d keys on %v, %d entries, signed: %v", spec.Keys, spec.Curve, spec.Count, spec.Signed)
	return p, nil
}

func (p *Pool) fill(ctx *context.T) error {
	for slot := 0; slot < p.spec.Keys; slot++ {
		pub, err := p.eng.GenerateRtKeyPair(ctx, slot, p.spec.Curve)
		if err != nil {
			return err
		}
		p.pubs = append(p.pubs, pub)
	}
	size := p.spec.Curve.Size()
	for i := 0; i < p.spec.Count; i++ {
		var hash []byte
		switch p.spec.Hash {
		case MessageHashes:
			msg, err := p.eng.GetRandomNumber(ctx, messageSize)
			if err != nil {
				return err
			}
			p.messages = append(p.messages, msg)
			hash = hashOf(p.spec.Curve, msg)
		default:
			h, err := p.eng.GetRandomNumber(ctx, size)
			if err != nil {
				return err
			}
			hash = h
		}
		p.hashes = append(p.hashes, hash)
		if p.spec.Signed {
			sig, err := p.eng.CreateRtSign(ctx, p.Slot(i), hash)
			if err != nil {
				return err
			}
			p.sigs = append(p.sigs, sig)
		}
	}
	return nil
}

func hashOf(c se.Curve, msg []byte) []byte {
	if c.Size() == 48 {
		h := sha512.Sum384(msg)
		return h[:]
	}
	h := sha256.Sum256(msg)
	return h[:]
}

// Len returns the number of entries.
func (p *Pool) Len() int { return len(p.hashes) }

// Keys returns the number of keys.
func (p *Pool) Keys() int { return len(p.pubs) }

// Curve returns the curve of the pool's keys.
func (p *Pool) Curve() se.Curve { return p.spec.Curve }

func (p *Pool) index(i int) int {
	n := p.spec.Count
	return ((i % n) + n) % n
}

// Slot returns the key slot used for entry i.
func (p *Pool) Slot(i int) int {
	return p.index(i) % p.spec.Keys
}

// PublicKey returns the public key for entry i.
func (p *Pool) PublicKey(i int) se.PublicKey { return p.pubs[p.Slot(i)] }

// Hash returns the hash of entry i.
func (p *Pool) Hash(i int) []byte { return p.hashes[p.index(i)] }

// Message returns the message of entry i, or nil if the pool was not built
// from messages.
func (p *Pool) Message(i int) []byte {
	if len(p.messages) == 0 {
		return nil
	}
	return p.messages[p.index(i)]
}

// Signature returns the signature of entry i; the zero Signature if the
// pool is not signed.
func (p *Pool) Signature(i int) se.Signature {
	if len(p.sigs) == 0 {
		return se.Signature{}
	}
	return p.sigs[p.index(i)]
}

// Release deletes the pool's keys from the engine. Only the first call has
// any effect.
func (p *Pool) Release(ctx *context.T) {
	p.once.Do(func() {
		for slot := range p.pubs {
			if err := p.eng.DeleteRtKey(ctx, slot); err != nil {
				ctx.VI(1).Infof("pool: deleting key %d: %v", slot, err)
			}
		}
	})
}

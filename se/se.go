// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package se defines the interface to a V2X secure element as consumed by
// the conformance tests: a synchronous session and key management API
// (Engine) and an asynchronous ECC verification dispatcher (Dispatcher)
// whose results are delivered through callbacks.
package se

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"math/big"

	"v.io/v23/context"
)

// Curve identifies the elliptic curve of a key or signature.
type Curve int

const (
	NISTP256 Curve = iota
	NISTP384
	BrainpoolP256R1
	BrainpoolP384R1
)

var curveNames = [...]string{"NIST P-256", "NIST P-384", "brainpoolP256r1", "brainpoolP384r1"}

func (c Curve) String() string {
	if c < 0 || int(c) >= len(curveNames) {
		return fmt.Sprintf("Curve(%d)", int(c))
	}
	return curveNames[c]
}

// Size returns the size in bytes of a coordinate or scalar on c.
func (c Curve) Size() int {
	switch c {
	case NISTP384, BrainpoolP384R1:
		return 48
	}
	return 32
}

// Elliptic returns the crypto/elliptic implementation of c. The brainpool
// curves have no such implementation.
func (c Curve) Elliptic() (elliptic.Curve, error) {
	switch c {
	case NISTP256:
		return elliptic.P256(), nil
	case NISTP384:
		return elliptic.P384(), nil
	}
	return nil, ErrUnsupportedCurve.Errorf(nil, "unsupported curve: %v", c)
}

// Region selects the regulatory mode the engine is activated in.
type Region int

const (
	RegionEU Region = iota
	RegionUS
)

func (r Region) String() string {
	if r == RegionUS {
		return "US"
	}
	return "EU"
}

// State is the lifecycle state of an engine session.
type State int

const (
	StateInit State = iota
	StateConnected
	StateActivated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnected:
		return "CONNECTED"
	case StateActivated:
		return "ACTIVATED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PublicKey is an uncompressed public key, with fixed size big-endian
// coordinates.
type PublicKey struct {
	Curve Curve
	X, Y  []byte
}

// NewPublicKey converts an ecdsa public key on curve c.
func NewPublicKey(c Curve, pub *ecdsa.PublicKey) PublicKey {
	n := c.Size()
	return PublicKey{
		Curve: c,
		X:     pub.X.FillBytes(make([]byte, n)),
		Y:     pub.Y.FillBytes(make([]byte, n)),
	}
}

// ECDSA returns the key as an *ecdsa.PublicKey.
func (pk PublicKey) ECDSA() (*ecdsa.PublicKey, error) {
	curve, err := pk.Curve.Elliptic()
	if err != nil {
		return nil, err
	}
	if len(pk.X) != pk.Curve.Size() || len(pk.Y) != pk.Curve.Size() {
		return nil, ErrInvalidParameter.Errorf(nil, "public key coordinates must be %d bytes", pk.Curve.Size())
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(pk.X),
		Y:     new(big.Int).SetBytes(pk.Y),
	}, nil
}

// Signature is a raw (r, s) ECDSA signature.
type Signature struct {
	Curve Curve
	R, S  []byte
}

// VerificationResult is the outcome of an asynchronous verification.
type VerificationResult int

const (
	Verified VerificationResult = iota
	VerificationFailed
	NotVerified
)

func (v VerificationResult) String() string {
	switch v {
	case Verified:
		return "SUCCESS"
	case VerificationFailed:
		return "ERROR_VERIFICATION"
	}
	return "NOT_VERIFIED"
}

// Callbacks invoked by a Dispatcher when an issued operation completes. The
// seq argument is the value supplied when the operation was issued. They
// may run on a goroutine other than the issuer's.
type (
	VerifyCallback     func(seq uint64, ret ReturnValue, res VerificationResult)
	PingCallback       func(seq uint64, ret ReturnValue)
	DecompressCallback func(seq uint64, ret ReturnValue, pub PublicKey)
)

// Engine is the synchronous secure element API. All calls block until the
// operation is complete.
type Engine interface {
	// Activate moves the engine to the activated, normal operating state.
	Activate(ctx *context.T, region Region) error
	// Reset returns the engine to the init state.
	Reset(ctx *context.T) error
	State() State
	// GenerateRtKeyPair creates a runtime key in slot and returns its
	// public half.
	GenerateRtKeyPair(ctx *context.T, slot int, curve Curve) (PublicKey, error)
	// InjectRtKey stores a PKCS#8 encoded private key, encrypted with
	// passphrase if it is non-empty, into slot.
	InjectRtKey(ctx *context.T, slot int, der, passphrase []byte) (PublicKey, error)
	DeleteRtKey(ctx *context.T, slot int) error
	CreateRtSign(ctx *context.T, slot int, hash []byte) (Signature, error)
	GetRandomNumber(ctx *context.T, n int) ([]byte, error)
}

// Dispatcher is the asynchronous ECC API. Issue methods return immediately;
// a non-nil error means the request was rejected and its callback will
// never run. Otherwise the callback runs exactly once when the operation
// completes.
type Dispatcher interface {
	Activate(ctx *context.T) error
	Deactivate(ctx *context.T) error
	VerifySignature(ctx *context.T, seq uint64, pub PublicKey, hash []byte, sig Signature, cb VerifyCallback) error
	VerifySignatureOfMessage(ctx *context.T, seq uint64, pub PublicKey, msg []byte, sig Signature, cb VerifyCallback) error
	// VerifySignatureKey and VerifySignatureKeyOfMessage name a key
	// storage, which current implementations ignore.
	VerifySignatureKey(ctx *context.T, storage int, seq uint64, pub PublicKey, hash []byte, sig Signature, cb VerifyCallback) error
	VerifySignatureKeyOfMessage(ctx *context.T, storage int, seq uint64, pub PublicKey, msg []byte, sig Signature, cb VerifyCallback) error
	// DecompressPublicKey recovers the y coordinate of the point with
	// coordinate x whose y is odd if yOdd is set.
	DecompressPublicKey(ctx *context.T, seq uint64, curve Curve, x []byte, yOdd bool, cb DecompressCallback) error
	Ping(ctx *context.T, seq uint64, cb PingCallback) error
}

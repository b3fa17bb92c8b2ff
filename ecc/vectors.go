// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ecc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"

	"v.io/x/vtest/se"
)

// Vector is a NIST P-256 signature over Message by PublicKey.
type Vector struct {
	PublicKey se.PublicKey
	Message   []byte
	Hash      []byte
	Signature se.Signature
}

// NewVector creates a signature vector with a fresh key.
func NewVector() (*Vector, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	msg := []byte("message")
	h := sha256.Sum256(msg)
	der, err := ecdsa.SignASN1(rand.Reader, priv, h[:])
	if err != nil {
		return nil, err
	}
	sig, err := se.ParseDER(se.NISTP256, der)
	if err != nil {
		return nil, err
	}
	return &Vector{
		PublicKey: se.NewPublicKey(se.NISTP256, &priv.PublicKey),
		Message:   msg,
		Hash:      h[:],
		Signature: sig,
	}, nil
}

// Corrupt returns the vector's signature with s replaced by r.
func (v *Vector) Corrupt() se.Signature {
	return se.Signature{Curve: v.Signature.Curve, R: v.Signature.R, S: v.Signature.R}
}

// YOdd reports whether the y coordinate of the vector's key is odd.
func (v *Vector) YOdd() bool {
	return v.PublicKey.Y[len(v.PublicKey.Y)-1]&1 == 1
}

// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package se

import (
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// MarshalDER encodes the signature as an ASN.1 ECDSA-Sig-Value.
func (s Signature) MarshalDER() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(new(big.Int).SetBytes(s.R))
		b.AddASN1BigInt(new(big.Int).SetBytes(s.S))
	})
	return b.Bytes()
}

// ParseDER decodes an ASN.1 ECDSA-Sig-Value into a raw signature on curve c,
// left padding r and s to the curve size.
func ParseDER(c Curve, der []byte) (Signature, error) {
	r, s := new(big.Int), new(big.Int)
	var inner cryptobyte.String
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return Signature{}, ErrInvalidParameter.Errorf(nil, "malformed ASN.1 signature")
	}
	n := c.Size()
	if r.Sign() <= 0 || s.Sign() <= 0 || r.BitLen() > n*8 || s.BitLen() > n*8 {
		return Signature{}, ErrInvalidParameter.Errorf(nil, "signature out of range for %v", c)
	}
	return Signature{
		Curve: c,
		R:     r.FillBytes(make([]byte, n)),
		S:     s.FillBytes(make([]byte, n)),
	}, nil
}

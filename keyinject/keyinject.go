// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keyinject contains the conformance tests for injecting
// externally generated runtime keys, as PKCS#8 encoded and optionally
// encrypted private keys.
package keyinject

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"flag"

	"github.com/youmark/pkcs8"

	"v.io/v23/context"
	"v.io/x/lib/cmd/flagvar"
	"v.io/x/vtest/se"
	"v.io/x/vtest/vtest"
)

// Config selects the key slot and passphrase used for injection.
type Config struct {
	Slot       int    `cmdline:"keyinject.slot,0,Runtime key slot to inject into"`
	Passphrase string `cmdline:"keyinject.passphrase,vtest,Passphrase used to encrypt injected keys"`
}

// RegisterFlags registers cfg with fs.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	err := flagvar.RegisterFlagsInStruct(fs, "cmdline", cfg, nil, nil)
	if err != nil {
		// panic since this is clearly a programming error.
		panic(err)
	}
}

// Suite is the set of key injection tests.
type Suite struct {
	Config Config
	Engine se.Engine
}

func (s *Suite) Tests() []vtest.Test {
	return []vtest.Test{
		{Num: 110101, Name: "Encrypted runtime key injection", Run: s.session(s.injectEncrypted)},
		{Num: 110102, Name: "Encrypted runtime key injection, wrong passphrase", Run: s.session(s.injectWrongPassphrase)},
		{Num: 110103, Name: "Plain runtime key injection", Run: s.session(s.injectPlain)},
	}
}

func (s *Suite) session(body func(ctx *context.T, st *vtest.Status)) vtest.Func {
	return func(ctx *context.T, st *vtest.Status) {
		if err := s.Engine.Activate(ctx, se.RegionEU); err != nil {
			st.FlagConf("activating engine: %v", err)
			return
		}
		defer func() {
			if err := s.Engine.Reset(ctx); err != nil {
				ctx.Errorf("resetting engine: %v", err)
			}
		}()
		body(ctx, st)
	}
}

// Marshal encodes priv as PKCS#8, encrypted with AES-256-CBC under a
// PBKDF2 derived key if passphrase is not empty.
func Marshal(priv *ecdsa.PrivateKey, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return pkcs8.MarshalPrivateKey(priv, nil, nil)
	}
	return pkcs8.MarshalPrivateKey(priv, passphrase, &pkcs8.Opts{
		Cipher: pkcs8.AES256CBC,
		KDFOpts: pkcs8.PBKDF2Opts{
			SaltSize:       8,
			IterationCount: 10000,
			HMACHash:       crypto.SHA256,
		},
	})
}

// key generates a fresh key and its encoding under passphrase.
func key(st *vtest.Status, passphrase []byte) (*ecdsa.PrivateKey, []byte, bool) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		st.FlagConf("generating key: %v", err)
		return nil, nil, false
	}
	der, err := Marshal(priv, passphrase)
	if err != nil {
		st.FlagConf("encoding key: %v", err)
		return nil, nil, false
	}
	return priv, der, true
}

func (s *Suite) injectEncrypted(ctx *context.T, st *vtest.Status) {
	s.injectAndSign(ctx, st, []byte(s.Config.Passphrase))
}

func (s *Suite) injectPlain(ctx *context.T, st *vtest.Status) {
	s.injectAndSign(ctx, st, nil)
}

// injectAndSign injects a key and checks that signatures made with the
// slot verify under the injected key's public half.
func (s *Suite) injectAndSign(ctx *context.T, st *vtest.Status, passphrase []byte) {
	priv, der, ok := key(st, passphrase)
	if !ok {
		return
	}
	pub, err := s.Engine.InjectRtKey(ctx, s.Config.Slot, der, passphrase)
	if !st.CheckEqual("inject", se.ReturnValueOf(err), se.NoError) {
		return
	}
	defer func() {
		st.CheckEqual("delete", se.ReturnValueOf(s.Engine.DeleteRtKey(ctx, s.Config.Slot)), se.NoError)
	}()
	want := se.NewPublicKey(se.NISTP256, &priv.PublicKey)
	st.Check(string(pub.X) == string(want.X) && string(pub.Y) == string(want.Y),
		"injected public key: expected %x%x, got %x%x", want.X, want.Y, pub.X, pub.Y)

	hash := sha256.Sum256([]byte("message"))
	sig, err := s.Engine.CreateRtSign(ctx, s.Config.Slot, hash[:])
	if !st.CheckEqual("sign", se.ReturnValueOf(err), se.NoError) {
		return
	}
	asn, err := sig.MarshalDER()
	if !st.CheckNoError("encoding signature", err) {
		return
	}
	st.Check(ecdsa.VerifyASN1(&priv.PublicKey, hash[:], asn), "signature made with slot %d does not verify", s.Config.Slot)
}

func (s *Suite) injectWrongPassphrase(ctx *context.T, st *vtest.Status) {
	_, der, ok := key(st, []byte(s.Config.Passphrase))
	if !ok {
		return
	}
	wrong := append([]byte(s.Config.Passphrase), '!')
	_, err := s.Engine.InjectRtKey(ctx, s.Config.Slot, der, wrong)
	st.CheckEqual("inject", se.ReturnValueOf(err), se.InvalidParameter)
}

// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emu

import (
	"flag"
	"time"

	"v.io/x/lib/cmd/flagvar"
)

// Config holds the command line configuration of an emulated secure
// element.
type Config struct {
	QueueDepth    int           `cmdline:"emu.queue-depth,64,Maximum number of queued dispatcher requests"`
	VerifyLatency time.Duration `cmdline:"emu.verify-latency,0s,Simulated duration of a signature verification"`
	SignLatency   time.Duration `cmdline:"emu.sign-latency,0s,Simulated duration of a signature generation"`
	KeyGenLatency time.Duration `cmdline:"emu.keygen-latency,0s,Simulated duration of a key pair generation"`
}

// RegisterFlags registers cfg with fs.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	err := flagvar.RegisterFlagsInStruct(fs, "cmdline", cfg, nil, nil)
	if err != nil {
		// panic since this is clearly a programming error.
		panic(err)
	}
}

// Options returns the emulator options described by cfg.
func (cfg Config) Options() []Option {
	return []Option{
		WithQueueDepth(cfg.QueueDepth),
		WithLatency(OpVerify, cfg.VerifyLatency),
		WithLatency(OpSign, cfg.SignLatency),
		WithLatency(OpGenerateKey, cfg.KeyGenLatency),
	}
}

// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"flag"
	"time"

	"v.io/x/lib/cmd/flagvar"
)

// Config holds the volumes, timing and thresholds of the performance
// tests.
type Config struct {
	Keys               int           `cmdline:"perf.keys,5,Number of keys the test data is spread over"`
	VerifyCount        int           `cmdline:"perf.verify-count,5000,Number of verifications in a rate test"`
	GenCount           int           `cmdline:"perf.gen-count,400,Number of signatures in a rate test"`
	VerifyLatencyCount int           `cmdline:"perf.verify-latency-count,1000,Number of verifications in a latency test"`
	GenLatencyCount    int           `cmdline:"perf.gen-latency-count,1000,Number of signatures in a latency test"`
	Sustained          time.Duration `cmdline:"perf.sustained,10s,Duration of the sustained verification rate test"`
	Grace              time.Duration `cmdline:"perf.grace,10ms,Time allowed for outstanding operations to complete"`
	Timeout            time.Duration `cmdline:"perf.timeout,5m,Deadline for each performance test"`
	LoadStreams        int           `cmdline:"perf.load-streams,1,Number of asynchronous load streams"`
	Hardware           string        `cmdline:"perf.hardware,auto,'Whether hardware acceleration is present: yes, no or auto'"`

	VerifyRateHW    float64 `cmdline:"perf.verify-rate-hw,2500,Minimum verifications per second with hardware acceleration"`
	VerifyRateSW    float64 `cmdline:"perf.verify-rate-sw,1000,Minimum verifications per second without hardware acceleration"`
	GenRateHW       float64 `cmdline:"perf.gen-rate-hw,200,Minimum signatures per second with hardware acceleration"`
	GenRateSW       float64 `cmdline:"perf.gen-rate-sw,100,Minimum signatures per second without hardware acceleration"`
	VerifyLatencyHW float64 `cmdline:"perf.verify-latency-hw,10,Maximum verification latency in milliseconds with hardware acceleration"`
	VerifyLatencySW float64 `cmdline:"perf.verify-latency-sw,20,Maximum verification latency in milliseconds without hardware acceleration"`
	GenLatencyHW    float64 `cmdline:"perf.gen-latency-hw,10,Maximum signing latency in milliseconds with hardware acceleration"`
	GenLatencySW    float64 `cmdline:"perf.gen-latency-sw,20,Maximum signing latency in milliseconds without hardware acceleration"`
}

// RegisterFlags registers cfg with fs, setting cfg to the defaults.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	err := flagvar.RegisterFlagsInStruct(fs, "cmdline", cfg, nil, nil)
	if err != nil {
		// panic since this is clearly a programming error.
		panic(err)
	}
}

// DefaultConfig returns the configuration with every field at its
// default.
func DefaultConfig() Config {
	var cfg Config
	RegisterFlags(flag.NewFlagSet("defaults", flag.ContinueOnError), &cfg)
	return cfg
}

func (cfg Config) VerifyRate() Threshold {
	return Threshold{Name: "verification rate", Kind: MinRate, Hardware: cfg.VerifyRateHW, Software: cfg.VerifyRateSW}
}

func (cfg Config) GenRate() Threshold {
	return Threshold{Name: "signature generation rate", Kind: MinRate, Hardware: cfg.GenRateHW, Software: cfg.GenRateSW}
}

func (cfg Config) VerifyLatency() Threshold {
	return Threshold{Name: "verification latency", Kind: MaxLatency, Hardware: cfg.VerifyLatencyHW, Software: cfg.VerifyLatencySW}
}

func (cfg Config) GenLatency() Threshold {
	return Threshold{Name: "signature generation latency", Kind: MaxLatency, Hardware: cfg.GenLatencyHW, Software: cfg.GenLatencySW}
}

// Probe returns the capability probe selected by cfg.Hardware.
func (cfg Config) Probe() (Probe, error) {
	switch cfg.Hardware {
	case "yes":
		return FixedProbe(true), nil
	case "no":
		return FixedProbe(false), nil
	case "auto", "":
		return CPUProbe{}, nil
	}
	return nil, ErrSetup.Errorf(nil, "invalid value for -perf.hardware: %q", cfg.Hardware)
}

// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"

	"v.io/v23/context"
)

// Probe reports whether hardware acceleration for the operations under
// test is present. The answer only selects which threshold applies.
type Probe interface {
	HardwarePresent(ctx *context.T) (bool, error)
}

// FixedProbe always gives the same answer.
type FixedProbe bool

func (p FixedProbe) HardwarePresent(*context.T) (bool, error) {
	return bool(p), nil
}

// CPUFlags are the processor feature flags, as reported by the operating
// system, any one of which counts as cryptographic acceleration.
var CPUFlags = []string{"aes", "pmull", "sha2", "sha_ni", "sha256"}

// CPUProbe inspects the host processor's feature flags.
type CPUProbe struct{}

func (CPUProbe) HardwarePresent(ctx *context.T) (bool, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return false, err
	}
	for _, info := range infos {
		for _, flag := range info.Flags {
			for _, want := range CPUFlags {
				if strings.EqualFold(flag, want) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// hardwarePresent consults p, treating a failed probe as no acceleration.
func hardwarePresent(ctx *context.T, p Probe) bool {
	if p == nil {
		return false
	}
	hw, err := p.HardwarePresent(ctx)
	if err != nil {
		ctx.Errorf("hardware probe failed, using software thresholds: %v", err)
		return false
	}
	return hw
}

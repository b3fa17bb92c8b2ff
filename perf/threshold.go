// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"time"

	"v.io/v23/context"
)

// Kind says which way a Threshold bounds its metric.
type Kind int

const (
	// MinRate thresholds are minimum operations per second.
	MinRate Kind = iota
	// MaxLatency thresholds are maximum latencies in milliseconds.
	MaxLatency
)

// Threshold is a pass/fail bound with one value for systems with hardware
// acceleration and one for systems without.
type Threshold struct {
	Name     string
	Kind     Kind
	Hardware float64
	Software float64
}

// Select returns the bound that applies.
func (t Threshold) Select(hardware bool) float64 {
	if hardware {
		return t.Hardware
	}
	return t.Software
}

// CheckRate fails if r is below the bound.
func (t Threshold) CheckRate(ctx *context.T, r Rate, hardware bool) error {
	bound := t.Select(hardware)
	if float64(r.PerSecond) < bound {
		return ErrThreshold.Errorf(ctx, "%s: %d/s is below the required %.0f/s", t.Name, r.PerSecond, bound)
	}
	return nil
}

// CheckLatency fails if max exceeds the bound.
func (t Threshold) CheckLatency(ctx *context.T, max time.Duration, hardware bool) error {
	bound := t.Select(hardware)
	if ms(max) > bound {
		return ErrThreshold.Errorf(ctx, "%s: %.2f ms exceeds the allowed %.2f ms", t.Name, ms(max), bound)
	}
	return nil
}

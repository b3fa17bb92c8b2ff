// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vtest

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"v.io/v23/context"
)

// Process exit codes.
const (
	ExitPass = 0
	ExitFail = 1
	ExitConf = 32
)

type contextKey int

const runIDKey = contextKey(iota)

// WithRunID returns a context carrying the identifier of a test run.
func WithRunID(ctx *context.T, id uuid.UUID) *context.T {
	return context.WithValue(ctx, runIDKey, id)
}

// RunID returns the identifier of the test run ctx belongs to, or the nil
// UUID if there is none.
func RunID(ctx *context.T) uuid.UUID {
	id, _ := ctx.Value(runIDKey).(uuid.UUID)
	return id
}

// Result is the outcome of one test.
type Result struct {
	Num          int
	Name         string
	Verdict      Verdict
	Checks       int
	Failures     []string
	Inconclusive []string
	Figures      []Figure
	Duration     time.Duration
}

// Runner executes tests one at a time, writing a line per test to Out.
type Runner struct {
	Out io.Writer
}

// Run executes tests in order under a new run identifier.
func (r *Runner) Run(ctx *context.T, tests []Test) (uuid.UUID, []Result) {
	id, err := uuid.NewUUID()
	if err != nil {
		id = uuid.New()
	}
	ctx = WithRunID(ctx, id)
	ctx.Infof("run %v: %d tests", id, len(tests))
	results := make([]Result, 0, len(tests))
	for _, t := range tests {
		results = append(results, r.runOne(ctx, t))
	}
	return id, results
}

func (r *Runner) runOne(ctx *context.T, t Test) Result {
	if r.Out != nil {
		fmt.Fprintf(r.Out, "TEST %d: %s\n", t.Num, t.Name)
	}
	st := &Status{}
	start := time.Now()
	t.Run(ctx, st)
	res := Result{
		Num:          t.Num,
		Name:         t.Name,
		Verdict:      st.Verdict(),
		Checks:       st.Checks(),
		Failures:     st.Failures(),
		Inconclusive: st.Inconclusive(),
		Figures:      st.Figures(),
		Duration:     time.Since(start),
	}
	for _, f := range res.Failures {
		ctx.Errorf("test %d: %s", t.Num, f)
	}
	for _, c := range res.Inconclusive {
		ctx.Infof("test %d: inconclusive: %s", t.Num, c)
	}
	if r.Out != nil {
		for _, f := range res.Failures {
			fmt.Fprintf(r.Out, "  ERROR: %s\n", f)
		}
		for _, f := range res.Figures {
			fmt.Fprintf(r.Out, "  %s: %s\n", f.Name, f.Value)
		}
		fmt.Fprintf(r.Out, "TEST %d: %v (%d subtests, %d failed)\n", t.Num, res.Verdict, res.Checks, len(res.Failures))
	}
	return res
}

// ExitCode returns ExitFail if any test failed, otherwise ExitConf if any
// test was inconclusive or no test ran, otherwise ExitPass.
func ExitCode(results []Result) int {
	if len(results) == 0 {
		return ExitConf
	}
	code := ExitPass
	for _, r := range results {
		switch r.Verdict {
		case Fail:
			return ExitFail
		case Conf:
			code = ExitConf
		}
	}
	return code
}

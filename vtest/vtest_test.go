// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vtest_test

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"v.io/v23/context"
	"v.io/x/lib/vlog"
	"v.io/x/vtest/vtest"
)

func nums(tests []vtest.Test) []int {
	var out []int
	for _, t := range tests {
		out = append(out, t.Num)
	}
	return out
}

func noop(*context.T, *vtest.Status) {}

func TestStatusVerdict(t *testing.T) {
	st := &vtest.Status{}
	if got, want := st.Verdict(), vtest.Pass; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	st.CheckEqual("ret", 1, 1)
	st.FlagConf("clock unavailable")
	if got, want := st.Verdict(), vtest.Conf; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	st.CheckEqual("ret", 1, 2)
	if got, want := st.Verdict(), vtest.Fail; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := st.Checks(), 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := st.Failures(), []string{"ret: expected 2, got 1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStatusConcurrentChecks(t *testing.T) {
	st := &vtest.Status{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.Check(i != 3, "callback %d failed", i)
		}(i)
	}
	wg.Wait()
	if got, want := st.Checks(), 10; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := len(st.Failures()), 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRegistrySelect(t *testing.T) {
	r := &vtest.Registry{}
	if err := r.Register(
		vtest.Test{Num: 130201, Name: "a", Run: noop},
		vtest.Test{Num: 10101, Name: "b", Run: noop},
		vtest.Test{Num: 130502, Name: "c", Run: noop},
		vtest.Test{Num: 30101, Name: "d", Run: noop},
	); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(vtest.Test{Num: 10101, Name: "dup", Run: noop}); !errors.Is(err, vtest.ErrDuplicateTest) {
		t.Errorf("unexpected error: %v", err)
	}
	if err := r.Register(vtest.Test{Num: 1000000, Name: "big", Run: noop}); !errors.Is(err, vtest.ErrBadTestNumber) {
		t.Errorf("unexpected error: %v", err)
	}
	for _, tc := range []struct {
		args []string
		want []int
	}{
		{nil, []int{10101, 30101, 130201, 130502}},
		{[]string{"13"}, []int{130201, 130502}},
		{[]string{"01"}, []int{10101}},
		{[]string{"30101"}, []int{30101}},
		{[]string{"30101", "130201"}, []int{30101, 130201}},
		{[]string{"130300", "130200"}, nil},
	} {
		got, err := r.Select(tc.args)
		if err != nil {
			t.Errorf("%v: %v", tc.args, err)
			continue
		}
		if !reflect.DeepEqual(nums(got), tc.want) {
			t.Errorf("%v: got %v, want %v", tc.args, nums(got), tc.want)
		}
	}
	for _, args := range [][]string{{"x"}, {"0"}, {"1000000"}, {"1", "2", "3"}} {
		if _, err := r.Select(args); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}

func TestRunner(t *testing.T) {
	ctx, cancel := context.RootContext()
	defer cancel()
	ctx = context.WithLogger(ctx, vlog.Log)

	var runID uuid.UUID
	tests := []vtest.Test{
		{Num: 10101, Name: "passes", Run: func(ctx *context.T, st *vtest.Status) {
			runID = vtest.RunID(ctx)
			st.Check(true, "")
			st.Record("rate", "%d/s", 42)
		}},
		{Num: 10102, Name: "inconclusive", Run: func(ctx *context.T, st *vtest.Status) {
			st.FlagConf("no clock")
		}},
	}
	var out bytes.Buffer
	r := &vtest.Runner{Out: &out}
	id, results := r.Run(ctx, tests)
	if got, want := runID, id; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := results[0].Verdict, vtest.Pass; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := results[1].Verdict, vtest.Conf; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := vtest.ExitCode(results), vtest.ExitConf; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	for _, want := range []string{"TEST 10101: PASS", "rate: 42/s", "TEST 10102: CONF"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q does not contain %q", out.String(), want)
		}
	}

	_, results = r.Run(ctx, []vtest.Test{{Num: 1, Name: "fails", Run: func(ctx *context.T, st *vtest.Status) {
		st.Failf("boom")
	}}})
	if got, want := vtest.ExitCode(results), vtest.ExitFail; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := vtest.ExitCode(nil), vtest.ExitConf; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

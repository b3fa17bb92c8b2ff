// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vtest

import (
	"sort"
	"strconv"

	"v.io/v23/context"
	"v.io/v23/verror"
)

var (
	ErrDuplicateTest = verror.NewID("DuplicateTest")
	ErrBadTestNumber = verror.NewID("BadTestNumber")
	ErrBadSelection  = verror.NewID("BadSelection")
)

const (
	// Test numbers are six digits: a two digit suite, a two digit
	// requirement and a two digit test, e.g. 130201. Suites below 10 are
	// written without their leading zero.
	firstTest = 0
	lastTest  = 1000000
)

// Func is the body of a test. It reports results through st.
type Func func(ctx *context.T, st *Status)

// Test is a numbered conformance test.
type Test struct {
	Num  int
	Name string
	Run  Func
}

// Registry is an ordered set of tests.
type Registry struct {
	tests []Test
}

// Register adds tests to r. Test numbers must be unique and in range.
func (r *Registry) Register(tests ...Test) error {
	for _, t := range tests {
		if t.Num <= firstTest || t.Num >= lastTest {
			return ErrBadTestNumber.Errorf(nil, "test number %d out of range", t.Num)
		}
		for _, e := range r.tests {
			if e.Num == t.Num {
				return ErrDuplicateTest.Errorf(nil, "test %d (%s) already registered as %q", t.Num, t.Name, e.Name)
			}
		}
		r.tests = append(r.tests, t)
	}
	sort.Slice(r.tests, func(i, j int) bool { return r.tests[i].Num < r.tests[j].Num })
	return nil
}

// All returns all registered tests in test number order.
func (r *Registry) All() []Test {
	return append([]Test(nil), r.tests...)
}

// Range returns the tests numbered from first to last inclusive.
func (r *Registry) Range(first, last int) []Test {
	var out []Test
	for _, t := range r.tests {
		if t.Num >= first && t.Num <= last {
			out = append(out, t)
		}
	}
	return out
}

// Select interprets command line arguments: no arguments select all tests,
// a two digit argument selects a suite (XX0101 to XX9999), a single number
// selects one test and two numbers select an inclusive range.
func (r *Registry) Select(args []string) ([]Test, error) {
	switch len(args) {
	case 0:
		return r.All(), nil
	case 1:
		if len(args[0]) == 2 {
			first, err := ParseTestNum(args[0] + "0101")
			if err != nil {
				return nil, err
			}
			last, err := ParseTestNum(args[0] + "9999")
			if err != nil {
				return nil, err
			}
			return r.Range(first, last), nil
		}
		n, err := ParseTestNum(args[0])
		if err != nil {
			return nil, err
		}
		return r.Range(n, n), nil
	case 2:
		first, err := ParseTestNum(args[0])
		if err != nil {
			return nil, err
		}
		last, err := ParseTestNum(args[1])
		if err != nil {
			return nil, err
		}
		return r.Range(first, last), nil
	}
	return nil, ErrBadSelection.Errorf(nil, "expected at most two test numbers, got %d arguments", len(args))
}

// ParseTestNum parses a test number.
func ParseTestNum(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= firstTest || n >= lastTest {
		return 0, ErrBadTestNumber.Errorf(nil, "invalid test number: %s", s)
	}
	return n, nil
}

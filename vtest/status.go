// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vtest provides the bookkeeping shared by all conformance tests:
// per-test status with subtest checks, verdicts, the numbered test registry
// and a runner that selects and executes tests.
package vtest

import (
	"fmt"
	"sync"
)

// Verdict is the outcome of a single test.
type Verdict int

const (
	Pass Verdict = iota
	Fail
	// Conf means the test could not be completed and is inconclusive.
	Conf
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	}
	return "CONF"
}

// Figure is a named measurement reported by a test for diagnostic purposes.
type Figure struct {
	Name  string
	Value string
}

// Status accumulates the subtest results of one test. It is safe for
// concurrent use since checks are made from dispatcher callbacks as well as
// from the test itself.
type Status struct {
	mu       sync.Mutex
	checks   int
	failures []string
	conf     []string
	figures  []Figure
}

// Check records a subtest, which fails unless ok. It returns ok.
func (s *Status) Check(ok bool, format string, args ...interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks++
	if !ok {
		s.failures = append(s.failures, fmt.Sprintf(format, args...))
	}
	return ok
}

// CheckEqual records a subtest comparing got against want.
func (s *Status) CheckEqual(what string, got, want interface{}) bool {
	return s.Check(got == want, "%s: expected %v, got %v", what, want, got)
}

// CheckNoError records a subtest that fails if err is not nil.
func (s *Status) CheckNoError(what string, err error) bool {
	if err != nil {
		return s.Check(false, "%s: %v", what, err)
	}
	return s.Check(true, "")
}

// Failf records a failed subtest.
func (s *Status) Failf(format string, args ...interface{}) {
	s.Check(false, format, args...)
}

// FlagConf marks the test as inconclusive.
func (s *Status) FlagConf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conf = append(s.conf, fmt.Sprintf(format, args...))
}

// Record adds a measured figure to the test's report.
func (s *Status) Record(name, format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.figures = append(s.figures, Figure{Name: name, Value: fmt.Sprintf(format, args...)})
}

// Verdict returns FAIL if any subtest failed, otherwise CONF if the test
// was flagged inconclusive, otherwise PASS.
func (s *Status) Verdict() Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case len(s.failures) > 0:
		return Fail
	case len(s.conf) > 0:
		return Conf
	}
	return Pass
}

// Checks returns the number of subtests run.
func (s *Status) Checks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks
}

// Failures returns the messages of the failed subtests.
func (s *Status) Failures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.failures...)
}

// Inconclusive returns the reasons the test was flagged inconclusive.
func (s *Status) Inconclusive() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.conf...)
}

// Figures returns the recorded figures in the order they were recorded.
func (s *Status) Figures() []Figure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Figure(nil), s.figures...)
}

// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"errors"

	"v.io/v23/verror"
	"v.io/x/vtest/vtest"
)

var (
	// ErrSetup and ErrClock make a test inconclusive.
	ErrSetup = verror.NewID("Setup")
	ErrClock = verror.NewID("Clock")

	ErrIssueRejected    = verror.NewID("IssueRejected")
	ErrAsyncFailure     = verror.NewID("AsyncFailure")
	ErrMissingResponses = verror.NewID("MissingResponses")
	ErrClockAnomaly     = verror.NewID("ClockAnomaly")
	ErrThreshold        = verror.NewID("Threshold")
)

// Inconclusive reports whether err means that a test could not be carried
// out, as opposed to having failed.
func Inconclusive(err error) bool {
	return errors.Is(err, ErrSetup) || errors.Is(err, ErrClock)
}

// report records err, if any, against st.
func report(st *vtest.Status, err error) {
	switch {
	case err == nil:
	case Inconclusive(err):
		st.FlagConf("%v", err)
	default:
		st.Failf("%v", err)
	}
}

// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package se

import (
	"errors"
	"fmt"

	"v.io/v23/verror"
)

var (
	ErrNotActivated     = verror.NewID("NotActivated")
	ErrWrongState       = verror.NewID("WrongState")
	ErrInvalidParameter = verror.NewID("InvalidParameter")
	ErrUnsupportedCurve = verror.NewID("UnsupportedCurve")
	ErrKeyNotPresent    = verror.NewID("KeyNotPresent")
	ErrQueueFull        = verror.NewIDAction("QueueFull", verror.RetryBackoff)
	ErrOperation        = verror.NewID("Operation")
)

// ReturnValue is the status word reported by the dispatcher, both from issue
// calls and to callbacks.
type ReturnValue int

const (
	NoError ReturnValue = iota
	NotInitiated
	InvalidParameter
	UnsupportedCurve
	KeyNotPresent
	QueueFull
	OperationFailed
)

var returnValueNames = [...]string{
	"NO_ERROR",
	"NOT_INITIATED",
	"INVALID_PARAMETER",
	"UNSUPPORTED_CURVE",
	"KEY_NOT_PRESENT",
	"QUEUE_FULL",
	"OPERATION_FAILED",
}

func (r ReturnValue) String() string {
	if r < 0 || int(r) >= len(returnValueNames) {
		return fmt.Sprintf("ReturnValue(%d)", int(r))
	}
	return returnValueNames[r]
}

// ReturnValueOf maps an error returned by an Engine or Dispatcher to its
// status word. A nil error is NoError; an error with no known ID is
// OperationFailed.
func ReturnValueOf(err error) ReturnValue {
	switch {
	case err == nil:
		return NoError
	case errors.Is(err, ErrNotActivated), errors.Is(err, ErrWrongState):
		return NotInitiated
	case errors.Is(err, ErrInvalidParameter):
		return InvalidParameter
	case errors.Is(err, ErrUnsupportedCurve):
		return UnsupportedCurve
	case errors.Is(err, ErrKeyNotPresent):
		return KeyNotPresent
	case errors.Is(err, ErrQueueFull):
		return QueueFull
	}
	return OperationFailed
}

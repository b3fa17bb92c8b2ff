// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"fmt"
	"sync"
	"time"

	"v.io/v23/context"
	"v.io/v23/verror"
	"v.io/x/ref/lib/timekeeper"
)

// State is the state of a stream of operations.
type State int

const (
	Idle State = iota
	Issuing
	AwaitingCallback
	Draining
	Done
	Failed
)

var stateNames = [...]string{"Idle", "Issuing", "AwaitingCallback", "Draining", "Done", "Failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// IssueFunc issues operation i without waiting for it to complete. Unless
// it returns an error, it must arrange for done to be called when the
// operation completes, with a non-nil error if the operation's outcome was
// a failure. done may be called from any goroutine.
type IssueFunc func(ctx *context.T, i int, done func(error)) error

// CallFunc performs operation i synchronously.
type CallFunc func(ctx *context.T, i int) error

// Batch is the record of one stream of operations.
type Batch struct {
	State     State
	Issued    int
	Completed int
	// Failed counts completed operations whose outcome was a failure.
	Failed   int
	FirstErr error
	Window   Window
	Latency  *Tracker
}

func newBatch() *Batch {
	return &Batch{State: Idle, Latency: NewTracker()}
}

// Rate returns the throughput of the batch over its window.
func (b *Batch) Rate() (Rate, error) {
	return b.Window.Rate(b.Completed)
}

func (b *Batch) fail(err error) {
	b.Failed++
	if b.FirstErr == nil {
		b.FirstErr = err
	}
}

// asyncErr summarizes the failed operations of b, if any.
func (b *Batch) asyncErr(ctx *context.T) error {
	if b.Failed == 0 {
		return nil
	}
	return ErrAsyncFailure.Errorf(ctx, "%d of %d operations failed, first: %v", b.Failed, b.Completed, b.FirstErr)
}

// Pipeline drives an asynchronous operation with at most one operation
// outstanding: each completion causes the next operation to be issued until
// the countdown reaches zero.
//
// Completions are posted by the callback to the goroutine calling Run,
// which is the only one to touch the batch state.
type Pipeline struct {
	// Count is the initial countdown.
	Count int
	// Duration, if positive, ends the pipeline at the first completion
	// observed at least Duration after the pipeline started.
	Duration time.Duration
	Clock    Clock
	// Counter tracks outstanding operations. If nil the pipeline uses its
	// own counter and drains it before returning. A counter shared with
	// other pipelines must be drained by its owner.
	Counter *Counter
	// Waiter times the drain; the system clock is used if it is nil.
	Waiter timekeeper.TimeKeeper
	Grace  time.Duration
	// Stop forces the countdown to zero when closed.
	Stop <-chan struct{}
	// Transition, if set, is called on every change of state, with the
	// index of the operation concerned.
	Transition func(from, to State, i int)
}

type completion struct {
	i        int
	at       time.Time
	clockErr error
	err      error
}

func (p *Pipeline) set(b *Batch, to State, i int) {
	if p.Transition != nil {
		p.Transition(b.State, to, i)
	}
	b.State = to
}

// Run drives the pipeline. The returned batch is valid even when an error
// is returned, but its timing is only trustworthy if the error is nil or
// has ID ErrAsyncFailure.
func (p *Pipeline) Run(ctx *context.T, issue IssueFunc) (*Batch, error) {
	clock := p.Clock
	if clock == nil {
		clock = RealClock()
	}
	counter, drain := p.Counter, false
	if counter == nil {
		counter, drain = NewCounter(p.Waiter), true
	}
	b := newBatch()
	events := make(chan completion, 1)
	remaining := p.Count
	if remaining <= 0 {
		return b, ErrSetup.Errorf(ctx, "invalid operation count %d", p.Count)
	}

	var err error
loop:
	for i := 0; remaining > 0; i++ {
		select {
		case <-p.Stop:
			break loop
		default:
		}
		issued, cerr := clock.Now()
		if cerr != nil {
			err = ErrClock.Errorf(ctx, "reading clock before operation %d: %v", i, cerr)
			break
		}
		if i == 0 {
			b.Window.Start = issued
		}
		p.set(b, Issuing, i)
		var once sync.Once
		i := i
		done := func(opErr error) {
			once.Do(func() {
				at, cerr := clock.Now()
				counter.Dec()
				events <- completion{i: i, at: at, clockErr: cerr, err: opErr}
			})
		}
		counter.Inc()
		if ierr := issue(ctx, i, done); ierr != nil {
			counter.Dec()
			err = ErrIssueRejected.Errorf(ctx, "operation %d rejected: %v", i, ierr)
			break
		}
		b.Issued++
		p.set(b, AwaitingCallback, i)

		var ev completion
		select {
		case ev = <-events:
		case <-p.Stop:
			// Keep a completion that raced with the stop.
			select {
			case ev = <-events:
			default:
				break loop
			}
		case <-ctx.Done():
			err = verror.ErrCanceled.Errorf(ctx, "pipeline canceled after %d operations: %v", b.Completed, ctx.Err())
			break loop
		}
		if ev.clockErr != nil {
			err = ErrClock.Errorf(ctx, "reading clock after operation %d: %v", i, ev.clockErr)
			break
		}
		b.Completed++
		b.Window.End = ev.at
		if ev.err != nil {
			b.fail(ev.err)
		}
		if lerr := b.Latency.Observe(issued, ev.at); lerr != nil {
			err = lerr
			break
		}
		remaining--
		if p.Duration > 0 && ev.at.Sub(b.Window.Start) >= p.Duration {
			remaining = 0
		}
	}

	if err != nil {
		p.set(b, Failed, b.Issued)
		if drain {
			counter.Reset()
		}
		return b, err
	}
	p.set(b, Draining, b.Issued)
	if drain {
		if werr := counter.Wait(ctx, p.Grace); werr != nil {
			p.set(b, Failed, b.Issued)
			return b, werr
		}
	}
	if aerr := b.asyncErr(ctx); aerr != nil {
		p.set(b, Failed, b.Issued)
		return b, aerr
	}
	p.set(b, Done, b.Issued)
	return b, nil
}

// Loop drives a synchronous operation Count times, or until Stop is
// closed. Failed operations are recorded and the loop carries on.
type Loop struct {
	Count    int
	Duration time.Duration
	Clock    Clock
	Stop     <-chan struct{}
}

func (l *Loop) stopped() bool {
	select {
	case <-l.Stop:
		return true
	default:
		return false
	}
}

// Run drives the loop.
func (l *Loop) Run(ctx *context.T, call CallFunc) (*Batch, error) {
	clock := l.Clock
	if clock == nil {
		clock = RealClock()
	}
	b := newBatch()
	if l.Count <= 0 {
		return b, ErrSetup.Errorf(ctx, "invalid operation count %d", l.Count)
	}
	b.State = Issuing
	for i := 0; i < l.Count && !l.stopped(); i++ {
		if ctx.Err() != nil {
			b.State = Failed
			return b, verror.ErrCanceled.Errorf(ctx, "loop canceled after %d operations: %v", b.Completed, ctx.Err())
		}
		start, err := clock.Now()
		if err != nil {
			b.State = Failed
			return b, ErrClock.Errorf(ctx, "reading clock before operation %d: %v", i, err)
		}
		if i == 0 {
			b.Window.Start = start
		}
		opErr := call(ctx, i)
		end, err := clock.Now()
		if err != nil {
			b.State = Failed
			return b, ErrClock.Errorf(ctx, "reading clock after operation %d: %v", i, err)
		}
		b.Issued++
		b.Completed++
		b.Window.End = end
		if opErr != nil {
			b.fail(opErr)
		}
		if err := b.Latency.Observe(start, end); err != nil {
			b.State = Failed
			return b, err
		}
		if l.Duration > 0 && end.Sub(b.Window.Start) >= l.Duration {
			break
		}
	}
	if err := b.asyncErr(ctx); err != nil {
		b.State = Failed
		return b, err
	}
	b.State = Done
	return b, nil
}

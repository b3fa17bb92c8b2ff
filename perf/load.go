// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perf

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"v.io/v23/context"
	"v.io/x/ref/lib/timekeeper"
)

// LoadSimulator runs a background stream of operations alongside a
// measured one. It shares nothing with the measured stream except the
// engine the operations are issued to; its own timing is discarded.
type LoadSimulator struct {
	stop    chan struct{}
	done    chan struct{}
	counter *Counter
	grace   time.Duration
	ops     int64
	// async streams exit as soon as they are stopped, so Stop joins them
	// before draining.
	async bool

	mu       sync.Mutex
	firstErr error
	once     sync.Once
	result   error
}

func newLoad(waiter timekeeper.TimeKeeper, grace time.Duration) *LoadSimulator {
	return &LoadSimulator{
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		counter: NewCounter(waiter),
		grace:   grace,
	}
}

func (l *LoadSimulator) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

func (l *LoadSimulator) record(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.firstErr == nil {
		l.firstErr = err
	}
}

// StartSyncLoad calls call in a tight loop on a dedicated OS thread until
// the simulator is stopped.
func StartSyncLoad(ctx *context.T, call CallFunc, waiter timekeeper.TimeKeeper, grace time.Duration) *LoadSimulator {
	l := newLoad(waiter, grace)
	go func() {
		defer close(l.done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		for i := 0; !l.stopped() && ctx.Err() == nil; i++ {
			l.counter.Inc()
			err := call(ctx, i)
			l.counter.Dec()
			if err != nil {
				l.record(err)
				continue
			}
			atomic.AddInt64(&l.ops, 1)
		}
	}()
	return l
}

// StartAsyncLoad runs streams pipelines of issue, each with a countdown
// large enough that only Stop ends them. All streams share one counter,
// which Stop drains.
func StartAsyncLoad(ctx *context.T, streams int, issue IssueFunc, clock Clock, waiter timekeeper.TimeKeeper, grace time.Duration) *LoadSimulator {
	l := newLoad(waiter, grace)
	l.async = true
	counted := func(ctx *context.T, i int, done func(error)) error {
		return issue(ctx, i, func(err error) {
			if err == nil {
				atomic.AddInt64(&l.ops, 1)
			}
			done(err)
		})
	}
	var wg sync.WaitGroup
	for s := 0; s < streams; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := &Pipeline{
				Count:   math.MaxInt32,
				Clock:   clock,
				Counter: l.counter,
				Stop:    l.stop,
			}
			if _, err := p.Run(ctx, counted); err != nil {
				l.record(err)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(l.done)
	}()
	return l
}

// Ops returns the number of operations completed successfully so far.
func (l *LoadSimulator) Ops() int {
	return int(atomic.LoadInt64(&l.ops))
}

// Outstanding returns the number of operations issued by the simulator
// that have not completed.
func (l *LoadSimulator) Outstanding() int {
	return l.counter.Count()
}

func (l *LoadSimulator) join(ctx *context.T) {
	select {
	case <-l.done:
	case <-ctx.Done():
	}
}

// Stop forces the simulator's streams to stop issuing and waits up to the
// grace period for their outstanding operations to complete. Operations
// still outstanding after that are reported as missing responses. Stop
// does not return before the streams have exited or ctx is done. It
// returns the number of operations completed successfully and is safe to
// call more than once.
func (l *LoadSimulator) Stop(ctx *context.T) (int, error) {
	l.once.Do(func() {
		close(l.stop)
		if l.async {
			l.join(ctx)
		}
		werr := l.counter.Wait(ctx, l.grace)
		// A sync stream may still be inside a late call.
		l.join(ctx)
		if werr != nil {
			l.result = werr
			return
		}
		l.mu.Lock()
		l.result = l.firstErr
		l.mu.Unlock()
	})
	return l.Ops(), l.result
}

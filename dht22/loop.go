// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht22

import (
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Handle is a pending timer or edge watch.
type Handle interface {
	// Stop cancels the callback. It returns false if the callback already
	// ran or was already stopped, in which case it does nothing.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
//
// All callbacks scheduled on a Scheduler, and all edges delivered by the
// EdgeWatcher used with it, must run sequentially. The driver relies on this
// instead of locking.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Handle
	Now() time.Time
}

// Edge is a falling edge observed on the data line.
//
// LastTime is the previous transition in either direction, so
// Time-LastTime is the width of the high pulse that the edge ends.
type Edge struct {
	Time     time.Time
	LastTime time.Time
}

// EdgeWatcher reports every falling edge of a pin until stopped.
type EdgeWatcher interface {
	Watch(p gpio.PinIn, f func(Edge)) Handle
}

// watchPoll bounds how long a stopped watch keeps waiting on the pin.
const watchPoll = 10 * time.Millisecond

// Loop is a single goroutine event loop. It implements both Scheduler and
// EdgeWatcher so a Dev can be driven without any other host support.
//
// Callbacks must not call Halt.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewLoop starts an event loop. Call Halt to stop it.
func NewLoop() *Loop {
	l := &Loop{queue: make(chan func(), 256), done: make(chan struct{})}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case f := <-l.queue:
			f()
		}
	}
}

// Post queues f to run on the loop. It returns false if the loop is halted.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.queue <- f:
		return true
	}
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc implements Scheduler.
func (l *Loop) AfterFunc(d time.Duration, f func()) Handle {
	h := &loopHandle{}
	h.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if h.stopped.CompareAndSwap(false, true) {
				f()
			}
		})
	})
	return h
}

// Watch implements EdgeWatcher. The pin must be configured for both edges
// with In() for edges to be reported; rising edges only update LastTime.
func (l *Loop) Watch(p gpio.PinIn, f func(Edge)) Handle {
	h := &loopHandle{}
	go func() {
		last := time.Now()
		for !h.stopped.Load() {
			select {
			case <-l.done:
				return
			default:
			}
			if !p.WaitForEdge(watchPoll) {
				continue
			}
			now := time.Now()
			if p.Read() == gpio.Low {
				e := Edge{Time: now, LastTime: last}
				l.Post(func() {
					if !h.stopped.Load() {
						f(e)
					}
				})
			}
			last = now
		}
	}()
	return h
}

// Halt stops the loop. Pending callbacks are dropped.
func (l *Loop) Halt() error {
	l.once.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
	return nil
}

type loopHandle struct {
	t       *time.Timer
	stopped atomic.Bool
}

func (h *loopHandle) Stop() bool {
	if h.t != nil {
		h.t.Stop()
	}
	return h.stopped.CompareAndSwap(false, true)
}

var _ Scheduler = &Loop{}
var _ EdgeWatcher = &Loop{}

// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dht22test is meant to be used to test drivers and programs using a
// dht22.Dev without a sensor attached.
//
// Clock replaces the scheduler with virtual time, Watcher replays scripted bit
// strings as falling edges and Pin records what the driver does to the data
// line.
package dht22test

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GermanBionicSystems/dht/common"
	"github.com/GermanBionicSystems/dht/dht22"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// Clock is a dht22.Scheduler running on virtual time. Callbacks only run
// from Advance, on the caller's goroutine.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*timer
}

// NewClock returns a Clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now implements dht22.Scheduler.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements dht22.Scheduler.
func (c *Clock) AfterFunc(d time.Duration, f func()) dht22.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &timer{c: c, when: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, running every callback that falls
// due in order, including the ones scheduled by the callbacks themselves.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].when.Equal(c.timers[j].when) {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].when.Before(c.timers[j].when)
		})
		if len(c.timers) == 0 || c.timers[0].when.After(end) {
			c.now = end
			c.mu.Unlock()
			return
		}
		t := c.timers[0]
		c.timers = c.timers[1:]
		t.done = true
		if t.when.After(c.now) {
			c.now = t.when
		}
		c.mu.Unlock()
		t.f()
	}
}

// Pending returns the number of callbacks waiting to run.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type timer struct {
	c    *Clock
	when time.Time
	seq  int
	f    func()
	done bool
}

func (t *timer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	for i, o := range t.c.timers {
		if o == t {
			t.c.timers = append(t.c.timers[:i], t.c.timers[i+1:]...)
			break
		}
	}
	return true
}

// Watcher is a dht22.EdgeWatcher replaying bit strings as falling edges.
type Watcher struct {
	// Script holds one bit string per Watch call. Each Watch consumes the
	// first entry and replays it immediately. Once Script is empty, Watch
	// replays nothing.
	Script []string
	// Zero and One are the high pulse widths of a 0 and a 1 bit. Default to
	// 26µs and 70µs.
	Zero, One time.Duration

	mu      sync.Mutex
	t       time.Time
	watches int
	active  *watch
}

// Watch implements dht22.EdgeWatcher.
func (w *Watcher) Watch(p gpio.PinIn, f func(dht22.Edge)) dht22.Handle {
	w.mu.Lock()
	w.watches++
	h := &watch{w: w, f: f}
	w.active = h
	var bits string
	if len(w.Script) != 0 {
		bits = w.Script[0]
		w.Script = w.Script[1:]
	}
	w.mu.Unlock()
	w.emit(h, bits)
	return h
}

// Emit replays bits on the active watch. It returns false if there is no
// active watch.
func (w *Watcher) Emit(bits string) bool {
	w.mu.Lock()
	h := w.active
	ok := h != nil && !h.stopped
	w.mu.Unlock()
	if !ok {
		return false
	}
	w.emit(h, bits)
	return true
}

// Watches returns the number of Watch calls so far.
func (w *Watcher) Watches() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watches
}

// Active reports whether the last watch is still running.
func (w *Watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active != nil && !w.active.stopped
}

func (w *Watcher) emit(h *watch, bits string) {
	zero, one := w.Zero, w.One
	if zero == 0 {
		zero = 26 * time.Microsecond
	}
	if one == 0 {
		one = 70 * time.Microsecond
	}
	for _, c := range bits {
		high := zero
		if c == '1' {
			high = one
		}
		w.mu.Lock()
		last := w.t
		w.t = w.t.Add(high)
		e := dht22.Edge{Time: w.t, LastTime: last}
		// 50µs low preamble of the next bit.
		w.t = w.t.Add(50 * time.Microsecond)
		stopped := h.stopped
		w.mu.Unlock()
		if stopped {
			return
		}
		h.f(e)
	}
}

type watch struct {
	w       *Watcher
	f       func(dht22.Edge)
	stopped bool
}

func (h *watch) Stop() bool {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	if h.stopped {
		return false
	}
	h.stopped = true
	return true
}

// Op is one call made on a Pin.
type Op struct {
	// Out is true for Out(Level), false for In(Pull, Edge).
	Out   bool
	Level gpio.Level
	Pull  gpio.Pull
	Edge  gpio.Edge
}

// Pin is a gpiotest.Pin that records the calls to Out and In.
type Pin struct {
	gpiotest.Pin
	// Ops lists Out and In calls in order.
	Ops []Op
	// Err, when set, is returned by Out and In.
	Err error
	// InErr, when set, is returned by In only.
	InErr error
}

// In implements gpio.PinIn.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.Lock()
	defer p.Unlock()
	p.Ops = append(p.Ops, Op{Pull: pull, Edge: edge})
	if p.Err != nil {
		return p.Err
	}
	if p.InErr != nil {
		return p.InErr
	}
	p.P = pull
	if pull == gpio.PullUp {
		p.L = gpio.High
	}
	return nil
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	p.Lock()
	defer p.Unlock()
	p.Ops = append(p.Ops, Op{Out: true, Level: l})
	if p.Err != nil {
		return p.Err
	}
	p.L = l
	return nil
}

// Encode returns the 40 bit frame the sensor sends for a
// humidity and a temperature expressed in tenths of %RH and °C.
func Encode(rhTenths, tTenths int) string {
	t := uint16(tTenths)
	if tTenths < 0 {
		t = uint16(-tTenths) | 0x8000
	}
	b := []byte{byte(rhTenths >> 8), byte(rhTenths), byte(t >> 8), byte(t)}
	b = append(b, byte(common.Sum(b)))
	var s strings.Builder
	for _, v := range b {
		fmt.Fprintf(&s, "%08b", v)
	}
	return s.String()
}

var _ dht22.Scheduler = &Clock{}
var _ dht22.EdgeWatcher = &Watcher{}
var _ gpio.PinIO = &Pin{}

// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht22

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// edgePin delivers the levels sent on edges as edges.
type edgePin struct {
	gpiotest.Pin
	edges chan gpio.Level
	level chan gpio.Level
}

func newEdgePin() *edgePin {
	return &edgePin{edges: make(chan gpio.Level), level: make(chan gpio.Level, 1)}
}

func (p *edgePin) WaitForEdge(timeout time.Duration) bool {
	select {
	case l := <-p.edges:
		p.level <- l
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *edgePin) Read() gpio.Level {
	return <-p.level
}

func TestLoop_AfterFunc(t *testing.T) {
	l := NewLoop()
	defer l.Halt()

	fired := make(chan int, 2)
	l.AfterFunc(time.Millisecond, func() { fired <- 1 })
	h := l.AfterFunc(5*time.Millisecond, func() { fired <- 2 })
	if !h.Stop() {
		t.Error("Stop() = false")
	}
	if h.Stop() {
		t.Error("second Stop() = true")
	}
	select {
	case v := <-fired:
		if v != 1 {
			t.Fatalf("stopped callback %d ran", v)
		}
	case <-time.After(time.Second):
		t.Fatal("callback did not run")
	}
	select {
	case v := <-fired:
		t.Fatalf("stopped callback %d ran", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLoop_sequential(t *testing.T) {
	l := NewLoop()
	defer l.Halt()

	// Unsynchronized on purpose, run with -race.
	n := 0
	done := make(chan struct{})
	for i := range 100 {
		l.AfterFunc(time.Duration(i%3)*time.Millisecond, func() {
			n++
			if n == 100 {
				close(done)
			}
		})
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callbacks did not run")
	}
}

func TestLoop_Watch(t *testing.T) {
	l := NewLoop()
	defer l.Halt()

	p := newEdgePin()
	got := make(chan Edge, 4)
	h := l.Watch(p, func(e Edge) { got <- e })

	for _, lvl := range []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low} {
		p.edges <- lvl
	}
	var edges []Edge
	for range 2 {
		select {
		case e := <-got:
			edges = append(edges, e)
		case <-time.After(time.Second):
			t.Fatalf("got %d edges, want 2", len(edges))
		}
	}
	for i, e := range edges {
		if e.Time.Before(e.LastTime) {
			t.Errorf("edge %d: Time %s before LastTime %s", i, e.Time, e.LastTime)
		}
	}
	if edges[1].LastTime.Before(edges[0].Time) {
		t.Errorf("second edge not measured from the rising edge after the first one")
	}

	if !h.Stop() {
		t.Error("Stop() = false")
	}
	if h.Stop() {
		t.Error("second Stop() = true")
	}
	select {
	case p.edges <- gpio.Low:
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case e := <-got:
		t.Errorf("edge %v delivered after Stop()", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLoop_Halt(t *testing.T) {
	l := NewLoop()
	if err := l.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := l.Halt(); err != nil {
		t.Fatal(err)
	}
	if l.Post(func() {}) {
		t.Error("Post() after Halt() = true")
	}
}

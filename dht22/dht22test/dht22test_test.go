// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht22test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"

	"github.com/GermanBionicSystems/dht/dht22"
)

func TestEncode(t *testing.T) {
	for _, tc := range []struct {
		rh, temp int
		want     string
	}{
		{652, 351, "0000001010001100000000010101111111101110"},
		{652, -101, "0000001010001100100000000110010101110011"},
	} {
		if got := Encode(tc.rh, tc.temp); got != tc.want {
			t.Errorf("Encode(%d, %d) = %s, want %s", tc.rh, tc.temp, got, tc.want)
		}
		r, err := dht22.Decode(Encode(tc.rh, tc.temp))
		if err != nil {
			t.Fatal(err)
		}
		if r.Humidity != float64(tc.rh)/10 || r.Temperature != float64(tc.temp)/10 {
			t.Errorf("Decode(Encode(%d, %d)) = %v", tc.rh, tc.temp, r)
		}
	}
}

func TestClock_Advance(t *testing.T) {
	c := NewClock(time.Unix(0, 0))
	var got []string
	c.AfterFunc(3*time.Millisecond, func() { got = append(got, "c") })
	c.AfterFunc(time.Millisecond, func() {
		got = append(got, "a")
		c.AfterFunc(time.Millisecond, func() { got = append(got, "b") })
	})
	c.AfterFunc(3*time.Millisecond, func() { got = append(got, "d") })
	c.AfterFunc(4*time.Millisecond, func() { got = append(got, "e") })

	c.Advance(3 * time.Millisecond)
	if diff := cmp.Diff(got, []string{"a", "b", "c", "d"}); diff != "" {
		t.Errorf("Advance() difference (-got +want):\n%s", diff)
	}
	if n := c.Pending(); n != 1 {
		t.Errorf("Pending() = %d, want 1", n)
	}
	if d := c.Now().Sub(time.Unix(0, 0)); d != 3*time.Millisecond {
		t.Errorf("Now() advanced by %s", d)
	}
}

func TestWatcher(t *testing.T) {
	w := &Watcher{Script: []string{"01"}}
	var bits []bool
	f := func(e dht22.Edge) { bits = append(bits, e.Time.Sub(e.LastTime) > 50*time.Microsecond) }
	h := w.Watch(&Pin{}, f)
	if !w.Emit("1") {
		t.Fatal("Emit() = false")
	}
	if diff := cmp.Diff(bits, []bool{false, true, true}); diff != "" {
		t.Errorf("edges difference (-got +want):\n%s", diff)
	}
	if !w.Active() || w.Watches() != 1 {
		t.Errorf("Active() = %t, Watches() = %d", w.Active(), w.Watches())
	}
	h.Stop()
	if w.Emit("1") || w.Active() {
		t.Error("watch still running after Stop()")
	}
	w.Watch(&Pin{}, f)
	if len(bits) != 3 {
		t.Errorf("empty script replayed %d edges", len(bits)-3)
	}
}

func TestPin(t *testing.T) {
	p := &Pin{}
	if err := p.Out(gpio.Low); err != nil {
		t.Fatal(err)
	}
	if err := p.In(gpio.PullUp, gpio.BothEdges); err != nil {
		t.Fatal(err)
	}
	want := []Op{{Out: true, Level: gpio.Low}, {Pull: gpio.PullUp, Edge: gpio.BothEdges}}
	if diff := cmp.Diff(p.Ops, want); diff != "" {
		t.Errorf("Ops difference (-got +want):\n%s", diff)
	}
	if p.Read() != gpio.High {
		t.Error("pull-up did not raise the line")
	}

	errIn := errors.New("no edge detection")
	p = &Pin{InErr: errIn}
	if err := p.Out(gpio.Low); err != nil {
		t.Fatal(err)
	}
	if err := p.In(gpio.PullUp, gpio.BothEdges); err != errIn {
		t.Errorf("In() = %v, want %v", err, errIn)
	}
}

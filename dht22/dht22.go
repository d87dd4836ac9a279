// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht22

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// State is the state of the read state machine.
type State int

const (
	// StateIdle means a new read can be started.
	StateIdle State = iota
	// StateReading means a read is in flight, possibly waiting for a retry.
	StateReading
)

func (s State) String() string {
	if s == StateReading {
		return "busy"
	}
	return "ready"
}

// Opts holds the configuration options for the device.
type Opts struct {
	// MaxAttempts is the number of physical reads made by a logical read
	// before giving up. Default is 10.
	MaxAttempts int
	// BitThreshold is the interval between two falling edges above which a
	// bit is a 1. Default is 50µs.
	BitThreshold time.Duration
	// StartPulse is how long the line is held low to request a measurement.
	// The datasheet asks for at least 1ms. Default is 2ms.
	StartPulse time.Duration
	// SampleWindow is how long edges are collected per attempt. Default is
	// 50ms.
	SampleWindow time.Duration
	// RetryDelay is the pause between two attempts. Default is 500ms.
	RetryDelay time.Duration
	// MinInterval is the sensor's minimum sampling interval. Reads requested
	// sooner than this after the last successful read return the cached
	// result. Default is 2s.
	MinInterval time.Duration
	// Scheduler and Watcher run the driver's callbacks. When either is nil
	// the Dev starts its own Loop, which is stopped by Halt.
	Scheduler Scheduler
	Watcher   EdgeWatcher
	// Logger receives debug traces of attempts. Default discards them.
	Logger logrus.FieldLogger
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{
	MaxAttempts:  10,
	BitThreshold: 50 * time.Microsecond,
	StartPulse:   2 * time.Millisecond,
	SampleWindow: 50 * time.Millisecond,
	RetryDelay:   500 * time.Millisecond,
	MinInterval:  2 * time.Second,
}

// Dev is a handle to a DHT22/AM2302 sensor on a single GPIO pin.
//
// ReadAsync and State must be called from the Scheduler's goroutine. Read,
// Sense and SenseContinuous may be called from any goroutine.
type Dev struct {
	pin   gpio.PinIO
	opts  Opts
	sched Scheduler
	watch EdgeWatcher
	log   logrus.FieldLogger
	loop  *Loop // owned, nil when the host supplied the scheduler

	// Only touched from scheduler callbacks.
	state       State
	bits        []byte
	attempts    int
	maxAttempts int
	pending     func(Reading)
	last        Reading
	lastRead    time.Time
	watching    Handle
	release     Handle
	stop        Handle
	retry       Handle

	mu       sync.Mutex
	done     chan struct{}
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New returns a driver for the sensor whose data line is wired to p. The
// Opts can be nil.
//
// The bus is not touched until the first read.
func New(p gpio.PinIO, opts *Opts) (*Dev, error) {
	if p == nil {
		return nil, errors.New("dht22: nil pin")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultOpts.MaxAttempts
	}
	if o.BitThreshold <= 0 {
		o.BitThreshold = DefaultOpts.BitThreshold
	}
	if o.StartPulse <= 0 {
		o.StartPulse = DefaultOpts.StartPulse
	}
	if o.SampleWindow <= 0 {
		o.SampleWindow = DefaultOpts.SampleWindow
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultOpts.RetryDelay
	}
	if o.MinInterval <= 0 {
		o.MinInterval = DefaultOpts.MinInterval
	}
	d := &Dev{
		pin:   p,
		opts:  o,
		sched: o.Scheduler,
		watch: o.Watcher,
		log:   o.Logger,
		last:  failedReading("", nil),
		bits:  make([]byte, 0, 2*FrameBits),
		done:  make(chan struct{}),
	}
	if d.sched == nil || d.watch == nil {
		d.loop = NewLoop()
		if d.sched == nil {
			d.sched = d.loop
		}
		if d.watch == nil {
			d.watch = d.loop
		}
	}
	if d.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		d.log = l
	}
	d.log = d.log.WithField("pin", p.String())
	return d, nil
}

// State returns StateIdle when a read can be started and StateReading while
// one is in flight.
func (d *Dev) State() State {
	return d.state
}

// ReadAsync starts a logical read and returns immediately. cb is called
// exactly once, from the scheduler, with the result.
//
// A read requested while another one is in flight is rejected with ErrBusy.
// A read requested within MinInterval of the last successful one returns the
// cached result without touching the bus. A read that gave up does not start
// that interval. maxAttempts <= 0 selects
// Opts.MaxAttempts.
func (d *Dev) ReadAsync(cb func(Reading), maxAttempts int) {
	if d.state == StateReading {
		r := failedReading("", ErrBusy)
		r.Attempts = d.attempts
		cb(r)
		return
	}
	if !d.lastRead.IsZero() && d.sched.Now().Sub(d.lastRead) < d.opts.MinInterval {
		r := d.last
		r.Attempts = d.attempts
		cb(r)
		return
	}
	if maxAttempts <= 0 {
		maxAttempts = d.opts.MaxAttempts
	}
	d.state = StateReading
	d.pending = cb
	d.attempts = 0
	d.maxAttempts = maxAttempts
	d.startAttempt()
}

// startAttempt pulses the bus and starts collecting edges.
func (d *Dev) startAttempt() {
	d.retry = nil
	d.attempts++
	d.bits = d.bits[:0]
	d.log.WithField("attempt", d.attempts).Debug("dht22: start")

	if err := d.pin.Out(gpio.Low); err != nil {
		d.attemptFailed(failedReading("", fmt.Errorf("dht22: start pulse: %w", err)))
		return
	}
	d.release = d.sched.AfterFunc(d.opts.StartPulse, d.releaseBus)
	d.stop = d.sched.AfterFunc(d.opts.SampleWindow, d.sampled)
}

// releaseBus hands the line back to the pull-up so the sensor can answer and
// starts collecting edges once the pin reports them. If In fails nothing is
// collected and the attempt fails when its window ends.
func (d *Dev) releaseBus() {
	d.release = nil
	if err := d.pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		d.log.WithError(err).Debug("dht22: release")
		return
	}
	d.watching = d.watch.Watch(d.pin, d.onEdge)
}

// onEdge runs once per falling edge and must stay cheap.
func (d *Dev) onEdge(e Edge) {
	if e.Time.Sub(e.LastTime) > d.opts.BitThreshold {
		d.bits = append(d.bits, '1')
	} else {
		d.bits = append(d.bits, '0')
	}
}

// sampled ends the sampling window of an attempt.
func (d *Dev) sampled() {
	d.stop = nil
	d.cancel()
	r, err := Decode(string(d.bits))
	if err != nil {
		d.attemptFailed(r)
		return
	}
	d.log.WithFields(logrus.Fields{"attempt": d.attempts, "humidity": r.Humidity, "temperature": r.Temperature}).Debug("dht22: read")
	d.finish(r)
}

func (d *Dev) attemptFailed(r Reading) {
	if d.attempts >= d.maxAttempts {
		d.log.WithFields(logrus.Fields{"attempt": d.attempts, "raw": r.Raw}).WithError(r.Err).Debug("dht22: giving up")
		d.finish(r)
		return
	}
	d.log.WithFields(logrus.Fields{"attempt": d.attempts, "raw": r.Raw}).WithError(r.Err).Debug("dht22: retry")
	d.retry = d.sched.AfterFunc(d.opts.RetryDelay, d.startAttempt)
}

// cancel stops every pending callback of the in-flight read. It is safe to
// call with handles that already fired.
func (d *Dev) cancel() {
	for _, h := range []*Handle{&d.watching, &d.release, &d.stop, &d.retry} {
		if *h != nil {
			(*h).Stop()
			*h = nil
		}
	}
}

func (d *Dev) finish(r Reading) {
	d.cancel()
	r.Attempts = d.attempts
	d.state = StateIdle
	d.last = r
	if r.Err == nil {
		d.lastRead = d.sched.Now()
	}
	cb := d.pending
	d.pending = nil
	d.attempts = 0
	cb(r)
}

// Read performs a logical read with Opts.MaxAttempts attempts and waits for
// its result. The returned error is Reading.Err, ctx.Err() or ErrHalted.
//
// Cancelling ctx does not abort the read on the bus.
func (d *Dev) Read(ctx context.Context) (Reading, error) {
	select {
	case <-d.done:
		return failedReading("", ErrHalted), ErrHalted
	default:
	}
	ch := make(chan Reading, 1)
	d.sched.AfterFunc(0, func() {
		d.ReadAsync(func(r Reading) { ch <- r }, d.opts.MaxAttempts)
	})
	select {
	case r := <-ch:
		return r, r.Err
	case <-ctx.Done():
		return failedReading("", ctx.Err()), ctx.Err()
	case <-d.done:
		return failedReading("", ErrHalted), ErrHalted
	}
}

// Sense implements physic.SenseEnv. The pressure is always 0.
func (d *Dev) Sense(e *physic.Env) error {
	e.Temperature = 0
	e.Pressure = 0
	e.Humidity = 0
	r, err := d.Read(context.Background())
	if err != nil {
		return err
	}
	e.Humidity = physic.RelativeHumidity(math.Round(r.Humidity*10)) * physic.MilliRH
	e.Temperature = physic.ZeroCelsius + (physic.Celsius/10)*physic.Temperature(math.Round(r.Temperature*10))
	return nil
}

// SenseContinuous implements physic.SenseEnv. The sensor can't be sampled
// more often than every 2 seconds. Failed reads are skipped. Call Halt to
// stop.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < 2*time.Second {
		return nil, errors.New("dht22: invalid duration. minimum 2 seconds")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.done:
		return nil, ErrHalted
	default:
	}
	if d.shutdown != nil {
		return nil, errors.New("dht22: sense continuous already running")
	}
	d.shutdown = make(chan struct{})
	shutdown := d.shutdown
	ch := make(chan physic.Env, 16)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				return
			case <-ticker.C:
				e := physic.Env{}
				if err := d.Sense(&e); err != nil {
					d.log.WithError(err).Debug("dht22: sense")
					continue
				}
				select {
				case ch <- e:
				case <-shutdown:
					return
				}
			}
		}
	}()
	return ch, nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = physic.Celsius / 10
	e.Pressure = 0
	e.Humidity = physic.MilliRH
}

// Halt stops a running SenseContinuous() and, when the Dev runs its own
// Loop, stops the loop. Reads still in flight are abandoned.
func (d *Dev) Halt() error {
	d.mu.Lock()
	if d.shutdown != nil {
		close(d.shutdown)
		d.shutdown = nil
	}
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	d.mu.Unlock()
	d.wg.Wait()
	if d.loop != nil {
		return d.loop.Halt()
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("dht22{%s}", d.pin)
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}

// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht22

import (
	"fmt"

	"github.com/GermanBionicSystems/dht/common"
)

// FrameBits is the number of data and checksum bits sent by the sensor per
// measurement.
const FrameBits = 40

// invalid is reported for humidity and temperature of failed readings.
const invalid = -1

// Reading is the result of one logical read.
//
// Humidity is in %RH and Temperature in °C, both with a resolution of 0.1.
// On error both are -1 and Err is set.
type Reading struct {
	Humidity    float64
	Temperature float64
	// Raw is the bit string the reading was decoded from, '0' and '1' only.
	Raw string
	// Err is nil on success, or one of ErrBusy, ErrInsufficientData,
	// ErrChecksumMismatch or a wrapped GPIO error.
	Err error
	// Attempts is the number of physical bus reads used to get the result.
	Attempts int
}

func (r Reading) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%v after %d attempt(s)", r.Err, r.Attempts)
	}
	return fmt.Sprintf("%.1f%%RH %.1f°C", r.Humidity, r.Temperature)
}

func failedReading(raw string, err error) Reading {
	return Reading{Humidity: invalid, Temperature: invalid, Raw: raw, Err: err}
}

// Decode converts the bits observed on the data line into a Reading.
//
// Only the trailing FrameBits bits are significant; anything before them is
// the sensor's start sequence. Within those 40 bits, humidity is the unsigned
// value of bits [0,16) and temperature the unsigned value of bits [17,32),
// each counting 0.1 %RH or 0.1 °C. Bit 16 is the temperature sign, set for
// below zero. Bits [32,40) hold the checksum, the low byte of the sum of the
// four bytes at bits 0, 8, 16 and 24.
//
// The returned Reading carries the raw frame in both the success and the
// failure case.
func Decode(bits string) (Reading, error) {
	for i := 0; i < len(bits); i++ {
		if bits[i] != '0' && bits[i] != '1' {
			r := failedReading(bits, ErrInvalidFrame)
			return r, r.Err
		}
	}
	if len(bits) < FrameBits {
		r := failedReading(bits, ErrInsufficientData)
		return r, r.Err
	}
	d := bits[len(bits)-FrameBits:]

	var b [4]byte
	for i := range b {
		b[i] = byte(field(d, 8*i, 8))
	}
	if !common.Checksum8(b[:], byte(field(d, 32, 8))) {
		r := failedReading(d, ErrChecksumMismatch)
		return r, r.Err
	}

	t := float64(field(d, 17, 15)) / 10
	if d[16] == '1' {
		t = -t
	}
	return Reading{
		Humidity:    float64(field(d, 0, 16)) / 10,
		Temperature: t,
		Raw:         d,
	}, nil
}

// field returns the big-endian unsigned value of bits [off, off+n).
func field(bits string, off, n int) uint {
	var v uint
	for _, c := range bits[off : off+n] {
		v = v<<1 | uint(c-'0')
	}
	return v
}

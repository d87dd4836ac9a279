// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht22

import "errors"

var (
	// ErrBusy is reported when a read is requested while another one is in
	// flight. It does not consume an attempt.
	ErrBusy = errors.New("dht22: sensor busy")
	// ErrInsufficientData is reported when fewer bits than a full frame were
	// observed during the sampling window.
	ErrInsufficientData = errors.New("dht22: insufficient data")
	// ErrChecksumMismatch is reported when a full frame was observed but its
	// checksum byte does not match the data.
	ErrChecksumMismatch = errors.New("dht22: checksum mismatch")
	// ErrInvalidFrame is returned by Decode for input that is not a bit
	// string.
	ErrInvalidFrame = errors.New("dht22: invalid frame")
	// ErrHalted is returned by Read once the device has been halted.
	ErrHalted = errors.New("dht22: halted")
)

// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, the additive checksum used by single-wire AOSONG sensors.
package common

// Sum returns the plain arithmetic sum of the byte slice parameter. DHT22 and
// AM2302 sensors transmit the low byte of this sum as their checksum.
//
// The full sum is returned so callers can tell an all-zero frame apart from a
// sum that wrapped to zero.
func Sum(bytes []byte) uint {
	var sum uint
	for _, val := range bytes {
		sum += uint(val)
	}
	return sum
}

// Checksum8 reports whether check matches the low byte of Sum(bytes). A zero
// sum never matches, since an idle line reads as all zeros.
func Checksum8(bytes []byte, check byte) bool {
	sum := Sum(bytes)
	return sum != 0 && byte(sum&0xff) == check
}

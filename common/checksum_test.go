// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "testing"

func TestSum(t *testing.T) {
	var tests = []struct {
		bytes  []byte
		result uint
	}{
		{bytes: nil, result: 0},
		{bytes: []byte{0x02, 0x8c, 0x01, 0x5f}, result: 0xee},
		{bytes: []byte{0xff, 0xff, 0xff, 0xff}, result: 0x3fc},
	}
	for _, test := range tests {
		res := Sum(test.bytes)
		if res != test.result {
			t.Errorf("Sum(%#v)!=%#x received %#x", test.bytes, test.result, res)
		}
	}
}

func TestChecksum8(t *testing.T) {
	var tests = []struct {
		bytes []byte
		check byte
		ok    bool
	}{
		{bytes: []byte{0x02, 0x8c, 0x01, 0x5f}, check: 0xee, ok: true},
		{bytes: []byte{0x02, 0x8c, 0x01, 0x5f}, check: 0xef, ok: false},
		// Wrapped sums compare on the low byte only.
		{bytes: []byte{0x80, 0x80, 0x00, 0x00}, check: 0x00, ok: true},
		{bytes: []byte{0x00, 0x00, 0x00, 0x00}, check: 0x00, ok: false},
	}
	for _, test := range tests {
		if ok := Checksum8(test.bytes, test.check); ok != test.ok {
			t.Errorf("Checksum8(%#v, %#x)=%t expected %t", test.bytes, test.check, ok, test.ok)
		}
	}
}

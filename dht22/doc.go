// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dht22 controls a DHT22 (AM2302) temperature and humidity sensor
// over its single-wire, pulse-width encoded bus.
//
// The host pulls the data line low to request a measurement, then releases
// it. The sensor answers with 40 bits, each one a 50µs low pulse followed by
// a high pulse of 26µs for a 0 or 70µs for a 1. The driver measures the high
// pulse ending at every falling edge, keeps the last 40 bits seen during a
// 50ms window and validates them with the additive checksum.
//
// Reads are asynchronous: ReadAsync returns immediately and reports through a
// callback run on the Scheduler. Failed attempts are retried every 500ms.
// Read and Sense wrap it for blocking callers. The dht22.Dev type implements
// the physic.SenseEnv interface; pressure is not measured.
//
// # Datasheet
//
// https://cdn-shop.adafruit.com/datasheets/Digital+humidity+and+temperature+sensor+AM2302.pdf
package dht22

// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dht is a container for the DHT22/AM2302 single-wire
// humidity/temperature driver and its tooling.
//
// See the dht22 package for the driver itself.
package dht

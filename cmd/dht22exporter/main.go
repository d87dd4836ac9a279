// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// dht22exporter reads a DHT22 sensor periodically and exposes the readings
// as Prometheus gauges.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/dht/dht22"
)

// CLI args
var (
	pinName      = flag.String("pin", "GPIO4", "GPIO pin the sensor's data line is wired to")
	listenAddr   = flag.String("listen-address", ":8080", "The address to listen on for HTTP requests.")
	readInterval = flag.Duration("read-int", 30*time.Second, "time interval between sensor reads")
	attempts     = flag.Int("attempts", dht22.DefaultOpts.MaxAttempts, "max number of bus reads per sensor read")
	verbose      = flag.Bool("v", false, "log every bus attempt")
)

// metrics to expose to Prometheus
var (
	gaugeHumidity    = newGauge("air_humidity", "Humidity (units: % of relative Humidity)")
	gaugeTemperature = newGauge("air_temperature", "Air Temperature (units: degrees Celsius)")
	counterReads     = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dht22_reads_total",
			Help: "Sensor reads by outcome",
		},
		[]string{"pin", "outcome"},
	)
	counterAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dht22_attempts_total",
			Help: "Physical bus reads",
		},
		[]string{"pin"},
	)
)

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"pin"},
	)
}

func init() {
	prometheus.MustRegister(gaugeHumidity)
	prometheus.MustRegister(gaugeTemperature)
	prometheus.MustRegister(counterReads)
	prometheus.MustRegister(counterAttempts)

	// Add Go module build info.
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())

	//logging
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
}

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if err := mainImpl(); err != nil {
		log.Fatal(err)
	}
}

func mainImpl() error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize periph")
	}
	p := gpioreg.ByName(*pinName)
	if p == nil {
		return errors.Errorf("unknown pin %q", *pinName)
	}

	opts := dht22.DefaultOpts
	opts.MaxAttempts = *attempts
	opts.Logger = log.StandardLogger()
	d, err := dht22.New(p, &opts)
	if err != nil {
		return errors.Wrap(err, "failed to open sensor")
	}
	defer d.Halt()

	go func() {
		// Expose the registered metrics via HTTP.
		http.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				// Opt into OpenMetrics to support exemplars.
				EnableOpenMetrics: true,
			},
		))
		log.Panic(http.ListenAndServe(*listenAddr, nil))
	}()
	log.Infof("reading %s every %s, metrics on %s", d, *readInterval, *listenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ticker := time.NewTicker(*readInterval)
	defer ticker.Stop()
	for {
		readOnce(ctx, d, p.Name())
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readOnce(ctx context.Context, d *dht22.Dev, pin string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	r, err := d.Read(ctx)
	counterAttempts.WithLabelValues(pin).Add(float64(r.Attempts))
	if err != nil {
		counterReads.WithLabelValues(pin, outcome(err)).Inc()
		// Drop the gauges so a dead sensor shows as missing data points.
		gaugeHumidity.DeleteLabelValues(pin)
		gaugeTemperature.DeleteLabelValues(pin)
		log.WithField("raw", r.Raw).Errorf("failed to read from sensor on %s: %s", pin, errors.Wrapf(err, "after %d attempt(s)", r.Attempts))
		return
	}
	counterReads.WithLabelValues(pin, outcome(nil)).Inc()
	gaugeHumidity.WithLabelValues(pin).Set(r.Humidity)
	gaugeTemperature.WithLabelValues(pin).Set(r.Temperature)
	log.WithFields(log.Fields{"humidity": r.Humidity, "temperature": r.Temperature, "attempts": r.Attempts}).Info("received")
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dht22.ErrBusy):
		return "busy"
	case errors.Is(err, dht22.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, dht22.ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

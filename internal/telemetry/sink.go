// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry delivers pipeline output to the outside world.
package telemetry

import (
	"go.uber.org/multierr"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// Sink receives one record per cycle.
type Sink interface {
	Emit(rec imu.OutputRecord, raw imu.RawSample) error
	Close() error
}

// Multi fans each record out to every sink. A failing sink does not stop
// delivery to the others.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(rec imu.OutputRecord, raw imu.RawSample) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Emit(rec, raw))
	}
	return err
}

// Close implements Sink.
func (m Multi) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUncalibrated is returned when a cycle is requested before the bias has
// been computed.
var ErrUncalibrated = errors.New("pipeline is not calibrated")

// BusError is a transport level failure talking to a device register.
type BusError struct {
	Addr     uint16
	Register byte
	Op       string // "read", "write" or "read_block"
	Err      error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus %s 0x%02X@0x%02X: %v", e.Op, e.Register, e.Addr, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// AcquisitionError is a bus failure that happened while reading a sample
// needed by calibration or by a cycle.
type AcquisitionError struct {
	Phase  string // "calibration" or "cycle"
	Sample int    // index of the failed read within the phase
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Phase == "calibration" {
		return fmt.Sprintf("acquisition failed during calibration at sample %d: %v", e.Sample, e.Err)
	}
	return fmt.Sprintf("acquisition failed during %s: %v", e.Phase, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// EstimationError reports an accelerometer vector with zero magnitude, for
// which roll and pitch are undefined.
type EstimationError struct {
	Sample CorrectedSample
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("cannot estimate attitude from zero-magnitude accel vector (ax=%d ay=%d az=%d)",
		e.Sample.Ax, e.Sample.Ay, e.Sample.Az)
}

// IsTransient reports whether err is a read failure worth retrying on the
// next cycle.
func IsTransient(err error) bool {
	var acq *AcquisitionError
	return errors.As(err, &acq)
}

// IsEstimation reports whether err means the attitude is undefined for
// the current sample.
func IsEstimation(err error) bool {
	var est *EstimationError
	return errors.As(err, &est)
}

// IsUncalibrated reports whether err means calibration has not completed.
func IsUncalibrated(err error) bool {
	return errors.Is(err, ErrUncalibrated)
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// Bus performs addressed register transfers on a two-wire bus.
// Implementations return *imu.BusError on failure and block until the
// transfer completes; any timeout is the implementation's concern.
type Bus interface {
	WriteRegister(addr uint16, reg, value byte) error
	ReadRegister(addr uint16, reg byte) (byte, error)
	ReadBlock(addr uint16, reg byte, n int) ([]byte, error)
}

// RawReader is anything that can produce raw samples.
type RawReader interface {
	ReadRaw() (imu.RawSample, error)
}

func busErr(addr uint16, reg byte, op string, err error) error {
	if err == nil {
		return nil
	}
	return &imu.BusError{Addr: addr, Register: reg, Op: op, Err: err}
}

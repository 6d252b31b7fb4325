// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// MPU6050 drives an MPU-6050 accelerometer/gyroscope over a Bus.
type MPU6050 struct {
	bus    Bus
	addr   uint16
	logger golog.Logger
}

// NewMPU6050 returns a device handle. No bus traffic happens until Init.
func NewMPU6050(bus Bus, addr uint16, logger golog.Logger) *MPU6050 {
	return &MPU6050{bus: bus, addr: addr, logger: logger}
}

// Addr is the device's I2C address.
func (d *MPU6050) Addr() uint16 {
	return d.addr
}

// Init wakes the device and programs the accelerometer and gyroscope
// full-scale ranges. The register sequence must not change: the chip
// starts asleep and FS_SEL lives in bits 4:3 of each config register.
func (d *MPU6050) Init(scale imu.ScaleConfig) error {
	if err := d.bus.WriteRegister(d.addr, RegPwrMgmt1, 0); err != nil {
		return errors.Wrap(err, "wake device")
	}
	if err := d.setFullScale(RegAccelConfig, scale.AccelRange); err != nil {
		return errors.Wrap(err, "set accel range")
	}
	d.logger.Infof("mpu6050: accelerometer range set to %d (±%.0fg)", scale.AccelRange, scale.AccelFullScaleG())

	if err := d.setFullScale(RegGyroConfig, scale.GyroRange); err != nil {
		return errors.Wrap(err, "set gyro range")
	}
	d.logger.Infof("mpu6050: gyroscope range set to %d (±%.0f°/s)", scale.GyroRange, scale.GyroFullScaleDPS())
	return nil
}

// setFullScale does a read-modify-write of bits 4:3.
func (d *MPU6050) setFullScale(reg, sel byte) error {
	if sel > 3 {
		return errors.Errorf("full-scale selector must be 0-3, got %d", sel)
	}
	cur, err := d.bus.ReadRegister(d.addr, reg)
	if err != nil {
		return err
	}
	return d.bus.WriteRegister(d.addr, reg, (cur&fullScaleMask)|(sel<<3))
}

// WhoAmI reads the identity register. A genuine MPU-6050 answers 0x68.
func (d *MPU6050) WhoAmI() (byte, error) {
	return d.bus.ReadRegister(d.addr, RegWhoAmI)
}

// ReadRaw fetches the accel/temp/gyro block in a single transaction.
func (d *MPU6050) ReadRaw() (imu.RawSample, error) {
	block, err := d.bus.ReadBlock(d.addr, RegAccelXoutH, imu.BlockSize)
	if err != nil {
		return imu.RawSample{}, err
	}
	s, err := imu.DecodeRawSample(block)
	if err != nil {
		return imu.RawSample{}, &imu.BusError{Addr: d.addr, Register: RegAccelXoutH, Op: "read_block", Err: err}
	}
	return s, nil
}

// Sleep sets the SLEEP bit in PWR_MGMT_1.
func (d *MPU6050) Sleep() error {
	return errors.Wrap(d.bus.WriteRegister(d.addr, RegPwrMgmt1, sleepBit), "put device to sleep")
}

// ReadRegister reads one register, for the debug tool.
func (d *MPU6050) ReadRegister(reg byte) (byte, error) {
	return d.bus.ReadRegister(d.addr, reg)
}

// WriteRegister writes one register, for the debug tool.
func (d *MPU6050) WriteRegister(reg, value byte) error {
	return d.bus.WriteRegister(d.addr, reg, value)
}

// ReadAllRegisters reads every register listed in RegisterMap.
// Individual failures are skipped; the first one is returned alongside
// whatever was read.
func (d *MPU6050) ReadAllRegisters() (map[byte]byte, error) {
	out := make(map[byte]byte)
	var firstErr error
	for _, r := range RegisterMap() {
		v, err := d.bus.ReadRegister(d.addr, r.Address)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[r.Address] = v
	}
	return out, firstErr
}

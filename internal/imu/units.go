// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"

	"github.com/pkg/errors"
)

// StandardGravity in m/s².
const StandardGravity = 9.80665

// fullScaleCounts is the magnitude of the most negative 16-bit code.
const fullScaleCounts = 32768

// DefaultCalibrationSamples is the number of resting samples averaged at startup.
const DefaultCalibrationSamples = 1000

var (
	accelFullScaleG  = [4]float64{2, 4, 8, 16}
	gyroFullScaleDPS = [4]float64{250, 500, 1000, 2000}
)

// ScaleConfig holds the constants used to convert raw codes to units.
// It is configuration, never runtime state.
type ScaleConfig struct {
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	GyroRange byte

	Gravity            float64 // m/s²
	CalibrationSamples int
}

// DefaultScaleConfig returns ±2g, ±500°/s, standard gravity and 1000
// calibration samples.
func DefaultScaleConfig() ScaleConfig {
	return ScaleConfig{
		AccelRange:         0,
		GyroRange:          1,
		Gravity:            StandardGravity,
		CalibrationSamples: DefaultCalibrationSamples,
	}
}

// Validate checks ranges and the sample count.
func (c ScaleConfig) Validate() error {
	if c.AccelRange > 3 {
		return errors.Errorf("accel range must be 0-3, got %d", c.AccelRange)
	}
	if c.GyroRange > 3 {
		return errors.Errorf("gyro range must be 0-3, got %d", c.GyroRange)
	}
	if c.Gravity <= 0 {
		return errors.Errorf("gravity must be positive, got %v", c.Gravity)
	}
	if c.CalibrationSamples < 1 {
		return errors.Errorf("calibration samples must be at least 1, got %d", c.CalibrationSamples)
	}
	return nil
}

// AccelFullScaleG is the configured accelerometer range in g.
func (c ScaleConfig) AccelFullScaleG() float64 {
	return accelFullScaleG[c.AccelRange&0x03]
}

// GyroFullScaleDPS is the configured gyroscope range in °/s.
func (c ScaleConfig) GyroFullScaleDPS() float64 {
	return gyroFullScaleDPS[c.GyroRange&0x03]
}

// RestingGravityOffset is the raw code for 1 g at the configured range
// (16384 at ±2g). Calibration adds it to the Z bias.
func (c ScaleConfig) RestingGravityOffset() int32 {
	return int32(fullScaleCounts / c.AccelFullScaleG())
}

// AngularRate converts a raw gyro code to °/s.
func (c ScaleConfig) AngularRate(raw int32) float64 {
	return c.GyroFullScaleDPS() * float64(raw) / fullScaleCounts
}

// Acceleration converts a raw accel code to m/s².
// The sensor reports with inverted polarity, hence the negative divisor.
func (c ScaleConfig) Acceleration(raw int32) float64 {
	return c.AccelFullScaleG() * c.Gravity * float64(raw) / -fullScaleCounts
}

// Temperature converts the raw die temperature code to °C.
func (c ScaleConfig) Temperature(raw int32) float64 {
	return float64(raw)/340.0 + 36.53
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

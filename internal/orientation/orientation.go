// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation derives static roll and pitch from the gravity
// vector seen by a bias-corrected accelerometer. It is only meaningful
// while the sensor feels no acceleration other than gravity.
package orientation

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// Pose is roll and pitch in radians.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// Degrees returns the pose converted to degrees.
func (p Pose) Degrees() Pose {
	return Pose{Roll: imu.RadToDeg(p.Roll), Pitch: imu.RadToDeg(p.Pitch)}
}

func accelVector(s imu.CorrectedSample) r3.Vector {
	return r3.Vector{X: float64(s.Ax), Y: float64(s.Ay), Z: float64(s.Az)}
}

// tiltFrom returns acos(projected/norm), the angle between the full
// vector and its projection onto a plane.
func tiltFrom(projected, norm float64) float64 {
	// rounding can push the ratio a hair above 1
	return math.Acos(math.Min(1, projected/norm))
}

// Roll is the angle between the accel vector and the XZ plane,
// negative when y > 0.
func Roll(s imu.CorrectedSample) (float64, error) {
	v := accelVector(s)
	norm := v.Norm()
	if norm == 0 {
		return 0, &imu.EstimationError{Sample: s}
	}
	roll := tiltFrom(math.Hypot(v.X, v.Z), norm)
	if v.Y > 0 {
		roll = -roll
	}
	return roll, nil
}

// Pitch is the angle between the accel vector and the YZ plane,
// negative when x < 0.
func Pitch(s imu.CorrectedSample) (float64, error) {
	v := accelVector(s)
	norm := v.Norm()
	if norm == 0 {
		return 0, &imu.EstimationError{Sample: s}
	}
	pitch := tiltFrom(math.Hypot(v.Y, v.Z), norm)
	if v.X < 0 {
		pitch = -pitch
	}
	return pitch, nil
}

// Estimate computes roll and pitch together.
func Estimate(s imu.CorrectedSample) (Pose, error) {
	roll, err := Roll(s)
	if err != nil {
		return Pose{}, err
	}
	pitch, err := Pitch(s)
	if err != nil {
		return Pose{}, err
	}
	return Pose{Roll: roll, Pitch: pitch}, nil
}

// EstimateAtan2 is Estimate using atan2, which keeps full precision near
// ±90° where acos loses it. Signs match Roll and Pitch.
func EstimateAtan2(s imu.CorrectedSample) (Pose, error) {
	v := accelVector(s)
	if v.Norm() == 0 {
		return Pose{}, &imu.EstimationError{Sample: s}
	}
	return Pose{
		Roll:  math.Atan2(-v.Y, math.Hypot(v.X, v.Z)),
		Pitch: math.Atan2(v.X, math.Hypot(v.Y, v.Z)),
	}, nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline runs one acquisition cycle at a time:
// read, remove bias, estimate attitude, convert units.
//
// A State is calibrated exactly once and then only read, so cycles need
// no locking as long as calibration finishes before the first cycle starts.
package pipeline

import (
	"github.com/pkg/errors"

	"github.com/relabs-tech/tilt_computer/internal/calibration"
	"github.com/relabs-tech/tilt_computer/internal/imu"
	"github.com/relabs-tech/tilt_computer/internal/orientation"
)

// ErrAlreadyCalibrated is returned by a second Calibrate call.
var ErrAlreadyCalibrated = errors.New("pipeline is already calibrated")

// SampleReader yields one raw sample per call.
type SampleReader = calibration.SampleReader

// Estimator turns a corrected sample into roll and pitch in radians.
type Estimator func(imu.CorrectedSample) (orientation.Pose, error)

// State owns the bias for the lifetime of the process.
type State struct {
	scale      imu.ScaleConfig
	estimate   Estimator
	bias       imu.BiasVector
	calibrated bool
}

// NewState returns an uncalibrated pipeline using orientation.Estimate.
func NewState(scale imu.ScaleConfig) *State {
	return &State{scale: scale, estimate: orientation.Estimate}
}

// SetEstimator replaces the orientation estimator. Call it before the
// first cycle.
func (s *State) SetEstimator(e Estimator) {
	s.estimate = e
}

// Scale returns the conversion constants in use.
func (s *State) Scale() imu.ScaleConfig {
	return s.scale
}

// Calibrate computes the bias from src. On failure the state stays
// uncalibrated and may be calibrated again.
func (s *State) Calibrate(src SampleReader) error {
	_, err := s.CalibrateWithStats(src)
	return err
}

// CalibrateWithStats is Calibrate returning the spread of the samples used.
func (s *State) CalibrateWithStats(src SampleReader) (calibration.Stats, error) {
	if s.calibrated {
		return calibration.Stats{}, ErrAlreadyCalibrated
	}
	bias, stats, err := calibration.CalibrateWithStats(src, s.scale)
	if err != nil {
		return calibration.Stats{}, err
	}
	s.bias = bias
	s.calibrated = true
	return stats, nil
}

// Bias returns the bias and whether calibration has completed.
func (s *State) Bias() (imu.BiasVector, bool) {
	return s.bias, s.calibrated
}

// Calibrated reports whether cycles may run.
func (s *State) Calibrated() bool {
	return s.calibrated
}

// Cycle is everything computed during one cycle.
type Cycle struct {
	Raw       imu.RawSample       `json:"raw"`
	Corrected imu.CorrectedSample `json:"corrected"`
	Record    imu.OutputRecord    `json:"record"`

	GyroDPS      [3]float64 `json:"gyro_dps"`
	TemperatureC float64    `json:"temperature_c"`
}

// RunCycle reads one sample and turns it into an OutputRecord.
func (s *State) RunCycle(src SampleReader) (imu.OutputRecord, error) {
	c, err := s.RunCycleDetailed(src)
	if err != nil {
		return imu.OutputRecord{}, err
	}
	return c.Record, nil
}

// RunCycleDetailed is RunCycle keeping the intermediate values.
// Errors: imu.ErrUncalibrated before calibration, *imu.AcquisitionError
// when the read fails, *imu.EstimationError for a zero accel vector.
func (s *State) RunCycleDetailed(src SampleReader) (Cycle, error) {
	if !s.calibrated {
		return Cycle{}, imu.ErrUncalibrated
	}

	raw, err := src.ReadRaw()
	if err != nil {
		return Cycle{}, &imu.AcquisitionError{Phase: "cycle", Err: err}
	}

	corrected := imu.Correct(raw, s.bias)
	pose, err := s.estimate(corrected)
	if err != nil {
		return Cycle{Raw: raw, Corrected: corrected}, err
	}

	sc := s.scale
	deg := pose.Degrees()
	return Cycle{
		Raw:       raw,
		Corrected: corrected,
		Record: imu.OutputRecord{
			Ax:    sc.Acceleration(corrected.Ax),
			Ay:    sc.Acceleration(corrected.Ay),
			Az:    sc.Acceleration(corrected.Az),
			Roll:  deg.Roll,
			Pitch: deg.Pitch,
		},
		GyroDPS: [3]float64{
			sc.AngularRate(corrected.Gx),
			sc.AngularRate(corrected.Gy),
			sc.AngularRate(corrected.Gz),
		},
		TemperatureC: sc.Temperature(raw.Temp),
	}, nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration computes the resting bias of the sensor.
//
// The device must be stationary and level for the whole run. Nothing here
// can verify that; Stats.Stillness gives the caller a hint afterwards.
package calibration

import (
	"math"

	"github.com/pkg/errors"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// SampleReader yields one raw sample per call.
type SampleReader interface {
	ReadRaw() (imu.RawSample, error)
}

// Quality thresholds on per-channel standard deviation, in raw counts.
const (
	stillStdGood = 3.0
	stillStdBad  = 12.0
	confFloor    = 0.05
)

// Stats summarizes the samples behind a bias.
type Stats struct {
	Samples   int                      `json:"samples"`
	Mean      [imu.NumChannels]float64 `json:"mean"`
	StdDev    [imu.NumChannels]float64 `json:"stddev"`
	Min       [imu.NumChannels]int32   `json:"min"`
	Max       [imu.NumChannels]int32   `json:"max"`
	Stillness float64                  `json:"stillness"` // 0..1
}

// Calibrate averages scale.CalibrationSamples readings into a BiasVector
// and adds the resting gravity offset to the Z accel channel.
// A failed read aborts the whole run with an *imu.AcquisitionError.
func Calibrate(src SampleReader, scale imu.ScaleConfig) (imu.BiasVector, error) {
	bias, _, err := run(src, scale, false)
	return bias, err
}

// CalibrateWithStats is Calibrate plus spread statistics.
func CalibrateWithStats(src SampleReader, scale imu.ScaleConfig) (imu.BiasVector, Stats, error) {
	return run(src, scale, true)
}

func run(src SampleReader, scale imu.ScaleConfig, withStats bool) (imu.BiasVector, Stats, error) {
	n := scale.CalibrationSamples
	if n < 1 {
		return imu.BiasVector{}, Stats{}, errors.Errorf("calibration needs at least one sample, got %d", n)
	}

	var (
		sum   [imu.NumChannels]int64
		sumSq [imu.NumChannels]float64
		st    Stats
	)
	for i := 0; i < n; i++ {
		s, err := src.ReadRaw()
		if err != nil {
			return imu.BiasVector{}, Stats{}, &imu.AcquisitionError{Phase: "calibration", Sample: i, Err: err}
		}
		c := s.Channels()
		for ch, v := range c {
			sum[ch] += int64(v)
			if !withStats {
				continue
			}
			sumSq[ch] += float64(v) * float64(v)
			if i == 0 || v < st.Min[ch] {
				st.Min[ch] = v
			}
			if i == 0 || v > st.Max[ch] {
				st.Max[ch] = v
			}
		}
	}

	var avg [imu.NumChannels]int32
	for ch := range sum {
		avg[ch] = int32(sum[ch] / int64(n))
	}
	bias := imu.BiasVector(imu.FromChannels(avg))
	bias.Az += scale.RestingGravityOffset()

	if withStats {
		st.Samples = n
		for ch := range sum {
			mean := float64(sum[ch]) / float64(n)
			variance := sumSq[ch]/float64(n) - mean*mean
			if variance < 0 {
				variance = 0
			}
			st.Mean[ch] = mean
			st.StdDev[ch] = math.Sqrt(variance)
		}
		st.Stillness = stillness(st.StdDev)
	}
	return bias, st, nil
}

// stillness maps the worst accel/gyro standard deviation to 0..1.
// The temperature channel drifts slowly and is ignored.
func stillness(std [imu.NumChannels]float64) float64 {
	worst := 0.0
	for ch, s := range std {
		if ch == imu.ChannelTemp {
			continue
		}
		worst = math.Max(worst, s)
	}
	switch {
	case worst <= stillStdGood:
		return 1
	case worst >= stillStdBad:
		return confFloor
	}
	frac := (worst - stillStdGood) / (stillStdBad - stillStdGood)
	return math.Max(confFloor, 1-frac)
}

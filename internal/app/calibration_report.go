// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/relabs-tech/tilt_computer/internal/calibration"
	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/imu"
	"github.com/relabs-tech/tilt_computer/internal/pipeline"
)

const reportSchemaVersion = 1

// CalibrationReport is the JSON file written by the calibration tool.
// All values are raw counts except Stillness (0..1).
type CalibrationReport struct {
	SchemaVersion int       `json:"schema_version"`
	CalibrationAt time.Time `json:"calibration_at"`
	Device        string    `json:"device"`
	AccelRange    byte      `json:"accel_range"`
	GyroRange     byte      `json:"gyro_range"`

	Bias imu.BiasVector `json:"bias"`

	Samples   int                      `json:"samples"`
	Mean      [imu.NumChannels]float64 `json:"mean"`
	StdDev    [imu.NumChannels]float64 `json:"stddev"`
	Min       [imu.NumChannels]int32   `json:"min"`
	Max       [imu.NumChannels]int32   `json:"max"`
	Stillness float64                  `json:"stillness"`

	Notes []string `json:"notes,omitempty"`
}

func newCalibrationReport(at time.Time, addr uint16, scale imu.ScaleConfig, bias imu.BiasVector, st calibration.Stats) CalibrationReport {
	rep := CalibrationReport{
		SchemaVersion: reportSchemaVersion,
		CalibrationAt: at.UTC(),
		Device:        fmt.Sprintf("mpu6050@0x%02X", addr),
		AccelRange:    scale.AccelRange,
		GyroRange:     scale.GyroRange,
		Bias:          bias,
		Samples:       st.Samples,
		Mean:          st.Mean,
		StdDev:        st.StdDev,
		Min:           st.Min,
		Max:           st.Max,
		Stillness:     st.Stillness,
	}
	if st.Stillness < 0.5 {
		rep.Notes = append(rep.Notes, "device moved during capture; repeat with the device still and level")
	}
	if d := float64(st.Max[imu.ChannelAz]) - float64(st.Min[imu.ChannelAz]); d > 0.1*float64(scale.RestingGravityOffset()) {
		rep.Notes = append(rep.Notes, fmt.Sprintf("accel Z spread %.0f counts exceeds 0.1g", d))
	}
	return rep
}

func writeCalibrationReport(path string, rep CalibrationReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create report directory")
		}
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal calibration report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write calibration report")
	}
	return nil
}

func waitEnter(in *bufio.Reader, out io.Writer, prompt string) {
	fmt.Fprintln(out, prompt)
	_, _ = in.ReadString('\n')
}

// RunCalibration runs one calibration pass with statistics and writes the
// report to CALIBRATION_OUTPUT. If in is non-nil the user is asked to
// confirm the device is resting first.
func RunCalibration(cfg *config.Config, in io.Reader, out io.Writer, logger golog.Logger) (err error) {
	h, err := openSensor(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, h.Close()) }()

	if in != nil {
		waitEnter(bufio.NewReader(in), out, "Place the device level and still, then press ENTER...")
	}

	state := pipeline.NewState(cfg.Scale())
	start := time.Now()
	stats, err := state.CalibrateWithStats(h.dev)
	if err != nil {
		return errors.Wrap(err, "calibration failed")
	}
	bias, _ := state.Bias()
	logger.Infof("calibration: %d samples in %s", stats.Samples, time.Since(start).Round(time.Millisecond))

	rep := newCalibrationReport(start, h.dev.Addr(), cfg.Scale(), bias, stats)
	if err := writeCalibrationReport(cfg.CalibrationOutput, rep); err != nil {
		return err
	}
	logger.Infof("calibration: saved report to %s", cfg.CalibrationOutput)

	fmt.Fprintf(out, "bias: %s\n", formatRaw(imu.RawSample(bias)))
	fmt.Fprintf(out, "stillness: %.2f\n", stats.Stillness)
	for _, n := range rep.Notes {
		fmt.Fprintf(out, "note: %s\n", n)
	}
	return nil
}

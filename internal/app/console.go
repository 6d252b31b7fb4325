// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"

	"github.com/edaniels/golog"

	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// RunConsole reads the sensor directly and prints every record, no broker
// involved. Set IMU_MOCK=true to run it without hardware.
func RunConsole(ctx context.Context, cfg *config.Config, out io.Writer, logger golog.Logger) error {
	return runSensorLoop(ctx, cfg, consoleSink{w: out}, logger)
}

func formatRecord(rec imu.OutputRecord) string {
	return fmt.Sprintf("AX=%7.3f  AY=%7.3f  AZ=%7.3f  ROLL=%7.2f  PITCH=%7.2f",
		rec.Ax, rec.Ay, rec.Az, rec.Roll, rec.Pitch)
}

func formatRaw(s imu.RawSample) string {
	return fmt.Sprintf("ax=%6d ay=%6d az=%6d  t=%6d  gx=%6d gy=%6d gz=%6d",
		s.Ax, s.Ay, s.Az, s.Temp, s.Gx, s.Gy, s.Gz)
}

// consoleSink prints records as text lines.
type consoleSink struct {
	w io.Writer
}

func (c consoleSink) Emit(rec imu.OutputRecord, _ imu.RawSample) error {
	_, err := fmt.Fprintln(c.w, formatRecord(rec))
	return err
}

func (c consoleSink) Close() error {
	return nil
}

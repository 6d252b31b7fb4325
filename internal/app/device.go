// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"io"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/imu"
	"github.com/relabs-tech/tilt_computer/internal/sensors"
)

// mockOffset is the constant error the simulated sensor carries, so that
// calibration has something to remove.
var mockOffset = imu.RawSample{Ax: 120, Ay: -85, Az: 210, Gx: 14, Gy: -9, Gz: 4}

const mockNoise = 6

// sensorHandle is an initialized MPU-6050 and the bus it sits on.
type sensorHandle struct {
	dev *sensors.MPU6050
	sim *sensors.SimBus // nil on real hardware
	bus io.Closer       // nil when simulated
}

// openSensor opens the configured bus (or the simulator when IMU_MOCK is
// set), wakes the device and programs its ranges.
func openSensor(cfg *config.Config, logger golog.Logger) (*sensorHandle, error) {
	h := &sensorHandle{}
	var bus sensors.Bus
	if cfg.IMUMock {
		h.sim = sensors.NewSimBus(cfg.IMUI2CAddr, mockOffset, mockNoise, 1)
		bus = h.sim
		logger.Info("imu: using simulated MPU-6050")
	} else {
		b, err := sensors.OpenI2CBus(cfg.I2CBus)
		if err != nil {
			return nil, err
		}
		logger.Infof("imu: opened I2C bus %s", b)
		h.bus = b
		bus = b
	}

	h.dev = sensors.NewMPU6050(bus, cfg.IMUI2CAddr, logger)
	if id, err := h.dev.WhoAmI(); err != nil {
		logger.Warnw("imu: WHO_AM_I probe failed", "addr", cfg.IMUI2CAddr, "error", err)
	} else if id != byte(sensors.DefaultAddress) {
		logger.Warnf("imu: unexpected WHO_AM_I 0x%02X at 0x%02X (want 0x68)", id, cfg.IMUI2CAddr)
	} else {
		logger.Infof("imu: MPU-6050 found at 0x%02X", cfg.IMUI2CAddr)
	}

	if err := h.dev.Init(cfg.Scale()); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "imu init"), h.closeBus())
	}
	return h, nil
}

func (h *sensorHandle) closeBus() error {
	if h.bus == nil {
		return nil
	}
	return h.bus.Close()
}

// Close puts the device to sleep and releases the bus.
func (h *sensorHandle) Close() error {
	return multierr.Combine(h.dev.Sleep(), h.closeBus())
}

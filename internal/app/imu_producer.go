// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/imu"
	"github.com/relabs-tech/tilt_computer/internal/orientation"
	"github.com/relabs-tech/tilt_computer/internal/pipeline"
	"github.com/relabs-tech/tilt_computer/internal/telemetry"
)

// RunProducer calibrates the sensor once and then publishes one record per
// IMU_SAMPLE_INTERVAL to MQTT (and the serial port, if configured) until
// ctx is cancelled.
func RunProducer(ctx context.Context, cfg *config.Config, logger golog.Logger) (err error) {
	logger.Info("starting tilt-computer producer (IMU → MQTT)")

	sink, err := openSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sink.Close()) }()

	return runSensorLoop(ctx, cfg, sink, logger)
}

// runSensorLoop is shared by the producer and the local console.
func runSensorLoop(ctx context.Context, cfg *config.Config, sink telemetry.Sink, logger golog.Logger) (err error) {
	h, err := openSensor(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, h.Close()) }()

	state := pipeline.NewState(cfg.Scale())
	if cfg.TiltAtan2 {
		state.SetEstimator(orientation.EstimateAtan2)
	}
	logger.Infof("calibration: sampling %d readings, keep the device still and level", cfg.CalibrationSamples)
	stats, err := state.CalibrateWithStats(h.dev)
	if err != nil {
		return errors.Wrap(err, "calibration failed")
	}
	bias, _ := state.Bias()
	logger.Infow("calibration: done", "bias", bias, "stillness", stats.Stillness)
	if stats.Stillness < 0.5 {
		logger.Warnf("calibration: device moved during calibration (stillness %.2f), bias may be off", stats.Stillness)
	}

	if h.sim != nil {
		h.sim.StartWobble()
	}

	interval := time.Duration(cfg.IMUSampleInterval) * time.Millisecond
	logger.Infof("producer: running one cycle every %s", interval)
	return produce(ctx, state, h.dev, sink, interval, logger)
}

func produce(
	ctx context.Context,
	state *pipeline.State,
	src pipeline.SampleReader,
	sink telemetry.Sink,
	interval time.Duration,
	logger golog.Logger,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("producer: shutting down")
			return nil
		case t := <-ticker.C:
			if err := step(state, src, sink, t, logger); err != nil {
				return err
			}
		}
	}
}

// step runs one cycle. Read failures and degenerate samples skip the cycle;
// anything else stops the loop.
func step(state *pipeline.State, src pipeline.SampleReader, sink telemetry.Sink, t time.Time, logger golog.Logger) error {
	c, err := state.RunCycleDetailed(src)
	switch {
	case err == nil:
	case imu.IsTransient(err):
		logger.Warnw("producer: read failed, skipping cycle", "error", err)
		return nil
	case imu.IsEstimation(err):
		logger.Warnw("producer: attitude undefined, skipping cycle", "error", err)
		return nil
	default:
		return err
	}

	c.Record.Time = t
	if err := sink.Emit(c.Record, c.Raw); err != nil {
		logger.Warnw("producer: emit failed", "error", err)
	}
	logger.Debugf("%s tick: %s | gyro %.1f %.1f %.1f °/s | %.1f°C",
		t.Format(time.RFC3339), formatRecord(c.Record),
		c.GyroDPS[0], c.GyroDPS[1], c.GyroDPS[2], c.TemperatureC)
	return nil
}

// openSinks connects MQTT and, when SERIAL_PORT is set, the serial line.
func openSinks(cfg *config.Config, logger golog.Logger) (telemetry.Multi, error) {
	mq, err := telemetry.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer, cfg.TopicOutput, cfg.TopicRaw)
	if err != nil {
		return nil, err
	}
	logger.Infof("producer: connected to MQTT broker at %s, publishing to %s", cfg.MQTTBroker, cfg.TopicOutput)
	sinks := telemetry.Multi{mq}

	if cfg.SerialPort != "" {
		ser, err := telemetry.OpenSerial(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return nil, multierr.Append(err, sinks.Close())
		}
		logger.Infof("producer: streaming $%s sentences on %s at %d baud", telemetry.SentenceType, cfg.SerialPort, cfg.SerialBaudRate)
		sinks = append(sinks, ser)
	}
	return sinks, nil
}

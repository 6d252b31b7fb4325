// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/edaniels/golog"

	"github.com/relabs-tech/tilt_computer/internal/app"
	"github.com/relabs-tech/tilt_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "./tilt_config.txt", "path to configuration file")
	flag.Parse()

	logger := golog.NewDevelopmentLogger("imu_producer")
	logger.Info("starting tilt-computer IMU producer (MPU-6050 → MQTT)")

	if err := config.InitGlobal(*configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunProducer(ctx, config.Get(), logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

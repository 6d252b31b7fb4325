// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command producer publishes records from the simulated sensor, for
// exercising the broker, web and display without hardware.
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

	logger := golog.NewDevelopmentLogger("producer")
	logger.Info("starting tilt-computer MQTT producer (mock)")

	if err := config.InitGlobal(*configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := *config.Get()
	cfg.IMUMock = true
	cfg.SerialPort = ""

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunProducer(ctx, &cfg, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

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

	logger := golog.NewDevelopmentLogger("register_debug")
	logger.Info("starting MPU-6050 register debug tool (standalone)")
	logger.Info("stop imu_producer first: both talk to the same device")

	if err := config.InitGlobal(*configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	logger.Infof("open http://localhost:%d in your browser", cfg.RegisterDebugPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunRegisterDebug(ctx, cfg, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

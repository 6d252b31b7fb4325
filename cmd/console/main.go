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
	mock := flag.Bool("mock", false, "use the simulated sensor")
	flag.Parse()

	logger := golog.NewDevelopmentLogger("console")
	logger.Info("starting tilt-computer console")

	if err := config.InitGlobal(*configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := *config.Get()
	if *mock {
		cfg.IMUMock = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsole(ctx, &cfg, os.Stdout, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command calibration measures the sensor bias at rest and writes a JSON
// report with per-channel statistics.
//
// Run:
//
//	go run ./cmd/calibration -config ./tilt_config.txt
//
// The device must be level and still for the whole capture. The producer
// calibrates itself at startup; this tool is for checking the mounting
// and the noise floor.
package main

import (
	"flag"
	"io"
	"os"

	"github.com/edaniels/golog"

	"github.com/relabs-tech/tilt_computer/internal/app"
	"github.com/relabs-tech/tilt_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "./tilt_config.txt", "path to configuration file")
	output := flag.String("out", "", "report path (overrides CALIBRATION_OUTPUT)")
	yes := flag.Bool("y", false, "start immediately without waiting for ENTER")
	flag.Parse()

	logger := golog.NewDevelopmentLogger("calibration")

	if err := config.InitGlobal(*configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := *config.Get()
	if *output != "" {
		cfg.CalibrationOutput = *output
	}

	var in io.Reader = os.Stdin
	if *yes {
		in = nil
	}
	if err := app.RunCalibration(&cfg, in, os.Stdout, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

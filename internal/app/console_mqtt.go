// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/edaniels/golog"

	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// RunConsoleMQTT prints records (and raw samples, if TOPIC_RAW is set)
// published by the producer until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, logger golog.Logger) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// paho runs handlers on its own goroutine(s)
	var mu sync.Mutex
	printf := func(format string, args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	if err := subscribe(client, cfg.TopicOutput, recordHandler(logger, func(rec imu.OutputRecord) {
		printf("[TILT] %s\n", formatRecord(rec))
	}), logger); err != nil {
		return err
	}

	if cfg.TopicRaw != "" {
		if err := subscribe(client, cfg.TopicRaw, rawHandler(logger, func(s imu.RawSample) {
			printf("[RAW ] %s\n", formatRaw(s))
		}), logger); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}

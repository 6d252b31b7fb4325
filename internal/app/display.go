// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/imu"
	"github.com/relabs-tech/tilt_computer/internal/sensors"
)

const (
	displayW    = 128
	displayH    = 64
	ssd1306Addr = 0x3C
)

// RunDisplay shows the latest record on an SSD1306 OLED sharing the IMU's
// I2C bus.
func RunDisplay(ctx context.Context, cfg *config.Config, logger golog.Logger) (err error) {
	bus, err := sensors.OpenI2CBus(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, bus.Close()) }()

	// the periph driver always talks to 0x3C
	if cfg.DisplayI2CAddr != ssd1306Addr {
		return errors.Errorf("display: only address 0x%02X is supported, got 0x%02X", ssd1306Addr, cfg.DisplayI2CAddr)
	}
	dev, err := ssd1306.NewI2C(bus.Periph(), &ssd1306.DefaultOpts)
	if err != nil {
		return errors.Wrapf(err, "failed to initialize display at 0x%02X", cfg.DisplayI2CAddr)
	}
	logger.Infof("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := draw(dev, renderSplash()); err != nil {
		logger.Warnw("display: error showing splash", "error", err)
	}

	cache := newRecordCache()
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribe(client, cfg.TopicOutput, recordHandler(logger, cache.Update), logger); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	logger.Info("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			return dev.Halt()
		case <-ticker.C:
			rec, ok := cache.Latest()
			if err := draw(dev, renderRecord(rec, ok)); err != nil {
				logger.Warnw("display: error updating display", "error", err)
			}
		}
	}
}

func draw(dev *ssd1306.Dev, img *image1bit.VerticalLSB) error {
	return dev.Draw(dev.Bounds(), img, image.Point{})
}

// canvas is a blank frame plus a drawer writing lines of basicfont text.
type canvas struct {
	img    *image1bit.VerticalLSB
	drawer *font.Drawer
}

func newCanvas() *canvas {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))
	return &canvas{
		img: img,
		drawer: &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{image1bit.On},
			Face: basicfont.Face7x13,
		},
	}
}

func (c *canvas) text(x, y int, s string) {
	c.drawer.Dot = fixed.P(x, y)
	c.drawer.DrawString(s)
}

// splashLines is shown until the first record arrives from the producer.
var splashLines = []struct {
	x, y int
	s    string
}{
	{14, 26, "Tilt Computer"},
	{25, 43, "Waiting for"},
	{36, 56, "producer"},
}

func renderSplash() *image1bit.VerticalLSB {
	c := newCanvas()
	for _, l := range splashLines {
		c.text(l.x, l.y, l.s)
	}
	return c.img
}

// renderRecord lays out the five record fields, one per 12px line.
func renderRecord(rec imu.OutputRecord, have bool) *image1bit.VerticalLSB {
	c := newCanvas()
	if !have {
		c.text(0, 26, "Tilt")
		c.text(0, 39, "Waiting...")
		return c.img
	}
	c.text(0, 11, fmt.Sprintf("ax %+7.2f m/s2", rec.Ax))
	c.text(0, 23, fmt.Sprintf("ay %+7.2f m/s2", rec.Ay))
	c.text(0, 35, fmt.Sprintf("az %+7.2f m/s2", rec.Az))
	c.text(0, 47, fmt.Sprintf("R  %+7.1f deg", rec.Roll))
	c.text(0, 59, fmt.Sprintf("P  %+7.1f deg", rec.Pitch))
	return c.img
}

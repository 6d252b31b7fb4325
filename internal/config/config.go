// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// Config holds all application configuration values.
type Config struct {
	// IMU Hardware
	I2CBus     string // periph bus name, "" for the first available
	IMUI2CAddr uint16
	IMUMock    bool // use the simulated device instead of the bus

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Calibration
	Gravity            float64 // m/s²
	CalibrationSamples int
	CalibrationOutput  string // JSON report written by cmd/calibration

	// Timing
	IMUSampleInterval int // milliseconds

	// Orientation: atan2 instead of acos, better conditioned near ±90°
	TiltAtan2 bool

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicOutput string
	TopicRaw    string

	// Serial telemetry ("" disables)
	SerialPort     string
	SerialBaudRate int

	// Web Server
	WebServerPort       int
	RegisterDebugPort   int
	RegisterWriteRanges string // e.g. "0x19-0x1C,0x6B-0x6C"

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Package-level singleton. InitGlobal sets it once; Get reads it under a
// read lock so any goroutine may call Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the settings of a single MPU-6050 at 0x68 on the first
// I2C bus, ±2g / ±500°/s, 1000 calibration samples, 100ms cycles.
func Default() *Config {
	return &Config{
		IMUI2CAddr:            0x68,
		IMUAccelRange:         0,
		IMUGyroRange:          1,
		Gravity:               imu.StandardGravity,
		CalibrationSamples:    imu.DefaultCalibrationSamples,
		CalibrationOutput:     "tilt_calibration.json",
		IMUSampleInterval:     100,
		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientIDProducer:  "tilt-producer",
		MQTTClientIDConsole:   "tilt-console-subscriber",
		MQTTClientIDWeb:       "tilt-web-subscriber",
		MQTTClientIDDisplay:   "tilt-display",
		TopicOutput:           "tilt/output",
		TopicRaw:              "tilt/raw",
		SerialBaudRate:        115200,
		WebServerPort:         8080,
		RegisterDebugPort:     8081,
		RegisterWriteRanges:   "0x19-0x1C,0x6B-0x6C",
		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines. Blank lines and lines starting with # are
// skipped; unknown keys are an error.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, errors.Wrapf(err, "config line %d", lineNum)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseIntRange(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	if v < lo || v > hi {
		return 0, errors.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	if addr > 0x7F {
		return 0, errors.Errorf("%s must be a 7-bit address, got 0x%X", key, addr)
	}
	return uint16(addr), nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// IMU Hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "IMU_I2C_ADDR":
		c.IMUI2CAddr, err = parseAddr(key, value)
	case "IMU_MOCK":
		c.IMUMock, err = strconv.ParseBool(value)
		if err != nil {
			err = errors.Wrapf(err, "invalid IMU_MOCK %q", value)
		}

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		var v int
		v, err = parseIntRange(key, value, 0, 3)
		c.IMUAccelRange = byte(v)
	case "IMU_GYRO_RANGE":
		var v int
		v, err = parseIntRange(key, value, 0, 3)
		c.IMUGyroRange = byte(v)

	// Calibration
	case "GRAVITY":
		c.Gravity, err = strconv.ParseFloat(value, 64)
		if err != nil {
			err = errors.Wrapf(err, "invalid GRAVITY %q", value)
		}
	case "CALIBRATION_SAMPLES":
		c.CalibrationSamples, err = parseIntRange(key, value, 1, 1_000_000)
	case "CALIBRATION_OUTPUT":
		c.CalibrationOutput = value

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		c.IMUSampleInterval, err = parseIntRange(key, value, 1, 60_000)

	// Orientation
	case "TILT_ATAN2":
		c.TiltAtan2, err = strconv.ParseBool(value)
		if err != nil {
			err = errors.Wrapf(err, "invalid TILT_ATAN2 %q", value)
		}

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_OUTPUT":
		c.TopicOutput = value
	case "TOPIC_RAW":
		c.TopicRaw = value

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseIntRange(key, value, 50, 4_000_000)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseIntRange(key, value, 1, 65535)
	case "REGISTER_DEBUG_PORT":
		c.RegisterDebugPort, err = parseIntRange(key, value, 1, 65535)
	case "REGISTER_WRITE_RANGES":
		if _, err = ParseRegisterRanges(value); err == nil {
			c.RegisterWriteRanges = value
		}

	// Display
	case "DISPLAY_I2C_ADDR":
		c.DisplayI2CAddr, err = parseAddr(key, value)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseIntRange(key, value, 1, 60_000)

	default:
		return errors.Errorf("unknown config key: %q", key)
	}
	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is required")
	}
	if c.TopicOutput == "" {
		return errors.New("TOPIC_OUTPUT is required")
	}
	if c.IMUI2CAddr == 0 {
		return errors.New("IMU_I2C_ADDR is required")
	}
	return errors.Wrap(c.Scale().Validate(), "invalid scale settings")
}

// Scale derives the unit conversion constants.
func (c *Config) Scale() imu.ScaleConfig {
	return imu.ScaleConfig{
		AccelRange:         c.IMUAccelRange,
		GyroRange:          c.IMUGyroRange,
		Gravity:            c.Gravity,
		CalibrationSamples: c.CalibrationSamples,
	}
}

// RegisterRange is an inclusive range of writable register addresses.
type RegisterRange struct {
	Lo, Hi byte
}

// ParseRegisterRanges parses "0x19-0x1C,0x6B" style lists.
func ParseRegisterRanges(s string) ([]RegisterRange, error) {
	var out []RegisterRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		lo, err := strconv.ParseUint(strings.TrimSpace(bounds[0]), 0, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid register range %q", part)
		}
		hi := lo
		if len(bounds) == 2 {
			hi, err = strconv.ParseUint(strings.TrimSpace(bounds[1]), 0, 8)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid register range %q", part)
			}
		}
		if hi < lo {
			return nil, errors.Errorf("register range %q is reversed", part)
		}
		out = append(out, RegisterRange{Lo: byte(lo), Hi: byte(hi)})
	}
	return out, nil
}

// IsRegisterWritable reports whether addr falls within ranges.
func IsRegisterWritable(addr byte, ranges []RegisterRange) bool {
	for _, r := range ranges {
		if addr >= r.Lo && addr <= r.Hi {
			return true
		}
	}
	return false
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

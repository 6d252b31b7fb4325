// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/sensors"
)

// RegisterDevice is the register-level access the debugger needs.
type RegisterDevice interface {
	ReadRegister(reg byte) (byte, error)
	WriteRegister(reg, value byte) error
	ReadAllRegisters() (map[byte]byte, error)
}

// RegisterCommand is a websocket request.
type RegisterCommand struct {
	Action  string `json:"action"` // get_map, read, read_all, write, export_config
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

// RegisterResponse is a websocket reply.
type RegisterResponse struct {
	Type        string                 `json:"type"` // register_map, register_data, export_config, error
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"`
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
	Config      *RegisterConfigFile    `json:"config,omitempty"`
}

// RegisterConfigFile is the exported register dump.
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// RegisterDebugger serves register read/write sessions over websocket.
// Writes are limited to the configured ranges.
type RegisterDebugger struct {
	dev      RegisterDevice
	writable []config.RegisterRange
	logger   golog.Logger
	now      func() time.Time
}

// NewRegisterDebugger returns a debugger for dev that only writes
// registers inside writable.
func NewRegisterDebugger(dev RegisterDevice, writable []config.RegisterRange, logger golog.Logger) *RegisterDebugger {
	return &RegisterDebugger{dev: dev, writable: writable, logger: logger, now: time.Now}
}

// ServeHTTP upgrades to websocket, sends the register map, then answers
// one response per command until the client disconnects.
func (d *RegisterDebugger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warnw("register_debug: websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(d.Handle(RegisterCommand{Action: "get_map"})); err != nil {
		d.logger.Warnw("register_debug: error sending register map", "error", err)
		return
	}

	for {
		var cmd RegisterCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				d.logger.Warnw("register_debug: websocket error", "error", err)
			}
			return
		}
		if err := conn.WriteJSON(d.Handle(cmd)); err != nil {
			d.logger.Warnw("register_debug: write error", "error", err)
			return
		}
	}
}

// Handle executes one command.
func (d *RegisterDebugger) Handle(cmd RegisterCommand) RegisterResponse {
	switch cmd.Action {
	case "get_map":
		return RegisterResponse{Type: "register_map", RegisterMap: sensors.RegisterMap()}
	case "read":
		return d.handleRead(cmd)
	case "read_all":
		return d.handleReadAll()
	case "write":
		return d.handleWrite(cmd)
	case "export_config":
		return d.handleExport()
	case "":
		return errorResponse("missing or invalid action field")
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", cmd.Action))
	}
}

func (d *RegisterDebugger) handleRead(cmd RegisterCommand) RegisterResponse {
	reg, err := parseByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %s", cmd.Address))
	}
	v, err := d.dev.ReadRegister(reg)
	if err != nil {
		return errorResponse(fmt.Sprintf("read error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Address:   hexByte(reg),
		Value:     hexByte(v),
		Timestamp: d.now().Format(time.RFC3339),
	}
}

func (d *RegisterDebugger) readAll() (map[string]string, error) {
	regs, err := d.dev.ReadAllRegisters()
	out := make(map[string]string, len(regs))
	for addr, v := range regs {
		out[hexByte(addr)] = hexByte(v)
	}
	return out, err
}

func (d *RegisterDebugger) handleReadAll() RegisterResponse {
	regs, err := d.readAll()
	resp := RegisterResponse{
		Type:      "register_data",
		Registers: regs,
		Timestamp: d.now().Format(time.RFC3339),
	}
	if err != nil {
		resp.Message = fmt.Sprintf("some registers failed: %v", err)
	}
	return resp
}

func (d *RegisterDebugger) handleWrite(cmd RegisterCommand) RegisterResponse {
	reg, err := parseByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %s", cmd.Address))
	}
	v, err := parseByte(cmd.Value)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid value format: %s", cmd.Value))
	}
	if !config.IsRegisterWritable(reg, d.writable) {
		return errorResponse(fmt.Sprintf("register %s not in allowed write ranges", hexByte(reg)))
	}
	if err := d.dev.WriteRegister(reg, v); err != nil {
		return errorResponse(fmt.Sprintf("write error: %v", err))
	}
	d.logger.Infof("register_debug: wrote %s to %s", hexByte(v), hexByte(reg))
	return RegisterResponse{
		Type:      "register_data",
		Address:   hexByte(reg),
		Value:     hexByte(v),
		Timestamp: d.now().Format(time.RFC3339),
		Message:   "write successful",
	}
}

func (d *RegisterDebugger) handleExport() RegisterResponse {
	regs, err := d.readAll()
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}
	now := d.now()
	return RegisterResponse{
		Type:    "export_config",
		Message: fmt.Sprintf("mpu6050_%s_registers.json", now.Format("20060102_150405")),
		Config: &RegisterConfigFile{
			Version:   1,
			Device:    "mpu6050",
			Timestamp: now.Format(time.RFC3339),
			Registers: regs,
		},
	}
}

// HandleRegisterMap serves the documented register map as JSON.
func HandleRegisterMap(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	regs := sensors.RegisterMap()
	sort.Slice(regs, func(i, j int) bool { return regs[i].Address < regs[j].Address })
	_ = json.NewEncoder(w).Encode(regs)
}

func errorResponse(message string) RegisterResponse {
	return RegisterResponse{Type: "error", Message: message}
}

// parseByte accepts "0x6B", "107" or "0o153".
func parseByte(s string) (byte, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func hexByte(b byte) string {
	return fmt.Sprintf("0x%02X", b)
}

// RunRegisterDebug opens the sensor and serves the register inspector on
// REGISTER_DEBUG_PORT.
func RunRegisterDebug(ctx context.Context, cfg *config.Config, logger golog.Logger) (err error) {
	writable, err := config.ParseRegisterRanges(cfg.RegisterWriteRanges)
	if err != nil {
		return err
	}

	h, err := openSensor(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, h.Close()) }()

	mux := http.NewServeMux()
	mux.Handle("/ws/registers", NewRegisterDebugger(h.dev, writable, logger))
	mux.HandleFunc("/api/registers", HandleRegisterMap)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.RegisterDebugPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Infof("register_debug: writable ranges %q", cfg.RegisterWriteRanges)
	return serveUntilDone(ctx, srv, logger)
}

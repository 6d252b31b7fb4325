// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var (
	hostOnce    sync.Once
	hostInitErr error
)

func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostInitErr = errors.Wrap(err, "periph host init")
		}
	})
	return hostInitErr
}

// I2CBus is a Bus backed by a periph.io I2C bus.
type I2CBus struct {
	name string
	bus  i2c.BusCloser
}

// OpenI2CBus initializes the periph host and opens the named I2C bus.
// An empty name opens the first available bus.
func OpenI2CBus(name string) (*I2CBus, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open I2C bus %q", name)
	}
	return &I2CBus{name: name, bus: b}, nil
}

// Periph exposes the underlying bus so other periph drivers (the display)
// can share it.
func (b *I2CBus) Periph() i2c.Bus {
	return b.bus
}

// WriteRegister writes a single byte to reg.
func (b *I2CBus) WriteRegister(addr uint16, reg, value byte) error {
	return busErr(addr, reg, "write", b.bus.Tx(addr, []byte{reg, value}, nil))
}

// ReadRegister reads a single byte from reg.
func (b *I2CBus) ReadRegister(addr uint16, reg byte) (byte, error) {
	r := make([]byte, 1)
	if err := b.bus.Tx(addr, []byte{reg}, r); err != nil {
		return 0, busErr(addr, reg, "read", err)
	}
	return r[0], nil
}

// ReadBlock reads n consecutive registers starting at reg in one transaction.
func (b *I2CBus) ReadBlock(addr uint16, reg byte, n int) ([]byte, error) {
	if n <= 0 {
		return nil, busErr(addr, reg, "read_block", errors.Errorf("invalid block length %d", n))
	}
	r := make([]byte, n)
	if err := b.bus.Tx(addr, []byte{reg}, r); err != nil {
		return nil, busErr(addr, reg, "read_block", err)
	}
	return r, nil
}

// Close releases the bus.
func (b *I2CBus) Close() error {
	return errors.Wrapf(b.bus.Close(), "close I2C bus %q", b.name)
}

func (b *I2CBus) String() string {
	return b.bus.String()
}

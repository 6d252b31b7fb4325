// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// SimBus emulates a single MPU-6050 register file. It answers the same
// register protocol as the real chip and synthesizes the sensor block from
// a gravity vector plus a fixed per-channel offset and uniform noise.
type SimBus struct {
	mu sync.Mutex

	addr   uint16
	regs   [256]byte
	offset imu.RawSample
	noise  int32
	rng    *rand.Rand

	rollDeg, pitchDeg float64
	wobbleStart       time.Time
	wobble            bool
}

// NewSimBus returns a level, stationary, sleeping device at addr.
// offset is added to every sample; noise is the peak amplitude of uniform
// noise in raw counts.
func NewSimBus(addr uint16, offset imu.RawSample, noise int32, seed int64) *SimBus {
	s := &SimBus{
		addr:   addr,
		offset: offset,
		noise:  noise,
		rng:    rand.New(rand.NewSource(seed)),
	}
	s.regs[RegPwrMgmt1] = sleepBit
	s.regs[RegWhoAmI] = byte(DefaultAddress)
	return s
}

// SetTilt holds the simulated device at a fixed attitude.
func (s *SimBus) SetTilt(rollDeg, pitchDeg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollDeg, s.pitchDeg = rollDeg, pitchDeg
	s.wobble = false
}

// StartWobble makes the attitude follow smooth periodic motion from now on.
func (s *SimBus) StartWobble() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wobble = true
	s.wobbleStart = time.Now()
}

func (s *SimBus) check(addr uint16, reg byte, op string) error {
	if addr != s.addr {
		return busErr(addr, reg, op, errors.New("no device acknowledged address"))
	}
	return nil
}

// WriteRegister implements Bus.
func (s *SimBus) WriteRegister(addr uint16, reg, value byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(addr, reg, "write"); err != nil {
		return err
	}
	s.regs[reg] = value
	return nil
}

// ReadRegister implements Bus.
func (s *SimBus) ReadRegister(addr uint16, reg byte) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(addr, reg, "read"); err != nil {
		return 0, err
	}
	s.refresh()
	return s.regs[reg], nil
}

// ReadBlock implements Bus.
func (s *SimBus) ReadBlock(addr uint16, reg byte, n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(addr, reg, "read_block"); err != nil {
		return nil, err
	}
	if n <= 0 || int(reg)+n > len(s.regs) {
		return nil, busErr(addr, reg, "read_block", errors.Errorf("invalid block length %d", n))
	}
	s.refresh()
	out := make([]byte, n)
	copy(out, s.regs[int(reg):int(reg)+n])
	return out, nil
}

// refresh regenerates the data registers. A sleeping device reports zeros.
func (s *SimBus) refresh() {
	var sample imu.RawSample
	if s.regs[RegPwrMgmt1]&sleepBit == 0 {
		sample = s.synthesize()
	}
	c := sample.Channels()
	for i, v := range c {
		binary.BigEndian.PutUint16(s.regs[int(RegAccelXoutH)+2*i:], uint16(clamp16(v)))
	}
}

// simTempC is the die temperature the simulator reports.
const simTempC = 25.0

func (s *SimBus) synthesize() imu.RawSample {
	roll, pitch := s.rollDeg, s.pitchDeg
	if s.wobble {
		t := time.Since(s.wobbleStart).Seconds()
		roll = 20 * math.Sin(t)
		pitch = 15 * math.Cos(t*0.7)
	}
	sc := imu.ScaleConfig{AccelRange: (s.regs[RegAccelConfig] >> 3) & 0x03}
	oneG := float64(sc.RestingGravityOffset())
	r := roll * math.Pi / 180
	p := pitch * math.Pi / 180
	tempC := simTempC

	return imu.RawSample{
		Ax:   int32(oneG*math.Sin(p)) + s.offset.Ax + s.jitter(),
		Ay:   int32(-oneG*math.Sin(r)*math.Cos(p)) + s.offset.Ay + s.jitter(),
		Az:   int32(oneG*math.Cos(r)*math.Cos(p)) + s.offset.Az + s.jitter(),
		Temp: int32((tempC-36.53)*340) + s.offset.Temp + s.jitter(),
		Gx:   s.offset.Gx + s.jitter(),
		Gy:   s.offset.Gy + s.jitter(),
		Gz:   s.offset.Gz + s.jitter(),
	}
}

func (s *SimBus) jitter() int32 {
	if s.noise <= 0 {
		return 0
	}
	return s.rng.Int31n(2*s.noise+1) - s.noise
}

func clamp16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

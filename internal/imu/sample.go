// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// NumChannels is the number of channels in one accel/temp/gyro block.
const NumChannels = 7

// BlockSize is the byte length of the register block holding one sample
// (7 channels, 2 bytes each, big-endian).
const BlockSize = NumChannels * 2

// Channel indices into Channels, in wire order.
const (
	ChannelAx = iota
	ChannelAy
	ChannelAz
	ChannelTemp
	ChannelGx
	ChannelGy
	ChannelGz
)

// RawSample is one unconverted reading of the sensor.
// Channel order on the wire is ax, ay, az, temp, gx, gy, gz.
type RawSample struct {
	Ax   int32 `json:"ax"` // accel
	Ay   int32 `json:"ay"`
	Az   int32 `json:"az"`
	Temp int32 `json:"temp"`
	Gx   int32 `json:"gx"` // gyro
	Gy   int32 `json:"gy"`
	Gz   int32 `json:"gz"`
}

// BiasVector is the average output of the sensor at rest, with the resting
// gravity offset already folded into Az.
type BiasVector RawSample

// CorrectedSample is a RawSample with the bias removed.
type CorrectedSample RawSample

// Channels returns the sample in wire order.
func (s RawSample) Channels() [NumChannels]int32 {
	return [NumChannels]int32{s.Ax, s.Ay, s.Az, s.Temp, s.Gx, s.Gy, s.Gz}
}

// FromChannels builds a RawSample from values in wire order.
func FromChannels(c [NumChannels]int32) RawSample {
	return RawSample{Ax: c[0], Ay: c[1], Az: c[2], Temp: c[3], Gx: c[4], Gy: c[5], Gz: c[6]}
}

// Channels returns the bias in wire order.
func (b BiasVector) Channels() [NumChannels]int32 {
	return RawSample(b).Channels()
}

// Channels returns the corrected sample in wire order.
func (c CorrectedSample) Channels() [NumChannels]int32 {
	return RawSample(c).Channels()
}

// DecodeRawSample decodes the 14-byte accel/temp/gyro register block.
func DecodeRawSample(block []byte) (RawSample, error) {
	if len(block) != BlockSize {
		return RawSample{}, errors.Errorf("sample block must be %d bytes, got %d", BlockSize, len(block))
	}
	var c [NumChannels]int32
	for i := range c {
		c[i] = int32(int16(binary.BigEndian.Uint16(block[2*i:])))
	}
	return FromChannels(c), nil
}

// Correct subtracts the bias from every channel of raw.
func Correct(raw RawSample, bias BiasVector) CorrectedSample {
	return CorrectedSample{
		Ax:   raw.Ax - bias.Ax,
		Ay:   raw.Ay - bias.Ay,
		Az:   raw.Az - bias.Az,
		Temp: raw.Temp - bias.Temp,
		Gx:   raw.Gx - bias.Gx,
		Gy:   raw.Gy - bias.Gy,
		Gz:   raw.Gz - bias.Gz,
	}
}

// OutputRecord is the product of one pipeline cycle.
// Ax/Ay/Az are converted accelerations, Roll/Pitch are in degrees.
type OutputRecord struct {
	Ax    float64 `json:"ax"`
	Ay    float64 `json:"ay"`
	Az    float64 `json:"az"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`

	Time time.Time `json:"time"` // set by the acquisition loop, not the pipeline
}

// Fields returns the five numeric fields in record order.
func (r OutputRecord) Fields() [5]float64 {
	return [5]float64{r.Ax, r.Ay, r.Az, r.Roll, r.Pitch}
}

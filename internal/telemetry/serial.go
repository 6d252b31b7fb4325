// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"io"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// SerialSink writes one $PTILT sentence per record, CRLF terminated.
type SerialSink struct {
	w io.WriteCloser
}

// NewSerialSink writes sentences to w.
func NewSerialSink(w io.WriteCloser) *SerialSink {
	return &SerialSink{w: w}
}

// OpenSerial opens a UART at baud, 8N1.
func OpenSerial(port string, baud int) (*SerialSink, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", port)
	}
	return NewSerialSink(p), nil
}

// Emit implements Sink.
func (s *SerialSink) Emit(rec imu.OutputRecord, _ imu.RawSample) error {
	_, err := io.WriteString(s.w, EncodeSentence(rec)+"\r\n")
	return errors.Wrap(err, "serial write")
}

// Close implements Sink.
func (s *SerialSink) Close() error {
	return s.w.Close()
}

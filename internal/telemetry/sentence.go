// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/pkg/errors"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// SentenceType is the proprietary NMEA-0183 sentence carrying a record:
//
//	$PTILT,<ax>,<ay>,<az>,<roll>,<pitch>*<checksum>
const SentenceType = "PTILT"

// EncodeSentence renders rec as a checksummed sentence without line ending.
func EncodeSentence(rec imu.OutputRecord) string {
	f := rec.Fields()
	body := fmt.Sprintf("%s,%.4f,%.4f,%.4f,%.2f,%.2f", SentenceType, f[0], f[1], f[2], f[3], f[4])
	return "$" + body + "*" + nmea.Checksum(body)
}

// ParseSentence decodes a sentence produced by EncodeSentence.
func ParseSentence(line string) (imu.OutputRecord, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return imu.OutputRecord{}, errors.Errorf("sentence does not start with '$': %q", line)
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 {
		return imu.OutputRecord{}, errors.Errorf("sentence has no checksum: %q", line)
	}
	body, sum := line[1:star], line[star+1:]
	if want := nmea.Checksum(body); !strings.EqualFold(sum, want) {
		return imu.OutputRecord{}, errors.Errorf("checksum mismatch: got %s, want %s", sum, want)
	}

	parts := strings.Split(body, ",")
	if parts[0] != SentenceType {
		return imu.OutputRecord{}, errors.Errorf("unexpected sentence type %q", parts[0])
	}
	if len(parts) != 6 {
		return imu.OutputRecord{}, errors.Errorf("%s needs 5 fields, got %d", SentenceType, len(parts)-1)
	}
	var v [5]float64
	for i := range v {
		f, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return imu.OutputRecord{}, errors.Wrapf(err, "field %d", i+1)
		}
		v[i] = f
	}
	return imu.OutputRecord{Ax: v[0], Ay: v[1], Az: v[2], Roll: v[3], Pitch: v[4]}, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

// Package regwave implements the register-level waveform protocol used by
// Motionforge linear-motor test rigs.
//
// A motion profile (piecewise-cubic position waveform) is packed into
// 16-bit Modbus registers, uploaded in bounded bursts, and live position
// telemetry is drained back out of a fixed-size input-register ring via a
// polled header/tailer protocol. This package provides the codecs
// (fixed-point, μ-law coefficient compression, interval packing), the
// profile assembler/splitter, and the client-side ring poller.
package regwave

// Transport burst limits. The rig's Modbus endpoint rejects requests
// larger than 120 registers, which at 2 registers per Q16.16 sample caps
// a single telemetry read at 60 samples.
const (
	MaxBurstWords   = 120
	WordsPerSample  = 2
	MaxBurstSamples = MaxBurstWords / WordsPerSample
)

// RegisterMap describes where the protocol's fields live in the device's
// Modbus data model. The rig firmware has gone through several register
// layouts, so the map is configuration, not constants; DefaultRegisterMap
// returns the current canonical layout.
type RegisterMap struct {
	// Input registers (device → client).
	Status        uint16 // run-state code, see Status type
	Header        uint16 // next ring write slot (samples, mod RingCapacity)
	PositionStart uint16 // telemetry ring, WordsPerSample registers per sample

	// Holding registers (client → device).
	TargetPos        uint16 // jog target, Q16.16
	Tailer           uint16 // last acknowledged ring slot
	NumberOfInterval uint16 // segment count
	Frequency        uint16 // profile frequency, Q16.16
	Coefficients     uint16 // start of the segment payload block

	// Coils.
	CoilPowerOn           uint16
	CoilPowerOff          uint16
	CoilReset             uint16
	CoilStart             uint16
	CoilStop              uint16
	CoilWriteCoefficients uint16
	CoilWriteTarget       uint16

	// RingCapacity is the telemetry ring size in samples.
	RingCapacity uint16
}

// DefaultRegisterMap returns the canonical register layout of current rig
// firmware. Earlier layouts are superseded; load overrides from
// configuration to talk to them.
func DefaultRegisterMap() RegisterMap {
	return RegisterMap{
		Status:        0,
		Header:        1,
		PositionStart: 2,

		TargetPos:        0,
		Tailer:           2,
		NumberOfInterval: 3,
		Frequency:        4,
		Coefficients:     6,

		CoilPowerOn:           0,
		CoilPowerOff:          1,
		CoilReset:             2,
		CoilStart:             3,
		CoilStop:              4,
		CoilWriteCoefficients: 5,
		CoilWriteTarget:       6,

		RingCapacity: 1000,
	}
}

// StreamStart returns the holding-register address of the first word of
// an assembled profile stream. The count, frequency and coefficient
// fields are contiguous in the canonical map, so the whole stream is
// written as one run of chunks starting here.
func (m RegisterMap) StreamStart() uint16 {
	return m.NumberOfInterval
}

// RingEnd returns the first input-register address past the telemetry
// ring.
func (m RegisterMap) RingEnd() uint16 {
	return m.PositionStart + m.RingCapacity*WordsPerSample
}

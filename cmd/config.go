// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Motionforge

package cmd

import (
	"fmt"
	"os"

	"github.com/motionforge/rigwave/pkg/regwave"
	"gopkg.in/yaml.v3"
)

// Config is the full rigwave configuration. Every field has a default
// matching current rig firmware, so an empty (or absent) file is valid.
type Config struct {
	Registers RegisterConfig `yaml:"registers"`
	Motor     MotorLimits    `yaml:"motor"`
	Waveform  WaveformConfig `yaml:"waveform"`
}

// RegisterConfig mirrors regwave.RegisterMap in YAML form. Older rig
// firmware uses different layouts; this is where those get described.
type RegisterConfig struct {
	Status        uint16 `yaml:"status"`
	Header        uint16 `yaml:"header"`
	PositionStart uint16 `yaml:"position_start"`

	TargetPos        uint16 `yaml:"target_pos"`
	Tailer           uint16 `yaml:"tailer"`
	NumberOfInterval uint16 `yaml:"number_of_interval"`
	Frequency        uint16 `yaml:"frequency"`
	Coefficients     uint16 `yaml:"coefficients"`

	CoilPowerOn           uint16 `yaml:"coil_power_on"`
	CoilPowerOff          uint16 `yaml:"coil_power_off"`
	CoilReset             uint16 `yaml:"coil_reset"`
	CoilStart             uint16 `yaml:"coil_start"`
	CoilStop              uint16 `yaml:"coil_stop"`
	CoilWriteCoefficients uint16 `yaml:"coil_write_coefficients"`
	CoilWriteTarget       uint16 `yaml:"coil_write_target"`

	RingCapacity uint16 `yaml:"ring_capacity"`
}

// MotorLimits bounds the physical stroke: positions are expressed
// relative to Zero and clamped to ±Limit before upload.
type MotorLimits struct {
	Zero  float64 `yaml:"zero"`  // mechanical zero offset, motor units
	Limit float64 `yaml:"limit"` // maximum excursion from zero, motor units
}

// WaveformConfig maps a normalized profile (position in [-1, 1]-ish
// units) onto the motor: scaled by AmplitudeScale, shifted by Offset.
type WaveformConfig struct {
	Offset         float64 `yaml:"offset"`
	AmplitudeScale float64 `yaml:"amplitude_scale"`
}

// DefaultConfig returns the built-in configuration for current rig
// firmware.
func DefaultConfig() Config {
	m := regwave.DefaultRegisterMap()
	return Config{
		Registers: RegisterConfig{
			Status:        m.Status,
			Header:        m.Header,
			PositionStart: m.PositionStart,

			TargetPos:        m.TargetPos,
			Tailer:           m.Tailer,
			NumberOfInterval: m.NumberOfInterval,
			Frequency:        m.Frequency,
			Coefficients:     m.Coefficients,

			CoilPowerOn:           m.CoilPowerOn,
			CoilPowerOff:          m.CoilPowerOff,
			CoilReset:             m.CoilReset,
			CoilStart:             m.CoilStart,
			CoilStop:              m.CoilStop,
			CoilWriteCoefficients: m.CoilWriteCoefficients,
			CoilWriteTarget:       m.CoilWriteTarget,

			RingCapacity: m.RingCapacity,
		},
		Motor:    MotorLimits{Zero: 0, Limit: 50},
		Waveform: WaveformConfig{Offset: 0, AmplitudeScale: 1},
	}
}

// LoadConfig reads the YAML file at path over the defaults. An empty
// path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	// Unmarshalling over the pre-filled struct keeps defaults for any
	// field the file omits.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Registers.RingCapacity == 0 {
		return fmt.Errorf("ring_capacity must be positive")
	}
	if c.Motor.Limit <= 0 {
		return fmt.Errorf("motor limit must be positive")
	}
	if c.Waveform.AmplitudeScale == 0 {
		return fmt.Errorf("amplitude_scale must be non-zero")
	}
	return nil
}

// RegisterMap converts the YAML register section into the protocol's
// map type.
func (c Config) RegisterMap() regwave.RegisterMap {
	r := c.Registers
	return regwave.RegisterMap{
		Status:        r.Status,
		Header:        r.Header,
		PositionStart: r.PositionStart,

		TargetPos:        r.TargetPos,
		Tailer:           r.Tailer,
		NumberOfInterval: r.NumberOfInterval,
		Frequency:        r.Frequency,
		Coefficients:     r.Coefficients,

		CoilPowerOn:           r.CoilPowerOn,
		CoilPowerOff:          r.CoilPowerOff,
		CoilReset:             r.CoilReset,
		CoilStart:             r.CoilStart,
		CoilStop:              r.CoilStop,
		CoilWriteCoefficients: r.CoilWriteCoefficients,
		CoilWriteTarget:       r.CoilWriteTarget,

		RingCapacity: r.RingCapacity,
	}
}

// MapProfile applies the waveform mapping and motor limits to a
// normalized profile: y' = AmplitudeScale·y + Zero + Offset. Scaling a
// cubic scales its coefficients; the offset lands on the constant term.
// Coefficients that would drive the motor past ±Limit from zero are not
// rejected here: the fixed-point codec saturates and warns.
func (c Config) MapProfile(p *regwave.Profile) *regwave.Profile {
	out := &regwave.Profile{
		Frequency: p.Frequency,
		Segments:  make([]regwave.Segment, len(p.Segments)),
	}
	s := c.Waveform.AmplitudeScale
	o := c.Motor.Zero + c.Waveform.Offset
	for i, seg := range p.Segments {
		out.Segments[i] = regwave.Segment{
			X0: seg.X0, X1: seg.X1,
			A: s * seg.A,
			B: s * seg.B,
			C: s * seg.C,
			D: s*seg.D + o,
		}
	}
	return out
}

// ClampTarget bounds a jog target to the motor's stroke.
func (c Config) ClampTarget(pos float64) float64 {
	lo, hi := c.Motor.Zero-c.Motor.Limit, c.Motor.Zero+c.Motor.Limit
	if pos < lo {
		return lo
	}
	if pos > hi {
		return hi
	}
	return pos
}

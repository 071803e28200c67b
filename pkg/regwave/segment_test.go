// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import (
	"errors"
	"math"
	"testing"
)

// testProfile returns a three-segment profile approximating one period
// of a ramp-hold-return stroke.
func testProfile() *Profile {
	return &Profile{
		Frequency: 2.0,
		Segments: []Segment{
			{X0: 0, X1: 0.25, A: 0, B: 0, C: 4, D: 0},
			{X0: 0.25, X1: 0.5, A: 0, B: 0, C: 0, D: 1},
			{X0: 0.5, X1: 1, A: 0, B: 0, C: -2, D: 1},
		},
	}
}

// ============================================================
// Cubic evaluation
// ============================================================

func TestSegment_Evaluate(t *testing.T) {
	tests := []struct {
		name string
		seg  Segment
		x    float64
		want float64
	}{
		{"constant", Segment{X0: 0, X1: 1, D: 3}, 0.7, 3},
		{"linear", Segment{X0: 0, X1: 0.5, C: 1}, 0.25, 0.25},
		{"linear offset origin", Segment{X0: 0.5, X1: 1, C: 2, D: 1}, 0.75, 1.5},
		{"full cubic", Segment{X0: 0.5, X1: 1, A: 2, B: -1, C: 0.5, D: 3}, 0.75, 3.09375},
		{"at left edge", Segment{X0: 0.2, X1: 0.4, A: 5, B: 5, C: 5, D: -2}, 0.2, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.seg.Evaluate(tt.x); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Evaluate(%g) = %g, want %g", tt.x, got, tt.want)
			}
		})
	}
}

// ============================================================
// Breakpoint search
// ============================================================

func TestLocate(t *testing.T) {
	bps := []float64{0, 0.25, 0.5, 1}
	tests := []struct {
		name string
		x    float64
		want int
		err  error
	}{
		{"domain start", 0, 0, nil},
		{"inside first", 0.1, 0, nil},
		{"on interior breakpoint", 0.25, 1, nil},
		{"inside second", 0.3, 1, nil},
		{"on second breakpoint", 0.5, 2, nil},
		{"near domain end", 0.999, 2, nil},
		{"at domain end", 1, 0, ErrOutOfDomain},
		{"past domain end", 1.5, 0, ErrOutOfDomain},
		{"before domain", -0.1, 0, ErrOutOfDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locate(tt.x, bps)
			if !errors.Is(err, tt.err) {
				t.Fatalf("Locate(%g): err = %v, want %v", tt.x, err, tt.err)
			}
			if err == nil && got != tt.want {
				t.Errorf("Locate(%g) = %d, want %d", tt.x, got, tt.want)
			}
		})
	}

	if _, err := Locate(0.5, []float64{0.5}); !errors.Is(err, ErrOutOfDomain) {
		t.Errorf("single breakpoint: err = %v, want ErrOutOfDomain", err)
	}
}

// ============================================================
// Profile invariants
// ============================================================

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name string
		p    Profile
		err  error
	}{
		{"valid", *testProfile(), nil},
		{"empty", Profile{Frequency: 1}, ErrEmptyProfile},
		{
			"endpoint above one",
			Profile{Segments: []Segment{{X0: 0, X1: 1.5}}},
			ErrOutOfRange,
		},
		{
			"reversed endpoints",
			Profile{Segments: []Segment{{X0: 0.8, X1: 0.2}}},
			ErrOrderingViolation,
		},
		{
			"gap between segments",
			Profile{Segments: []Segment{{X0: 0, X1: 0.4}, {X0: 0.5, X1: 1}}},
			ErrOrderingViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); !errors.Is(err, tt.err) {
				t.Errorf("Validate() = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestProfile_At(t *testing.T) {
	p := testProfile()
	tests := []struct {
		x    float64
		want float64
	}{
		{0, 0},
		{0.125, 0.5},
		{0.25, 1}, // boundary belongs to the right segment
		{0.4, 1},
		{0.75, 0.5},
	}

	for _, tt := range tests {
		got, err := p.At(tt.x)
		if err != nil {
			t.Fatalf("At(%g): %v", tt.x, err)
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("At(%g) = %g, want %g", tt.x, got, tt.want)
		}
	}

	if _, err := p.At(1); !errors.Is(err, ErrOutOfDomain) {
		t.Errorf("At(1): err = %v, want ErrOutOfDomain", err)
	}
}

func TestProfile_MaxAbsCoefficient(t *testing.T) {
	if got := testProfile().MaxAbsCoefficient(); got != 4 {
		t.Errorf("MaxAbsCoefficient() = %g, want 4", got)
	}
	var empty Profile
	if got := empty.MaxAbsCoefficient(); got != 0 {
		t.Errorf("empty profile: MaxAbsCoefficient() = %g, want 0", got)
	}
}

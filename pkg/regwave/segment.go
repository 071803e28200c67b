// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import (
	"fmt"
	"math"
	"sort"
)

// Segment is one cubic piece of a motion profile:
//
//	y(x) = A·(x−X0)³ + B·(x−X0)² + C·(x−X0) + D, valid for X0 ≤ x < X1.
//
// Segments of a profile are contiguous and sorted; X0 and X1 lie in
// [0, 1].
type Segment struct {
	X0, X1     float64
	A, B, C, D float64
}

// Evaluate computes the segment's cubic at x using Horner's rule. The
// caller is responsible for x being inside [X0, X1).
func (s Segment) Evaluate(x float64) float64 {
	dx := x - s.X0
	return ((s.A*dx+s.B)*dx+s.C)*dx + s.D
}

// Profile is an ordered sequence of contiguous cubic segments plus the
// playback frequency. A profile is immutable once transmitted: the
// sender owns it until the device acknowledges the upload.
type Profile struct {
	Frequency float64
	Segments  []Segment
}

// Breakpoints returns the segment boundaries: every X0 plus the final
// X1, len(Segments)+1 values.
func (p *Profile) Breakpoints() []float64 {
	bps := make([]float64, 0, len(p.Segments)+1)
	for _, s := range p.Segments {
		bps = append(bps, s.X0)
	}
	if n := len(p.Segments); n > 0 {
		bps = append(bps, p.Segments[n-1].X1)
	}
	return bps
}

// Validate checks the profile invariants: at least one segment, ordered
// endpoints inside [0, 1], and contiguity (each X1 equals the next X0).
func (p *Profile) Validate() error {
	if len(p.Segments) == 0 {
		return ErrEmptyProfile
	}
	for i, s := range p.Segments {
		if s.X0 < 0 || s.X0 > 1 || s.X1 < 0 || s.X1 > 1 {
			return fmt.Errorf("segment %d endpoints [%g, %g]: %w", i, s.X0, s.X1, ErrOutOfRange)
		}
		if s.X0 > s.X1 {
			return fmt.Errorf("segment %d endpoints [%g, %g]: %w", i, s.X0, s.X1, ErrOrderingViolation)
		}
		if i > 0 && p.Segments[i-1].X1 != s.X0 {
			return fmt.Errorf("segment %d starts at %g, previous ends at %g: %w",
				i, s.X0, p.Segments[i-1].X1, ErrOrderingViolation)
		}
	}
	return nil
}

// At evaluates the profile at x, locating the owning segment by binary
// search.
func (p *Profile) At(x float64) (float64, error) {
	i, err := Locate(x, p.Breakpoints())
	if err != nil {
		return 0, err
	}
	return p.Segments[i].Evaluate(x), nil
}

// MaxAbsCoefficient returns the largest coefficient magnitude across the
// profile, used to pick a μ-law normalization ceiling.
func (p *Profile) MaxAbsCoefficient() float64 {
	var maxAbs float64
	for _, s := range p.Segments {
		for _, c := range [4]float64{s.A, s.B, s.C, s.D} {
			if a := math.Abs(c); a > maxAbs {
				maxAbs = a
			}
		}
	}
	return maxAbs
}

// Locate finds the index of the rightmost breakpoint ≤ x, the segment
// that owns x. Fails with ErrOutOfDomain when x is before the first
// breakpoint or at/after the last.
func Locate(x float64, breakpoints []float64) (int, error) {
	n := len(breakpoints)
	if n < 2 || x < breakpoints[0] || x >= breakpoints[n-1] {
		return 0, fmt.Errorf("x=%g: %w", x, ErrOutOfDomain)
	}
	// SearchFloat64s returns the first index with breakpoints[i] >= x;
	// step back unless x sits exactly on a breakpoint.
	i := sort.SearchFloat64s(breakpoints, x)
	if i == n || breakpoints[i] > x {
		i--
	}
	return i, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import (
	"errors"
	"math"
	"testing"
)

// ============================================================
// Known values
// ============================================================

func TestInterval_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		word uint16
	}{
		{"full span", 0, 1, 0x00FF},
		{"point at one", 1, 1, 0xFFFF},
		{"point at zero", 0, 0, 0x0000},
		{"mid span", 0.5, 0.75, 0x80BF}, // round(127.5)=128, round(191.25)=191
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word, err := EncodeInterval(tt.a, tt.b)
			if err != nil {
				t.Fatalf("encode error: %v", err)
			}
			if word != tt.word {
				t.Errorf("EncodeInterval(%g, %g) = 0x%04X, want 0x%04X", tt.a, tt.b, word, tt.word)
			}
		})
	}
}

// ============================================================
// Precondition violations
// ============================================================

func TestInterval_EncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want error
	}{
		{"a below zero", -0.1, 0.5, ErrOutOfRange},
		{"b above one", 0.5, 1.2, ErrOutOfRange},
		{"both out", -1, 2, ErrOutOfRange},
		{"reversed", 0.7, 0.3, ErrOrderingViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeInterval(tt.a, tt.b); !errors.Is(err, tt.want) {
				t.Errorf("EncodeInterval(%g, %g): err = %v, want %v", tt.a, tt.b, err, tt.want)
			}
		})
	}
}

func TestInterval_DecodeCorruptWord(t *testing.T) {
	// High byte above low byte cannot be produced by EncodeInterval.
	if _, _, err := DecodeInterval(0xFF00); !errors.Is(err, ErrOrderingViolation) {
		t.Errorf("DecodeInterval(0xFF00): err = %v, want ErrOrderingViolation", err)
	}
}

// ============================================================
// Quantization properties
// ============================================================

func TestInterval_RoundTripBound(t *testing.T) {
	const tol = 0.5/intervalLevels + 1e-12
	for i := 0; i <= 100; i++ {
		a := float64(i) / 100 * 0.9
		b := a + 0.1
		word, err := EncodeInterval(a, b)
		if err != nil {
			t.Fatalf("encode [%g, %g]: %v", a, b, err)
		}
		da, db, err := DecodeInterval(word)
		if err != nil {
			t.Fatalf("decode 0x%04X: %v", word, err)
		}
		if math.Abs(da-a) > tol || math.Abs(db-b) > tol {
			t.Errorf("[%g, %g] round-tripped to [%g, %g]", a, b, da, db)
		}
	}
}

func TestInterval_OrderingSurvivesQuantization(t *testing.T) {
	// Endpoints closer than a grid step may collapse to the same code but
	// must never cross.
	for i := 0; i < intervalLevels; i++ {
		a := float64(i)/intervalLevels + 1e-9
		b := a + 1e-9
		word, err := EncodeInterval(a, b)
		if err != nil {
			t.Fatalf("encode [%.10f, %.10f]: %v", a, b, err)
		}
		da, db, err := DecodeInterval(word)
		if err != nil {
			t.Fatalf("decode 0x%04X: %v", word, err)
		}
		if da > db {
			t.Fatalf("ordering crossed: [%.10f, %.10f] -> [%g, %g]", a, b, da, db)
		}
	}
}

// ============================================================
// Slice helpers
// ============================================================

func TestInterval_SliceHelpers(t *testing.T) {
	a := []float64{0, 0.25, 0.5}
	b := []float64{0.25, 0.5, 1}

	words, err := EncodeIntervals(a, b)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	da, db, err := DecodeIntervals(words)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	for i := range a {
		if math.Abs(da[i]-a[i]) > 0.5/intervalLevels || math.Abs(db[i]-b[i]) > 0.5/intervalLevels {
			t.Errorf("interval %d: [%g, %g] -> [%g, %g]", i, a[i], b[i], da[i], db[i])
		}
	}

	if _, err := EncodeIntervals([]float64{0}, []float64{0.5, 1}); err == nil {
		t.Error("mismatched slice lengths: expected error")
	}
}

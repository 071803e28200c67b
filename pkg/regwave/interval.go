// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import (
	"fmt"
	"math"
)

// intervalLevels is the per-endpoint quantization grid (8 bits).
const intervalLevels = 255

// EncodeInterval packs a segment's [a, b] span into one register: high
// byte round(a·255), low byte round(b·255). Requires 0 ≤ a ≤ b ≤ 1.
func EncodeInterval(a, b float64) (uint16, error) {
	if a < 0 || a > 1 || b < 0 || b > 1 {
		return 0, fmt.Errorf("interval [%g, %g]: %w", a, b, ErrOutOfRange)
	}
	if a > b {
		return 0, fmt.Errorf("interval [%g, %g]: %w", a, b, ErrOrderingViolation)
	}
	hi := uint16(math.Round(a * intervalLevels))
	lo := uint16(math.Round(b * intervalLevels))
	return hi<<8 | lo, nil
}

// DecodeInterval recovers [a, b] to the 1/255 grid. Rounding an ordered
// pair is monotone, so a ≤ b always survives EncodeInterval; a violation
// here means the word was corrupted in transit.
func DecodeInterval(word uint16) (a, b float64, err error) {
	a = float64(word>>8) / intervalLevels
	b = float64(word&0xFF) / intervalLevels
	if a > b {
		return 0, 0, fmt.Errorf("interval word 0x%04X: %w", word, ErrOrderingViolation)
	}
	return a, b, nil
}

// EncodeIntervals packs element-wise pairs from a and b, which must have
// equal length.
func EncodeIntervals(a, b []float64) ([]uint16, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("endpoint slices of length %d and %d: %w", len(a), len(b), ErrOrderingViolation)
	}
	words := make([]uint16, len(a))
	for i := range a {
		w, err := EncodeInterval(a[i], b[i])
		if err != nil {
			return nil, fmt.Errorf("interval %d: %w", i, err)
		}
		words[i] = w
	}
	return words, nil
}

// DecodeIntervals unpacks a slice of interval words.
func DecodeIntervals(words []uint16) (a, b []float64, err error) {
	a = make([]float64, len(words))
	b = make([]float64, len(words))
	for i, w := range words {
		a[i], b[i], err = DecodeInterval(w)
		if err != nil {
			return nil, nil, fmt.Errorf("interval %d: %w", i, err)
		}
	}
	return a, b, nil
}

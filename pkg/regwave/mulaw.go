// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import "math"

// μ-law code budget: a 20-bit two's-complement integer carried as a
// 16-bit low word plus a 4-bit high nibble. The four nibbles of one
// segment's coefficients share a single packed register.
const (
	muCodeMax = 1<<19 - 1
	muCodeMin = -(1 << 19)
	muCodeGap = 1 << 20

	// DefaultMu is the compression curvature used by the rig firmware.
	DefaultMu = 255
)

// FrameWords is the register footprint of one compressed segment frame:
// four low words plus the shared high-nibble word.
const FrameWords = 5

// CoefficientCompressor packs cubic segment coefficients into 5-register
// frames using μ-law companding. Unlike the linear fixed-point codec,
// whose absolute error is constant, this codec's relative error is
// roughly constant across the dynamic range: large coefficients take
// larger absolute but similar relative error.
//
// Coefficients beyond ±MaxAbs clamp during normalization and lose
// additional precision; that is documented lossy behavior, not an error.
type CoefficientCompressor struct {
	MaxAbs float64 // normalization ceiling
	Mu     float64 // compression curvature
}

// NewCoefficientCompressor returns a compressor with the firmware's
// default curvature.
func NewCoefficientCompressor(maxAbs float64) *CoefficientCompressor {
	return &CoefficientCompressor{MaxAbs: maxAbs, Mu: DefaultMu}
}

// Compress encodes one [a,b,c,d] coefficient row per segment into a
// 5-register frame: [low16_a, low16_b, low16_c, low16_d, packed] where
// packed holds the four high nibbles, nibble i at bit 4·i.
func (c *CoefficientCompressor) Compress(rows [][4]float64) [][FrameWords]uint16 {
	frames := make([][FrameWords]uint16, len(rows))
	for i, row := range rows {
		var packed uint16
		for j, x := range row {
			code := c.quantize(x)
			frames[i][j] = uint16(uint32(code))
			packed |= uint16((uint32(code)>>16)&0xF) << (4 * j)
		}
		frames[i][4] = packed
	}
	return frames
}

// Decompress recovers coefficient rows from frames produced by Compress.
func (c *CoefficientCompressor) Decompress(frames [][FrameWords]uint16) [][4]float64 {
	rows := make([][4]float64, len(frames))
	for i, f := range frames {
		for j := 0; j < 4; j++ {
			high := uint32(f[4]>>(4*j)) & 0xF
			code := int32(high<<16 | uint32(f[j]))
			if code >= 1<<19 { // sign-extend the 20-bit code
				code -= muCodeGap
			}
			rows[i][j] = c.expand(code)
		}
	}
	return rows
}

// quantize companding-quantizes one coefficient to a 20-bit code.
func (c *CoefficientCompressor) quantize(x float64) int32 {
	// A non-positive ceiling (an all-zero profile) leaves nothing to
	// normalize against; every coefficient maps to the zero code.
	if c.MaxAbs <= 0 {
		return 0
	}
	norm := x / c.MaxAbs
	if norm > 1 {
		norm = 1
	} else if norm < -1 {
		norm = -1
	}
	compressed := math.Copysign(math.Log1p(c.Mu*math.Abs(norm))/math.Log1p(c.Mu), norm)
	code := math.Round(compressed * muCodeMax)
	if code > muCodeMax {
		code = muCodeMax
	} else if code < muCodeMin {
		code = muCodeMin
	}
	return int32(code)
}

// expand inverts quantize. A zero code decodes to exactly zero.
func (c *CoefficientCompressor) expand(code int32) float64 {
	y := float64(code) / muCodeMax
	return math.Copysign((math.Pow(1+c.Mu, math.Abs(y))-1)/c.Mu, y) * c.MaxAbs
}

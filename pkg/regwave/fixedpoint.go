// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import "fmt"

// WordOrder selects which half of a 32-bit fixed-point value travels in
// the first register of the pair. This is independent of the intra-register
// byte order, which the Modbus transport owns.
type WordOrder int

const (
	// HighLow puts the high 16 bits in the first register (default).
	HighLow WordOrder = iota
	// LowHigh puts the low 16 bits first.
	LowHigh
)

// Q16.16 quantization parameters.
const (
	fixedScale = 65536.0 // 2^16
	fixedMax   = 32768.0 - 1.0/65536.0
	fixedMin   = -32768.0
)

// FixedPointCodec converts between float64 values and Q16.16 register
// pairs. Values outside [-2^15, 2^15-2^-16] saturate at the boundary
// (clamp, not wrap), a documented lossy edge case. Quantization
// truncates toward zero, matching the rig firmware's integer cast, so
// encodings are bit-exact against the device.
//
// The zero value is a codec with HighLow word order.
type FixedPointCodec struct {
	Order WordOrder
}

// Encode packs values into 2·len(values) registers.
func (c FixedPointCodec) Encode(values []float64) []uint16 {
	words := make([]uint16, 0, WordsPerSample*len(values))
	for _, v := range values {
		hi, lo := c.encodeOne(v)
		words = append(words, hi, lo)
	}
	return words
}

func (c FixedPointCodec) encodeOne(v float64) (uint16, uint16) {
	if v > fixedMax {
		v = fixedMax
	} else if v < fixedMin {
		v = fixedMin
	}
	scaled := int32(v * fixedScale) // truncation toward zero
	hi := uint16(uint32(scaled) >> 16)
	lo := uint16(uint32(scaled))
	if c.Order == LowHigh {
		return lo, hi
	}
	return hi, lo
}

// Decode unpacks a register stream produced by Encode. The stream length
// must be even; a malformed count fails the whole call and the caller
// must discard the frame.
func (c FixedPointCodec) Decode(words []uint16) ([]float64, error) {
	if len(words)%WordsPerSample != 0 {
		return nil, fmt.Errorf("decode %d registers: %w", len(words), ErrOddWordCount)
	}
	values := make([]float64, 0, len(words)/WordsPerSample)
	for i := 0; i < len(words); i += WordsPerSample {
		hi, lo := words[i], words[i+1]
		if c.Order == LowHigh {
			hi, lo = lo, hi
		}
		raw := int32(uint32(hi)<<16 | uint32(lo))
		values = append(values, float64(raw)/fixedScale)
	}
	return values, nil
}

// Saturates reports whether v would clamp during encoding.
func (c FixedPointCodec) Saturates(v float64) bool {
	return v > fixedMax || v < fixedMin
}

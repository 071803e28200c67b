// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import (
	"fmt"
	"log"
)

// EncodingMode selects the wire encoding of segment payloads.
type EncodingMode int

const (
	// ModeRaw sends each segment as a fixed-point [x0,a,b,c,d] quintuple
	// (10 registers). Lossless within the Q16.16 range.
	ModeRaw EncodingMode = iota
	// ModeCompressed sends each segment as an interval word plus a 5-word
	// μ-law frame (6 registers). Lossy, for register-budget-constrained
	// firmware.
	ModeCompressed
)

// Register footprints per segment for each mode.
const (
	rawSegmentWords        = 10
	compressedSegmentWords = 1 + FrameWords
)

// streamTerminator marks the end of an assembled profile stream.
const streamTerminator uint16 = 1

// Chunk is one transport write: a contiguous register run at a starting
// address. Field order on the wire is address order; length is implied
// by the transport's count parameter.
type Chunk struct {
	Addr  uint16
	Words []uint16
}

// Assembler serializes a motion profile into the flat holding-register
// image the device parses: segment count, frequency, per-segment
// payload, terminator. The stream starts at RegisterMap.StreamStart.
type Assembler struct {
	Codec      FixedPointCodec
	Compressor *CoefficientCompressor // required for ModeCompressed
	Mode       EncodingMode
}

// Assemble flattens the profile into one register stream.
func (a *Assembler) Assemble(p *Profile) ([]uint16, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if a.Mode == ModeCompressed && a.Compressor == nil {
		return nil, fmt.Errorf("compressed mode without a compressor: %w", ErrMalformedStream)
	}

	perSegment := rawSegmentWords
	if a.Mode == ModeCompressed {
		perSegment = compressedSegmentWords
	}
	stream := make([]uint16, 0, 1+WordsPerSample+perSegment*len(p.Segments)+1)

	stream = append(stream, uint16(len(p.Segments)))
	stream = append(stream, a.Codec.Encode([]float64{p.Frequency})...)

	switch a.Mode {
	case ModeRaw:
		for _, s := range p.Segments {
			a.warnSaturation(s)
			stream = append(stream, a.Codec.Encode([]float64{s.X0, s.A, s.B, s.C, s.D})...)
		}
	case ModeCompressed:
		rows := make([][4]float64, len(p.Segments))
		for i, s := range p.Segments {
			rows[i] = [4]float64{s.A, s.B, s.C, s.D}
		}
		frames := a.Compressor.Compress(rows)
		for i, s := range p.Segments {
			w, err := EncodeInterval(s.X0, s.X1)
			if err != nil {
				return nil, fmt.Errorf("segment %d: %w", i, err)
			}
			stream = append(stream, w)
			stream = append(stream, frames[i][:]...)
		}
	default:
		return nil, fmt.Errorf("encoding mode %d: %w", a.Mode, ErrMalformedStream)
	}

	return append(stream, streamTerminator), nil
}

// warnSaturation logs coefficients that will clamp in the fixed-point
// codec. Clamping is not fatal; the waveform just flattens at the rail.
func (a *Assembler) warnSaturation(s Segment) {
	for _, c := range [4]float64{s.A, s.B, s.C, s.D} {
		if a.Codec.Saturates(c) {
			log.Printf("regwave: coefficient %g exceeds the Q16.16 range and will saturate", c)
		}
	}
}

// Disassemble parses an assembled stream back into a profile. The device
// firmware and the simulator run the same parse; it is also the
// round-trip check for the assembler. In raw mode each segment's X1 is
// implied by the next segment's X0 (the final segment closes the [0,1]
// domain); compressed mode carries X1 in the interval word.
func (a *Assembler) Disassemble(stream []uint16) (*Profile, error) {
	if len(stream) < 1+WordsPerSample+1 {
		return nil, fmt.Errorf("stream of %d registers: %w", len(stream), ErrMalformedStream)
	}
	count := int(stream[0])
	if count == 0 {
		return nil, ErrEmptyProfile
	}
	freq, err := a.Codec.Decode(stream[1 : 1+WordsPerSample])
	if err != nil {
		return nil, err
	}

	perSegment := rawSegmentWords
	if a.Mode == ModeCompressed {
		if a.Compressor == nil {
			return nil, fmt.Errorf("compressed mode without a compressor: %w", ErrMalformedStream)
		}
		perSegment = compressedSegmentWords
	}
	want := 1 + WordsPerSample + perSegment*count + 1
	if len(stream) < want {
		return nil, fmt.Errorf("stream of %d registers, need %d for %d segments: %w",
			len(stream), want, count, ErrMalformedStream)
	}
	if stream[want-1] != streamTerminator {
		return nil, fmt.Errorf("missing terminator: %w", ErrMalformedStream)
	}

	p := &Profile{Frequency: freq[0], Segments: make([]Segment, count)}
	body := stream[1+WordsPerSample:]
	switch a.Mode {
	case ModeRaw:
		for i := 0; i < count; i++ {
			vals, err := a.Codec.Decode(body[i*rawSegmentWords : (i+1)*rawSegmentWords])
			if err != nil {
				return nil, err
			}
			p.Segments[i] = Segment{X0: vals[0], A: vals[1], B: vals[2], C: vals[3], D: vals[4]}
		}
		for i := 0; i < count-1; i++ {
			p.Segments[i].X1 = p.Segments[i+1].X0
		}
		p.Segments[count-1].X1 = 1
	case ModeCompressed:
		for i := 0; i < count; i++ {
			frame := body[i*compressedSegmentWords : (i+1)*compressedSegmentWords]
			x0, x1, err := DecodeInterval(frame[0])
			if err != nil {
				return nil, fmt.Errorf("segment %d: %w", i, err)
			}
			var packed [FrameWords]uint16
			copy(packed[:], frame[1:])
			row := a.Compressor.Decompress([][FrameWords]uint16{packed})[0]
			p.Segments[i] = Segment{X0: x0, X1: x1, A: row[0], B: row[1], C: row[2], D: row[3]}
		}
	}
	return p, nil
}

// Split partitions a stream into contiguous chunks of at most maxWords
// registers, each stamped with its write address: the first chunk at
// startAddr, every following chunk advanced by the previous chunk's
// length. maxWords ≤ 0 selects the transport default.
func Split(stream []uint16, startAddr uint16, maxWords int) []Chunk {
	if maxWords <= 0 {
		maxWords = MaxBurstWords
	}
	chunks := make([]Chunk, 0, (len(stream)+maxWords-1)/maxWords)
	addr := startAddr
	for len(stream) > 0 {
		n := maxWords
		if n > len(stream) {
			n = len(stream)
		}
		chunks = append(chunks, Chunk{Addr: addr, Words: stream[:n:n]})
		stream = stream[n:]
		addr += uint16(n)
	}
	return chunks
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import "fmt"

// FailureThreshold is the number of consecutive failed poll cycles after
// which the poller declares the connection lost. The threshold cycle
// itself is the trigger: the 10th straight failure disconnects.
const FailureThreshold = 10

// Poller drains the device's telemetry ring. The device writes one
// Q16.16 position per control tick into a circular input-register window
// and advances a header counter; the poller computes the unread span
// from the header and its locally tracked tailer, reads it out in bursts
// of at most MaxBurstSamples, and acknowledges consumption by writing
// the header back into the tailer holding register.
//
// A Poller is owned by a single polling goroutine. Codec calls are pure;
// the mutable state here (tailer, failure counter, status) is never
// shared; hand decoded batches to other goroutines over a channel.
type Poller struct {
	transport Transport
	m         RegisterMap
	codec     FixedPointCodec

	// Stats accumulates poll-loop counters; read it from the polling
	// goroutine only (or copy it out).
	Stats *Statistics

	lastTailer uint16
	failures   int
	lost       bool
	status     Status
}

// NewPoller creates a poller over the given transport and register map.
func NewPoller(t Transport, m RegisterMap, codec FixedPointCodec) *Poller {
	return &Poller{transport: t, m: m, codec: codec, Stats: NewStatistics()}
}

// Status returns the run-state code captured by the most recent poll.
func (p *Poller) Status() Status {
	return p.status
}

// Tailer returns the locally tracked acknowledged slot.
func (p *Poller) Tailer() uint16 {
	return p.lastTailer
}

// Lost reports whether the poller has entered the terminal
// connection-lost state. Once lost, Poll keeps failing with
// ErrConnectionLost until the connection is reopened and a new poller
// resyncs.
func (p *Poller) Lost() bool {
	return p.lost
}

// Resync aligns the local tailer with the slot the device last saw
// acknowledged, from the tailer holding register. Call once after
// (re)connecting, before the first Poll.
func (p *Poller) Resync() error {
	regs, err := p.transport.ReadHoldingRegisters(p.m.Tailer, 1)
	if err != nil {
		return fmt.Errorf("resync tailer: %w", err)
	}
	if len(regs) != 1 {
		return fmt.Errorf("resync tailer: got %d registers", len(regs))
	}
	p.lastTailer = regs[0] % p.m.RingCapacity
	p.Stats.Resyncs++
	return nil
}

// Poll runs one poll cycle: read status+header, drain the unread span in
// bounded chunks honoring ring wraparound, decode, and acknowledge with
// a single tailer write. An empty ring returns (nil, nil).
//
// A failed cycle leaves the tailer untouched (nothing is lost, the next
// cycle re-reads the same span) and counts toward the consecutive
// failure threshold; the threshold cycle returns ErrConnectionLost and
// the poller stays terminally lost. If the producer laps the reader
// between polls, the oldest unconsumed samples are silently overwritten;
// the protocol tolerates that rather than correcting it.
func (p *Poller) Poll() ([]float64, error) {
	if p.lost {
		return nil, ErrConnectionLost
	}
	samples, err := p.pollOnce()
	if err != nil {
		p.failures++
		p.Stats.TransportErrors++
		if p.failures >= FailureThreshold {
			p.lost = true
			return nil, fmt.Errorf("%d consecutive poll failures: %w", p.failures, ErrConnectionLost)
		}
		return nil, err
	}
	p.failures = 0
	return samples, nil
}

func (p *Poller) pollOnce() ([]float64, error) {
	// Status and header are adjacent in the input table; one 2-register
	// burst avoids a torn read between separate round trips.
	head, err := p.transport.ReadInputRegisters(p.m.Status, 2)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(head) != 2 {
		return nil, fmt.Errorf("read header: got %d registers", len(head))
	}
	p.status = Status(head[0])

	capB := p.m.RingCapacity
	header := head[1] % capB
	unread := (header + capB - p.lastTailer) % capB
	if unread == 0 {
		p.Stats.Polls++
		p.Stats.EmptyPolls++
		return nil, nil
	}
	if unread == capB-1 {
		// High-water mark: the producer is one slot from lapping us.
		p.Stats.Overruns++
	}

	words := make([]uint16, 0, int(unread)*WordsPerSample)
	for remaining := unread; remaining > 0; {
		readLen := remaining
		if readLen > MaxBurstSamples {
			readLen = MaxBurstSamples
		}
		slot := (p.lastTailer + (unread - remaining)) % capB
		if slot+readLen > capB {
			// The span wraps: one read to the end of the window, one from
			// the start.
			first := capB - slot
			regs, err := p.readRing(slot, first)
			if err != nil {
				return nil, err
			}
			words = append(words, regs...)
			regs, err = p.readRing(0, readLen-first)
			if err != nil {
				return nil, err
			}
			words = append(words, regs...)
		} else {
			regs, err := p.readRing(slot, readLen)
			if err != nil {
				return nil, err
			}
			words = append(words, regs...)
		}
		remaining -= readLen
	}

	samples, err := p.codec.Decode(words)
	if err != nil {
		return nil, fmt.Errorf("decode ring: %w", err)
	}

	// One acknowledge per poll cycle: the chunk reads above are a single
	// logical transaction even though several physical reads happened.
	if err := p.transport.WriteRegister(p.m.Tailer, header); err != nil {
		return nil, fmt.Errorf("ack tailer: %w", err)
	}
	p.lastTailer = header

	p.Stats.Polls++
	p.Stats.Samples += uint64(len(samples))
	return samples, nil
}

// readRing reads count samples starting at the given ring slot.
func (p *Poller) readRing(slot, count uint16) ([]uint16, error) {
	addr := p.m.PositionStart + slot*WordsPerSample
	regs, err := p.transport.ReadInputRegisters(addr, count*WordsPerSample)
	if err != nil {
		return nil, fmt.Errorf("read ring slot %d: %w", slot, err)
	}
	if len(regs) != int(count)*WordsPerSample {
		return nil, fmt.Errorf("read ring slot %d: got %d registers, want %d",
			slot, len(regs), int(count)*WordsPerSample)
	}
	return regs, nil
}

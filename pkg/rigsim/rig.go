// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package rigsim

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/motionforge/rigwave/pkg/regwave"
)

// homingTicks is how many control ticks each homing phase takes. Real
// rigs home in seconds; the simulator just needs the state transitions
// to be observable.
const homingTicks = 3

// Rig emulates the firmware side of the waveform protocol on top of a
// Bank: it consumes command coils, runs the offline/homing/ready/running
// state machine, parses uploaded coefficient streams, and produces
// position telemetry into the input-register ring.
//
// Tick is the control step; call it from one goroutine (or use Run).
type Rig struct {
	bank  *Bank
	m     regwave.RegisterMap
	codec regwave.FixedPointCodec
	asm   *regwave.Assembler

	status  regwave.Status
	header  uint16
	phase   float64
	profile *regwave.Profile
	homing  int
}

// NewRig creates a rig in the offline state. The assembler's mode must
// match the encoding clients upload with.
func NewRig(bank *Bank, m regwave.RegisterMap, asm *regwave.Assembler) *Rig {
	r := &Rig{bank: bank, m: m, asm: asm, status: regwave.StatusOffline}
	r.publish()
	return r
}

// Status returns the rig's current run-state code.
func (r *Rig) Status() regwave.Status {
	return r.status
}

// Profile returns the last successfully parsed coefficient stream, nil
// before the first upload.
func (r *Rig) Profile() *regwave.Profile {
	return r.profile
}

// Tick advances the simulation by dt seconds: consume command coils,
// step the state machine, and emit one telemetry sample when running.
func (r *Rig) Tick(dt float64) {
	r.consumeCoils()

	switch r.status {
	case regwave.StatusHomingSeek:
		if r.homing++; r.homing >= homingTicks {
			r.status = regwave.StatusHomingFinal
			r.homing = 0
		}
	case regwave.StatusHomingFinal:
		if r.homing++; r.homing >= homingTicks {
			r.status = regwave.StatusReady
			r.homing = 0
		}
	case regwave.StatusRunning:
		r.emitSample(dt)
	}

	r.publish()
}

// Run ticks the rig at the given period until the context is cancelled.
func (r *Rig) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(period.Seconds())
		}
	}
}

// consumeCoils handles and self-clears any command coils the client set
// since the last tick. Order matters: power-off and reset win over
// start.
func (r *Rig) consumeCoils() {
	if r.bank.TakeCoil(r.m.CoilPowerOff) {
		r.status = regwave.StatusOffline
		r.homing = 0
	}
	if r.bank.TakeCoil(r.m.CoilPowerOn) && r.status == regwave.StatusOffline {
		r.status = regwave.StatusHomingSeek
		r.homing = 0
	}
	if r.bank.TakeCoil(r.m.CoilReset) && r.status.State() == regwave.StateFault {
		r.status = regwave.StatusReady
	}
	if r.bank.TakeCoil(r.m.CoilWriteCoefficients) {
		if err := r.loadProfile(); err != nil {
			log.Printf("rigsim: coefficient stream rejected: %v", err)
			r.status = regwave.StatusFault
		}
	}
	if r.bank.TakeCoil(r.m.CoilWriteTarget) {
		// Jog move: accepted and discarded; the simulator has no inertia
		// worth modeling between profiles.
		_ = r.bank.Holding(r.m.TargetPos)
	}
	if r.bank.TakeCoil(r.m.CoilStart) && r.status == regwave.StatusReady && r.profile != nil {
		r.status = regwave.StatusRunning
		r.phase = 0
	}
	if r.bank.TakeCoil(r.m.CoilStop) && r.status == regwave.StatusRunning {
		r.status = regwave.StatusReady
	}
}

// loadProfile parses the coefficient stream the client wrote into the
// holding table, exactly the way the firmware does.
func (r *Rig) loadProfile() error {
	count := r.bank.Holding(r.m.NumberOfInterval)
	if count == 0 {
		return regwave.ErrEmptyProfile
	}
	perSegment := 10
	if r.asm.Mode == regwave.ModeCompressed {
		perSegment = 1 + regwave.FrameWords
	}
	length := 1 + regwave.WordsPerSample + perSegment*int(count) + 1
	if int(r.m.StreamStart())+length > holdingSpace {
		return fmt.Errorf("stream of %d registers: %w", length, regwave.ErrMalformedStream)
	}

	stream := r.bank.Holdings(r.m.StreamStart(), uint16(length))
	p, err := r.asm.Disassemble(stream)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r.profile = p
	return nil
}

// emitSample advances the waveform phase and appends one position sample
// to the telemetry ring.
func (r *Rig) emitSample(dt float64) {
	r.phase += dt * r.profile.Frequency
	x := math.Mod(r.phase, 1)

	pos, err := r.profile.At(x)
	if err != nil {
		// Unreachable for a validated profile covering [0, 1).
		r.status = regwave.StatusFault
		return
	}

	slot := r.header
	r.bank.SetInputs(r.m.PositionStart+slot*regwave.WordsPerSample,
		r.codec.Encode([]float64{pos}))
	r.header = (r.header + 1) % r.m.RingCapacity
}

// publish mirrors the rig state into the input table where clients read
// it.
func (r *Rig) publish() {
	r.bank.SetInput(r.m.Status, uint16(r.status))
	r.bank.SetInput(r.m.Header, r.header)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

// Package rigsim is an in-process simulation of a Motionforge linear-motor
// test rig: a Modbus-style register bank plus the firmware's coil-driven
// run-state machine and telemetry ring producer. It backs the self-test
// command and the protocol's end-to-end tests, and can be served over a
// real Modbus listener for soak testing clients.
package rigsim

import (
	"fmt"
	"sync"

	"github.com/motionforge/rigwave/pkg/regwave"
)

// holdingSpace is the size of the simulated holding table; large enough
// for any realistic coefficient stream.
const holdingSpace = 4096

// coilSpace is the size of the simulated coil table.
const coilSpace = 16

// Bank is a thread-safe Modbus data model: input registers, holding
// registers and coils. The client side talks to it through the
// regwave.Transport methods; the device side (Rig) uses the Set/Get
// accessors. Both sides may run on different goroutines.
type Bank struct {
	mu      sync.Mutex
	m       regwave.RegisterMap
	input   []uint16
	holding []uint16
	coils   []bool
}

// NewBank creates a register bank sized for the given map's telemetry
// ring.
func NewBank(m regwave.RegisterMap) *Bank {
	return &Bank{
		m:       m,
		input:   make([]uint16, m.RingEnd()),
		holding: make([]uint16, holdingSpace),
		coils:   make([]bool, coilSpace),
	}
}

// ============================================================
// Client side (regwave.Transport)
// ============================================================

func (b *Bank) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := checkSpan("input", address, quantity, len(b.input)); err != nil {
		return nil, err
	}
	out := make([]uint16, quantity)
	copy(out, b.input[address:])
	return out, nil
}

func (b *Bank) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := checkSpan("holding", address, quantity, len(b.holding)); err != nil {
		return nil, err
	}
	out := make([]uint16, quantity)
	copy(out, b.holding[address:])
	return out, nil
}

func (b *Bank) WriteRegister(address, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := checkSpan("holding", address, 1, len(b.holding)); err != nil {
		return err
	}
	b.holding[address] = value
	return nil
}

func (b *Bank) WriteRegisters(address uint16, values []uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := checkSpan("holding", address, uint16(len(values)), len(b.holding)); err != nil {
		return err
	}
	copy(b.holding[address:], values)
	return nil
}

func (b *Bank) WriteCoil(address uint16, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(address) >= len(b.coils) {
		return fmt.Errorf("coil %d outside the table", address)
	}
	b.coils[address] = on
	return nil
}

// checkSpan validates a register access the way the rig's Modbus endpoint
// does: in-range and no wider than one burst.
func checkSpan(table string, address, quantity uint16, size int) error {
	if quantity == 0 || quantity > regwave.MaxBurstWords {
		return fmt.Errorf("%s access of %d registers exceeds the %d-register burst limit",
			table, quantity, regwave.MaxBurstWords)
	}
	if int(address)+int(quantity) > size {
		return fmt.Errorf("%s access [%d, +%d] outside the table", table, address, quantity)
	}
	return nil
}

// ============================================================
// Device side
// ============================================================

// SetInput stores one input register.
func (b *Bank) SetInput(address, value uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.input[address] = value
}

// SetInputs stores a contiguous run of input registers.
func (b *Bank) SetInputs(address uint16, values []uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.input[address:], values)
}

// Holding reads one holding register.
func (b *Bank) Holding(address uint16) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holding[address]
}

// Holdings copies a contiguous run of holding registers.
func (b *Bank) Holdings(address, quantity uint16) []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint16, quantity)
	copy(out, b.holding[address:])
	return out
}

// SetCoil stores one coil.
func (b *Bank) SetCoil(address uint16, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.coils[address] = on
}

// Coil reads one coil.
func (b *Bank) Coil(address uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.coils[address]
}

// TakeCoil reads one coil and clears it, the way the firmware consumes
// command coils.
func (b *Bank) TakeCoil(address uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	on := b.coils[address]
	b.coils[address] = false
	return on
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

// Transport is the register-level I/O the protocol needs from a Modbus
// client. Calls are blocking; a timeout is the transport's concern. The
// protocol treats "no response" and "device-reported error" identically:
// both surface as a non-nil error for that call.
//
// Implementations must be safe for use from the single polling goroutine
// that owns a Poller; they are not required to be safe for concurrent
// callers.
type Transport interface {
	// ReadInputRegisters reads quantity registers from the input table.
	ReadInputRegisters(address, quantity uint16) ([]uint16, error)
	// ReadHoldingRegisters reads quantity registers from the holding table.
	ReadHoldingRegisters(address, quantity uint16) ([]uint16, error)
	// WriteRegister writes a single holding register.
	WriteRegister(address, value uint16) error
	// WriteRegisters writes a contiguous block of holding registers.
	WriteRegisters(address uint16, values []uint16) error
	// WriteCoil sets or clears a single coil.
	WriteCoil(address uint16, on bool) error
}

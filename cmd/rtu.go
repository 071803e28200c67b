// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Motionforge

package cmd

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Modbus function codes the rig firmware implements.
const (
	fnReadHolding    = 0x03
	fnReadInput      = 0x04
	fnWriteCoil      = 0x05
	fnWriteRegister  = 0x06
	fnWriteRegisters = 0x10
)

const rtuResponseTimeout = 500 * time.Millisecond

// rtuTransport speaks Modbus RTU over a serial port. RTU is a strict
// request/response protocol, so one in-flight transaction at a time;
// the single-goroutine Transport contract covers that.
type rtuTransport struct {
	port    serial.Port
	slaveID byte
}

// OpenRTULink opens a serial Modbus RTU connection. The rig's RS-485
// settings are fixed: 8 data bits, even parity, one stop bit.
func OpenRTULink(portName string, baudRate int, slave byte) (*Link, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(rtuResponseTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	return &Link{
		Transport: &rtuTransport{port: port, slaveID: slave},
		Closer:    port,
		Info:      fmt.Sprintf("Modbus RTU: %s @ %d baud, unit %d", portName, baudRate, slave),
	}, nil
}

func (t *rtuTransport) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	return t.readRegisters(fnReadInput, address, quantity)
}

func (t *rtuTransport) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	return t.readRegisters(fnReadHolding, address, quantity)
}

func (t *rtuTransport) readRegisters(fn byte, address, quantity uint16) ([]uint16, error) {
	pdu := []byte{fn, byte(address >> 8), byte(address), byte(quantity >> 8), byte(quantity)}
	resp, err := t.transact(pdu, 2+2*int(quantity))
	if err != nil {
		return nil, err
	}
	if resp[1] != byte(2*quantity) {
		return nil, fmt.Errorf("rtu: byte count %d, want %d", resp[1], 2*quantity)
	}
	out := make([]uint16, quantity)
	for i := range out {
		out[i] = uint16(resp[2+2*i])<<8 | uint16(resp[3+2*i])
	}
	return out, nil
}

func (t *rtuTransport) WriteRegister(address, value uint16) error {
	pdu := []byte{fnWriteRegister, byte(address >> 8), byte(address), byte(value >> 8), byte(value)}
	_, err := t.transact(pdu, 5) // echo
	return err
}

func (t *rtuTransport) WriteRegisters(address uint16, values []uint16) error {
	quantity := uint16(len(values))
	pdu := make([]byte, 0, 6+2*len(values))
	pdu = append(pdu, fnWriteRegisters,
		byte(address>>8), byte(address),
		byte(quantity>>8), byte(quantity),
		byte(2*quantity))
	for _, v := range values {
		pdu = append(pdu, byte(v>>8), byte(v))
	}
	_, err := t.transact(pdu, 5) // function, address, quantity
	return err
}

func (t *rtuTransport) WriteCoil(address uint16, on bool) error {
	value := uint16(0x0000)
	if on {
		value = 0xFF00
	}
	pdu := []byte{fnWriteCoil, byte(address >> 8), byte(address), byte(value >> 8), byte(value)}
	_, err := t.transact(pdu, 5) // echo
	return err
}

// transact sends one request PDU and reads the response PDU, which must
// be pduLen bytes unless the device replies with an exception frame.
func (t *rtuTransport) transact(pdu []byte, pduLen int) ([]byte, error) {
	adu := make([]byte, 0, len(pdu)+3)
	adu = append(adu, t.slaveID)
	adu = append(adu, pdu...)
	crc := crc16(adu)
	adu = append(adu, byte(crc), byte(crc>>8)) // CRC is little-endian on the wire

	if err := t.port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("rtu: flush: %w", err)
	}
	if _, err := t.port.Write(adu); err != nil {
		return nil, fmt.Errorf("rtu: write: %w", err)
	}

	// Shortest possible reply is an exception frame: address, function,
	// exception code, CRC.
	buf := make([]byte, 3+pduLen+2)
	if err := t.readFull(buf[:5]); err != nil {
		return nil, err
	}
	if buf[0] != t.slaveID {
		return nil, fmt.Errorf("rtu: reply from unit %d, want %d", buf[0], t.slaveID)
	}

	// An exception frame is exactly 5 bytes and is already complete.
	n := 5
	if buf[1]&0x80 == 0 {
		n = 1 + pduLen + 2
		if err := t.readFull(buf[5:n]); err != nil {
			return nil, err
		}
	}

	if got, want := uint16(buf[n-2])|uint16(buf[n-1])<<8, crc16(buf[:n-2]); got != want {
		return nil, fmt.Errorf("rtu: crc 0x%04X, want 0x%04X", got, want)
	}
	if buf[1]&0x80 != 0 {
		return nil, fmt.Errorf("rtu: exception 0x%02X for function 0x%02X", buf[2], buf[1]&0x7F)
	}
	if buf[1] != pdu[0] {
		return nil, fmt.Errorf("rtu: reply function 0x%02X, want 0x%02X", buf[1], pdu[0])
	}
	return buf[1:n-2], nil
}

// readFull reads exactly len(p) bytes, honoring the port's read timeout.
// go.bug.st/serial returns n == 0 with a nil error on timeout.
func (t *rtuTransport) readFull(p []byte) error {
	off := 0
	for off < len(p) {
		n, err := t.port.Read(p[off:])
		if err != nil {
			return fmt.Errorf("rtu: read: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("rtu: timeout after %d of %d bytes", off, len(p))
		}
		off += n
	}
	return nil
}

// crc16 is the CRC-16/MODBUS checksum (poly 0xA001 reflected, init
// 0xFFFF).
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

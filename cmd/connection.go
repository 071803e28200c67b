// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Motionforge

package cmd

import (
	"fmt"
	"io"

	modbus "github.com/things-go/go-modbus"

	"github.com/motionforge/rigwave/pkg/regwave"
)

// Link is an open rig connection: the protocol transport plus the
// underlying closer.
type Link struct {
	regwave.Transport
	io.Closer
	Info string
}

// tcpTransport adapts the go-modbus TCP client to regwave.Transport,
// binding the slave ID the protocol layer does not care about.
type tcpTransport struct {
	client  modbus.Client
	slaveID byte
}

func (t *tcpTransport) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	return t.client.ReadInputRegisters(t.slaveID, address, quantity)
}

func (t *tcpTransport) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	return t.client.ReadHoldingRegisters(t.slaveID, address, quantity)
}

func (t *tcpTransport) WriteRegister(address, value uint16) error {
	return t.client.WriteSingleRegister(t.slaveID, address, value)
}

func (t *tcpTransport) WriteRegisters(address uint16, values []uint16) error {
	return t.client.WriteMultipleRegisters(t.slaveID, address, uint16(len(values)), values)
}

func (t *tcpTransport) WriteCoil(address uint16, on bool) error {
	return t.client.WriteSingleCoil(t.slaveID, address, on)
}

// OpenTCPLink connects to a rig over Modbus TCP.
func OpenTCPLink(host string, port int, slave byte) (*Link, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	provider := modbus.NewTCPClientProvider(addr)
	client := modbus.NewClient(provider)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Link{
		Transport: &tcpTransport{client: client, slaveID: slave},
		Closer:    client,
		Info:      fmt.Sprintf("Modbus TCP: %s unit %d", addr, slave),
	}, nil
}

// OpenLink opens either a TCP or RTU connection based on the persistent
// flags.
func OpenLink() (*Link, error) {
	if serialPort != "" {
		return OpenRTULink(serialPort, baudRate, slaveID)
	}
	if tcpHost != "" {
		return OpenTCPLink(tcpHost, tcpPort, slaveID)
	}
	return nil, fmt.Errorf("either --host or --serial must be specified")
}

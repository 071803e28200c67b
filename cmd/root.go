// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Motionforge

package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	// Modbus TCP connection flags
	tcpHost string
	tcpPort int
	slaveID uint8

	// Modbus RTU connection flags
	serialPort string
	baudRate   int

	// Shared flags
	configPath   string
	pollInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "rigwave",
	Short: "Motionforge linear-motor rig waveform uploader and telemetry poller",
	Long: `Rigwave - A CLI tool for driving Motionforge linear-motor test rigs.

Encodes piecewise-cubic motion profiles into the rig's 16-bit register
protocol, uploads them in bounded register bursts, and drains live
position telemetry out of the rig's polled ring buffer.

Connection modes:
  Modbus TCP: --host 192.168.10.50 [--port 502] [--slave 1]
  Modbus RTU: --serial /dev/ttyUSB0 [--baud 19200] [--slave 1]

Register layout, motor limits and waveform mapping are read from a YAML
configuration file (--config); every field has a built-in default
matching current rig firmware.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tcpHost, "host", "", "Rig hostname or IP (Modbus TCP)")
	rootCmd.PersistentFlags().IntVar(&tcpPort, "port", 502, "Modbus TCP port")
	rootCmd.PersistentFlags().Uint8Var(&slaveID, "slave", 1, "Modbus slave/unit ID")

	rootCmd.PersistentFlags().StringVarP(&serialPort, "serial", "s", "", "Serial port device (Modbus RTU)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 19200, "Baud rate (RTU only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "interval", 100*time.Millisecond, "Telemetry poll interval")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

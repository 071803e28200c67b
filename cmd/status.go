// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Motionforge

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/motionforge/rigwave/pkg/regwave"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "One-shot rig state dump",
	Long: `Read and print the rig's run state, ring header, acknowledged tailer
and the number of unread telemetry samples. Does not consume anything:
the tailer is left untouched.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	m := cfg.RegisterMap()

	link, err := OpenLink()
	if err != nil {
		return err
	}
	defer link.Close()

	head, err := link.ReadInputRegisters(m.Status, 2)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if len(head) != 2 {
		return fmt.Errorf("read status: got %d registers", len(head))
	}
	tail, err := link.ReadHoldingRegisters(m.Tailer, 1)
	if err != nil {
		return fmt.Errorf("read tailer: %w", err)
	}
	if len(tail) != 1 {
		return fmt.Errorf("read tailer: got %d registers", len(tail))
	}

	status := regwave.Status(head[0])
	header := head[1] % m.RingCapacity
	tailer := tail[0] % m.RingCapacity
	unread := (header + m.RingCapacity - tailer) % m.RingCapacity

	fmt.Printf("Connection: %s\n", link.Info)
	fmt.Printf("State:      %v\n", status)
	fmt.Printf("Header:     %d\n", header)
	fmt.Printf("Tailer:     %d\n", tailer)
	fmt.Printf("Unread:     %d of %d samples\n", unread, m.RingCapacity)
	return nil
}

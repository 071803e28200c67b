// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge
//
// Rigwave - Motionforge linear-motor rig waveform uploader and
// telemetry poller.

package main

import (
	"os"

	"github.com/motionforge/rigwave/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Motionforge

package cmd

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/motionforge/rigwave/pkg/regwave"
	"github.com/motionforge/rigwave/pkg/rigsim"
)

var (
	selfTestCompress bool
	selfTestSamples  int
)

var selfTestCmd = &cobra.Command{
	Use:   "self_test",
	Short: "Run the protocol against the in-process rig simulator",
	Long: `Exercise the full protocol round trip without hardware.

Starts the in-process rig simulator, uploads a reference profile, drives
the power/start sequence, polls telemetry back out of the ring, and
verifies every sample against the reference waveform within codec
tolerance.

Exit codes:
  0 - All samples within tolerance
  1 - Fidelity check failed
  2 - Protocol error

Useful as a smoke test after changing codecs or the register map.`,
	RunE: runSelfTest,
}

func init() {
	rootCmd.AddCommand(selfTestCmd)
	selfTestCmd.Flags().BoolVar(&selfTestCompress, "compress", false, "Use μ-law compressed upload")
	selfTestCmd.Flags().IntVar(&selfTestSamples, "samples", 2500, "Telemetry samples to verify (wraps the ring above 1000)")
}

// selfTestProfile is a full-stroke reference waveform with a cubic
// ease-in, a hold, and a linear return.
func selfTestProfile() *regwave.Profile {
	return &regwave.Profile{
		Frequency: 2.0,
		Segments: []regwave.Segment{
			{X0: 0, X1: 0.25, A: -128, B: 48, C: 0, D: 0},
			{X0: 0.25, X1: 0.5, D: 1},
			{X0: 0.5, X1: 1, C: -2, D: 1},
		},
	}
}

func runSelfTest(cmd *cobra.Command, args []string) error {
	fmt.Printf("Rigwave - Self Test\n")

	p := selfTestProfile()
	asm := newAssembler(p, selfTestCompress)
	tolerance := 3.0 / 65536.0
	if selfTestCompress {
		tolerance = 0.05
	}

	m := regwave.DefaultRegisterMap()
	bank := rigsim.NewBank(m)
	rig := rigsim.NewRig(bank, m, asm)

	mode := "raw"
	if selfTestCompress {
		mode = "compressed"
	}
	fmt.Printf("Encoding: %s, verifying %d samples\n\n", mode, selfTestSamples)

	fail := func(code int, format string, a ...any) error {
		fmt.Fprintf(os.Stderr, format+"\n", a...)
		os.Exit(code)
		return nil
	}

	// Upload and power sequence.
	bursts, err := UploadProfile(bank, m, asm, p)
	if err != nil {
		return fail(2, "Upload failed: %v", err)
	}
	fmt.Printf("Uploaded %d segment(s) in %d burst(s)\n", len(p.Segments), bursts)

	bank.WriteCoil(m.CoilPowerOn, true)
	for i := 0; i < 20 && rig.Status() != regwave.StatusReady; i++ {
		rig.Tick(0.001)
	}
	if rig.Status() != regwave.StatusReady {
		return fail(2, "Rig never reached READY: %v", rig.Status())
	}
	bank.WriteCoil(m.CoilStart, true)
	rig.Tick(0.001)
	if rig.Status() != regwave.StatusRunning {
		return fail(2, "Rig never started: %v", rig.Status())
	}

	poller := regwave.NewPoller(bank, m, regwave.FixedPointCodec{})
	if err := poller.Resync(); err != nil {
		return fail(2, "Resync failed: %v", err)
	}

	// Interleave production and draining so the header wraps the ring.
	// Sample n is emitted on the nth tick after start (the start tick
	// itself produced sample 1).
	const dt = 0.001
	verified := 0
	worst := 0.0
	for verified < selfTestSamples {
		for i := 0; i < 90; i++ {
			rig.Tick(dt)
		}

		samples, err := poller.Poll()
		if err != nil {
			return fail(2, "Poll failed: %v", err)
		}
		for _, got := range samples {
			verified++
			x := math.Mod(float64(verified)*dt*p.Frequency, 1)
			want, err := p.At(x)
			if err != nil {
				return fail(2, "Reference evaluation at %g failed: %v", x, err)
			}
			if diff := math.Abs(got - want); diff > worst {
				worst = diff
			}
			if math.Abs(got-want) > tolerance {
				return fail(1, "FIDELITY: sample %d (x=%g) = %.6f, want %.6f (tolerance %g)",
					verified, x, got, want, tolerance)
			}
			if verified == selfTestSamples {
				break
			}
		}
	}

	fmt.Printf("SUCCESS: %d samples within %.2g (worst error %.2g)\n\n", verified, tolerance, worst)
	fmt.Print(poller.Stats.String())
	return nil
}

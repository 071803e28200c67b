// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Motionforge

package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/motionforge/rigwave/pkg/regwave"
)

var (
	runProfilePath string
	runCompress    bool
	runRecordPath  string
	runDuration    time.Duration
	runQuiet       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload a motion profile and stream telemetry",
	Long: `Upload a motion profile to the rig and run it.

The profile is assembled into the rig's register stream, written in
bounded bursts, and latched with the write-coefficients coil. The rig is
then powered on (homing, if it was offline), started, and polled for
position telemetry until the duration elapses or Ctrl-C.

With --record, every sample is appended to a CSV file
(sequence, unix_ms, position). The stop coil is always raised on exit.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runProfilePath, "profile", "f", "", "Motion profile YAML file (required)")
	runCmd.Flags().BoolVar(&runCompress, "compress", false, "Upload μ-law compressed coefficients")
	runCmd.Flags().StringVar(&runRecordPath, "record", "", "Record telemetry to a CSV file")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "Stop after this long (0 = until interrupted)")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress per-poll position output")
	runCmd.MarkFlagRequired("profile")
}

// UploadProfile writes an assembled profile stream in bounded bursts
// and latches it with the write-coefficients coil.
func UploadProfile(t regwave.Transport, m regwave.RegisterMap, asm *regwave.Assembler, p *regwave.Profile) (int, error) {
	stream, err := asm.Assemble(p)
	if err != nil {
		return 0, err
	}
	chunks := regwave.Split(stream, m.StreamStart(), 0)
	for _, ch := range chunks {
		if err := t.WriteRegisters(ch.Addr, ch.Words); err != nil {
			return 0, fmt.Errorf("write burst at %d: %w", ch.Addr, err)
		}
	}
	if err := t.WriteCoil(m.CoilWriteCoefficients, true); err != nil {
		return 0, fmt.Errorf("latch coefficients: %w", err)
	}
	return len(chunks), nil
}

// awaitState polls the status register until the rig reaches the wanted
// display state or the context expires.
func awaitState(ctx context.Context, t regwave.Transport, m regwave.RegisterMap, want regwave.State) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		regs, err := t.ReadInputRegisters(m.Status, 1)
		if err == nil && len(regs) == 1 {
			status := regwave.Status(regs[0])
			if status.State() == want {
				return nil
			}
			if status.State() == regwave.StateFault {
				return fmt.Errorf("rig faulted while waiting for %v: %v", want, status)
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %v: %w", want, ctx.Err())
		case <-ticker.C:
		}
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	p, err := LoadProfile(runProfilePath)
	if err != nil {
		return err
	}
	mapped := cfg.MapProfile(p)
	asm := newAssembler(mapped, runCompress)
	m := cfg.RegisterMap()

	link, err := OpenLink()
	if err != nil {
		return err
	}
	defer link.Close()

	var recorder *csv.Writer
	if runRecordPath != "" {
		f, err := os.Create(runRecordPath)
		if err != nil {
			return fmt.Errorf("open record file: %w", err)
		}
		defer f.Close()
		recorder = csv.NewWriter(f)
		defer recorder.Flush()
		recorder.Write([]string{"seq", "unix_ms", "position"})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	fmt.Printf("Rigwave - Run\n")
	fmt.Printf("Connection: %s\n", link.Info)

	bursts, err := UploadProfile(link, m, asm, mapped)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %d segment(s) in %d burst(s)\n", len(mapped.Segments), bursts)

	if err := link.WriteCoil(m.CoilPowerOn, true); err != nil {
		return fmt.Errorf("power on: %w", err)
	}
	fmt.Printf("Waiting for homing...\n")
	if err := awaitState(ctx, link, m, regwave.StateReady); err != nil {
		return err
	}
	if err := link.WriteCoil(m.CoilStart, true); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	fmt.Printf("Running at %g Hz; Ctrl-C to stop\n\n", mapped.Frequency)

	poller := regwave.NewPoller(link, m, regwave.FixedPointCodec{})
	if err := poller.Resync(); err != nil {
		return err
	}

	var seq uint64
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-ctx.Done():
			break poll
		case <-ticker.C:
		}

		samples, err := poller.Poll()
		if err != nil {
			if errors.Is(err, regwave.ErrConnectionLost) {
				fmt.Fprintf(os.Stderr, "Connection lost: %v\n", err)
				break poll
			}
			fmt.Fprintf(os.Stderr, "Poll failed (will retry): %v\n", err)
			continue
		}

		now := time.Now().UnixMilli()
		for _, pos := range samples {
			seq++
			if recorder != nil {
				recorder.Write([]string{
					strconv.FormatUint(seq, 10),
					strconv.FormatInt(now, 10),
					strconv.FormatFloat(pos, 'g', -1, 64),
				})
			}
		}
		if !runQuiet && len(samples) > 0 {
			fmt.Printf("\r%v  samples=%d  last=%.5f", poller.Status(), seq, samples[len(samples)-1])
		}
	}

	fmt.Printf("\n\nStopping...\n")
	if err := link.WriteCoil(m.CoilStop, true); err != nil {
		fmt.Fprintf(os.Stderr, "Stop coil failed: %v\n", err)
	}
	fmt.Print(poller.Stats.String())
	return nil
}

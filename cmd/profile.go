// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Motionforge

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/motionforge/rigwave/pkg/regwave"
)

// profileFile is the on-disk YAML shape of a motion profile: playback
// frequency plus ready cubic coefficient rows. Rigwave does not
// construct interpolations; profile files carry finished coefficients.
type profileFile struct {
	Frequency float64 `yaml:"frequency"`
	Segments  []struct {
		X0 float64 `yaml:"x0"`
		X1 float64 `yaml:"x1"`
		A  float64 `yaml:"a"`
		B  float64 `yaml:"b"`
		C  float64 `yaml:"c"`
		D  float64 `yaml:"d"`
	} `yaml:"segments"`
}

// LoadProfile reads and validates a YAML profile file.
func LoadProfile(path string) (*regwave.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}

	p := &regwave.Profile{
		Frequency: pf.Frequency,
		Segments:  make([]regwave.Segment, len(pf.Segments)),
	}
	for i, s := range pf.Segments {
		p.Segments[i] = regwave.Segment{X0: s.X0, X1: s.X1, A: s.A, B: s.B, C: s.C, D: s.D}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	if p.Frequency <= 0 {
		return nil, fmt.Errorf("profile %s: frequency %g must be positive", path, p.Frequency)
	}
	return p, nil
}

// newAssembler builds the assembler for the selected encoding mode,
// deriving the μ-law ceiling from the profile itself.
func newAssembler(p *regwave.Profile, compress bool) *regwave.Assembler {
	if !compress {
		return &regwave.Assembler{Mode: regwave.ModeRaw}
	}
	return &regwave.Assembler{
		Mode:       regwave.ModeCompressed,
		Compressor: regwave.NewCoefficientCompressor(p.MaxAbsCoefficient()),
	}
}

var profileCompress bool

var profileCmd = &cobra.Command{
	Use:   "profile <file.yaml>",
	Short: "Inspect a motion profile file",
	Long: `Load, validate and describe a motion profile file.

Prints the segment table after applying the configured waveform mapping,
plus the register footprint of the assembled stream and how many write
bursts the upload takes.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().BoolVar(&profileCompress, "compress", false, "Describe the μ-law compressed encoding")
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	p, err := LoadProfile(args[0])
	if err != nil {
		return err
	}
	mapped := cfg.MapProfile(p)

	fmt.Printf("Profile: %s\n", args[0])
	fmt.Printf("Frequency: %g Hz\n", mapped.Frequency)
	fmt.Printf("Segments: %d\n\n", len(mapped.Segments))
	fmt.Printf("  %-3s %-8s %-8s %12s %12s %12s %12s\n", "#", "x0", "x1", "a", "b", "c", "d")
	for i, s := range mapped.Segments {
		fmt.Printf("  %-3d %-8.5f %-8.5f %12.5f %12.5f %12.5f %12.5f\n",
			i, s.X0, s.X1, s.A, s.B, s.C, s.D)
	}

	asm := newAssembler(mapped, profileCompress)
	stream, err := asm.Assemble(mapped)
	if err != nil {
		return err
	}
	chunks := regwave.Split(stream, cfg.RegisterMap().StreamStart(), 0)

	mode := "raw fixed-point"
	if profileCompress {
		mode = fmt.Sprintf("μ-law compressed (ceiling %g)", mapped.MaxAbsCoefficient())
	}
	fmt.Printf("\nEncoding: %s\n", mode)
	fmt.Printf("Stream: %d registers in %d write burst(s)\n", len(stream), len(chunks))
	return nil
}

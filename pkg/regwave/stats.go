// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import (
	"fmt"
	"time"
)

// Statistics tracks poll-loop health: cycles, drained samples, transport
// failures and ring overrun sightings. The poller updates it in place;
// hand a copy across goroutines, never the live struct.
type Statistics struct {
	StartTime      time.Time
	LastSampleTime time.Time

	// Counters
	Polls           uint64 // completed poll cycles (including empty ones)
	EmptyPolls      uint64 // cycles with no unread samples
	Samples         uint64 // decoded position samples
	TransportErrors uint64 // failed poll cycles
	Overruns        uint64 // unread count hit the ring high-water mark
	Resyncs         uint64 // tailer re-reads after (re)connect

	// Rates (calculated)
	PollRate   float64 // polls/sec
	SampleRate float64 // samples/sec
}

// NewStatistics creates a statistics tracker starting now.
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{StartTime: now, LastSampleTime: now}
}

// CalculateRates refreshes the derived rate fields.
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PollRate = float64(s.Polls) / elapsed
		s.SampleRate = float64(s.Samples) / elapsed
	}
}

// String returns a formatted summary block.
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)
	var errPercent float64
	cycles := s.Polls + s.TransportErrors
	if cycles > 0 {
		errPercent = float64(s.TransportErrors) * 100.0 / float64(cycles)
	}

	result := fmt.Sprintf("=== Telemetry statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Poll cycles:     %8d (%d empty)\n", s.Polls, s.EmptyPolls)
	result += fmt.Sprintf("Samples:         %8d\n", s.Samples)
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("Failed cycles:   %8d (%.1f%%)\n", s.TransportErrors, errPercent)
	}
	if s.Overruns > 0 {
		result += fmt.Sprintf("Ring overruns:   %8d\n", s.Overruns)
	}
	if s.Resyncs > 0 {
		result += fmt.Sprintf("Tailer resyncs:  %8d\n", s.Resyncs)
	}
	result += fmt.Sprintf("Poll rate:       %8.1f polls/sec\n", s.PollRate)
	result += fmt.Sprintf("Sample rate:     %8.1f samples/sec\n", s.SampleRate)
	result += "==========================================\n"
	return result
}

// Reset clears all counters and restarts the clock.
func (s *Statistics) Reset() {
	now := time.Now()
	*s = Statistics{StartTime: now, LastSampleTime: now}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import "fmt"

// Status is the raw run-state code the device publishes in its status
// input register.
type Status uint16

// Status code values.
const (
	StatusOffline     Status = 1
	StatusHomingSeek  Status = 2
	StatusHomingFinal Status = 3
	StatusReady       Status = 4
	StatusRunning     Status = 5
	StatusFault       Status = 6
	StatusFaultLatch  Status = 7
)

// State is the display state a status code maps to. Several raw codes
// collapse onto one state (both homing phases, both fault codes).
type State int

// Display states.
const (
	StateUnknown State = iota
	StateOffline
	StateHoming
	StateReady
	StateRunning
	StateFault
)

// State maps the raw code onto its display state. Codes outside the
// taxonomy are unknown, not an error: newer firmware may add codes.
func (s Status) State() State {
	switch s {
	case StatusOffline:
		return StateOffline
	case StatusHomingSeek, StatusHomingFinal:
		return StateHoming
	case StatusReady:
		return StateReady
	case StatusRunning:
		return StateRunning
	case StatusFault, StatusFaultLatch:
		return StateFault
	default:
		return StateUnknown
	}
}

func (s State) String() string {
	switch s {
	case StateOffline:
		return "OFFLINE"
	case StateHoming:
		return "HOMING"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateFault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

func (s Status) String() string {
	return fmt.Sprintf("%s (%d)", s.State(), uint16(s))
}

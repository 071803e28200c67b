// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import "errors"

// Codec and protocol error kinds. Codec errors are synchronous and local
// to the failing call; the caller discards the offending frame. Transport
// errors are returned per poll cycle and only escalate to
// ErrConnectionLost after the consecutive-failure threshold.
var (
	// ErrOddWordCount reports a register stream whose length is not a
	// multiple of the two words a Q16.16 sample occupies.
	ErrOddWordCount = errors.New("register count is not a multiple of the sample width")

	// ErrOutOfRange reports an interval endpoint outside [0, 1].
	ErrOutOfRange = errors.New("interval endpoint outside [0, 1]")

	// ErrOrderingViolation reports interval endpoints with a > b.
	ErrOrderingViolation = errors.New("interval endpoints out of order")

	// ErrOutOfDomain reports an evaluation point outside the profile's
	// breakpoint span.
	ErrOutOfDomain = errors.New("point outside profile domain")

	// ErrEmptyProfile reports a profile with no segments.
	ErrEmptyProfile = errors.New("profile has no segments")

	// ErrMalformedStream reports an assembled register stream that cannot
	// be parsed back into a profile (truncated, bad count, missing
	// terminator).
	ErrMalformedStream = errors.New("malformed profile register stream")

	// ErrConnectionLost is the poller's terminal state after the
	// consecutive-failure threshold; the connection must be reopened and
	// the poller resynced.
	ErrConnectionLost = errors.New("connection lost")
)

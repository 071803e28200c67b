// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Batch is one poll cycle's decoded telemetry, the immutable snapshot
// handed from the polling goroutine to consumers (TUI, websocket, MQTT).
// The CBOR encoding uses integer keys to keep frames small on the wire.
type Batch struct {
	Seq        uint64    `cbor:"1,keyasint" json:"seq"`
	Status     uint16    `cbor:"2,keyasint" json:"status"`
	Positions  []float64 `cbor:"3,keyasint" json:"positions"`
	UnixMillis int64     `cbor:"4,keyasint" json:"unix_millis"`
}

// NewBatch stamps a decoded sample run with the current time.
func NewBatch(seq uint64, status Status, positions []float64) Batch {
	return Batch{
		Seq:        seq,
		Status:     uint16(status),
		Positions:  positions,
		UnixMillis: time.Now().UnixMilli(),
	}
}

// EncodeBatch serializes a batch to CBOR.
func EncodeBatch(b Batch) ([]byte, error) {
	data, err := cbor.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}

// DecodeBatch parses a CBOR-encoded batch.
func DecodeBatch(data []byte) (Batch, error) {
	var b Batch
	if err := cbor.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	return b, nil
}

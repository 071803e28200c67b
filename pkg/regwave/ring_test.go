// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Motionforge

package regwave

import (
	"errors"
	"fmt"
	"testing"
)

// fakeLink is an in-memory Transport scripted by the tests: a register
// image plus call logging and failure injection.
type fakeLink struct {
	m RegisterMap

	status    uint16
	header    uint16
	ring      []uint16 // RingCapacity·WordsPerSample input registers
	tailerReg uint16   // holding-table tailer

	failuresLeft  int  // fail this many upcoming calls
	failRingReads bool // fail ring-window reads only

	ringReads []fakeBurst
	acks      []uint16
}

type fakeBurst struct{ addr, qty uint16 }

func newFakeLink(m RegisterMap) *fakeLink {
	return &fakeLink{m: m, ring: make([]uint16, int(m.RingCapacity)*WordsPerSample)}
}

// fillRing stores slotValue(slot) at each of the given ring slots.
func (f *fakeLink) fillRing(codec FixedPointCodec, slots ...uint16) {
	for _, slot := range slots {
		copy(f.ring[int(slot)*WordsPerSample:], codec.Encode([]float64{slotValue(slot)}))
	}
}

func slotValue(slot uint16) float64 {
	return float64(slot) / 100
}

func (f *fakeLink) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	if f.failuresLeft > 0 && (!f.failRingReads || address != f.m.Status) {
		f.failuresLeft--
		return nil, errors.New("i/o timeout")
	}
	if address == f.m.Status && quantity == 2 {
		return []uint16{f.status, f.header}, nil
	}
	start := int(address - f.m.PositionStart)
	if start < 0 || start+int(quantity) > len(f.ring) {
		return nil, fmt.Errorf("input read [%d, +%d] outside the ring window", address, quantity)
	}
	f.ringReads = append(f.ringReads, fakeBurst{addr: address, qty: quantity})
	return f.ring[start : start+int(quantity) : start+int(quantity)], nil
}

func (f *fakeLink) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errors.New("i/o timeout")
	}
	if address == f.m.Tailer && quantity == 1 {
		return []uint16{f.tailerReg}, nil
	}
	return nil, fmt.Errorf("unexpected holding read [%d, +%d]", address, quantity)
}

func (f *fakeLink) WriteRegister(address, value uint16) error {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return errors.New("i/o timeout")
	}
	if address != f.m.Tailer {
		return fmt.Errorf("unexpected register write at %d", address)
	}
	f.tailerReg = value
	f.acks = append(f.acks, value)
	return nil
}

func (f *fakeLink) WriteRegisters(address uint16, values []uint16) error {
	return fmt.Errorf("unexpected block write at %d", address)
}

func (f *fakeLink) WriteCoil(address uint16, on bool) error {
	return fmt.Errorf("unexpected coil write at %d", address)
}

// ============================================================
// Drain cycles
// ============================================================

func TestPoller_EmptyRing(t *testing.T) {
	link := newFakeLink(DefaultRegisterMap())
	p := NewPoller(link, link.m, FixedPointCodec{})

	samples, err := p.Poll()
	if err != nil {
		t.Fatalf("poll error: %v", err)
	}
	if samples != nil {
		t.Errorf("expected no samples, got %d", len(samples))
	}
	if p.Stats.Polls != 1 || p.Stats.EmptyPolls != 1 {
		t.Errorf("stats = %d polls / %d empty, want 1/1", p.Stats.Polls, p.Stats.EmptyPolls)
	}
	if len(link.acks) != 0 {
		t.Errorf("empty poll acknowledged the tailer: %v", link.acks)
	}
}

func TestPoller_SimpleDrain(t *testing.T) {
	link := newFakeLink(DefaultRegisterMap())
	codec := FixedPointCodec{}
	p := NewPoller(link, link.m, codec)

	link.header = 5
	link.fillRing(codec, 0, 1, 2, 3, 4)

	samples, err := p.Poll()
	if err != nil {
		t.Fatalf("poll error: %v", err)
	}
	if len(samples) != 5 {
		t.Fatalf("got %d samples, want 5", len(samples))
	}
	for i, got := range samples {
		if err := checkTol(got, slotValue(uint16(i)), 1.0/65536.0); err != nil {
			t.Errorf("sample %d: %v", i, err)
		}
	}
	if len(link.ringReads) != 1 {
		t.Errorf("ring reads = %v, want a single burst", link.ringReads)
	}
	if len(link.acks) != 1 || link.acks[0] != 5 {
		t.Errorf("tailer acks = %v, want [5]", link.acks)
	}
	if p.Tailer() != 5 {
		t.Errorf("local tailer = %d, want 5", p.Tailer())
	}

	// Nothing new: the next cycle is empty.
	samples, err = p.Poll()
	if err != nil || samples != nil {
		t.Errorf("second poll: samples=%d err=%v, want empty", len(samples), err)
	}
}

func TestPoller_WraparoundSplit(t *testing.T) {
	link := newFakeLink(DefaultRegisterMap())
	codec := FixedPointCodec{}
	p := NewPoller(link, link.m, codec)

	// Producer wrapped: 7 unread samples in slots 998, 999, 0..4.
	p.lastTailer = 998
	link.header = 5
	link.fillRing(codec, 998, 999, 0, 1, 2, 3, 4)

	samples, err := p.Poll()
	if err != nil {
		t.Fatalf("poll error: %v", err)
	}
	want := []uint16{998, 999, 0, 1, 2, 3, 4}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(samples), len(want))
	}
	for i, slot := range want {
		if err := checkTol(samples[i], slotValue(slot), 1.0/65536.0); err != nil {
			t.Errorf("sample %d (slot %d): %v", i, slot, err)
		}
	}

	// Exactly two bursts: the tail of the window, then the head.
	m := link.m
	wantReads := []fakeBurst{
		{addr: m.PositionStart + 998*WordsPerSample, qty: 2 * WordsPerSample},
		{addr: m.PositionStart, qty: 5 * WordsPerSample},
	}
	if len(link.ringReads) != 2 || link.ringReads[0] != wantReads[0] || link.ringReads[1] != wantReads[1] {
		t.Errorf("ring reads = %v, want %v", link.ringReads, wantReads)
	}
	if len(link.acks) != 1 || link.acks[0] != 5 {
		t.Errorf("tailer acks = %v, want a single ack of 5", link.acks)
	}
}

func TestPoller_BurstCap(t *testing.T) {
	link := newFakeLink(DefaultRegisterMap())
	codec := FixedPointCodec{}
	p := NewPoller(link, link.m, codec)

	link.header = 150
	slots := make([]uint16, 150)
	for i := range slots {
		slots[i] = uint16(i)
	}
	link.fillRing(codec, slots...)

	samples, err := p.Poll()
	if err != nil {
		t.Fatalf("poll error: %v", err)
	}
	if len(samples) != 150 {
		t.Fatalf("got %d samples, want 150", len(samples))
	}

	// 150 samples exceed the per-burst cap: 60 + 60 + 30.
	m := link.m
	wantReads := []fakeBurst{
		{addr: m.PositionStart, qty: 120},
		{addr: m.PositionStart + 60*WordsPerSample, qty: 120},
		{addr: m.PositionStart + 120*WordsPerSample, qty: 60},
	}
	if len(link.ringReads) != len(wantReads) {
		t.Fatalf("ring reads = %v, want %v", link.ringReads, wantReads)
	}
	for i, r := range link.ringReads {
		if r != wantReads[i] {
			t.Errorf("ring read %d = %v, want %v", i, r, wantReads[i])
		}
	}
	if len(link.acks) != 1 || link.acks[0] != 150 {
		t.Errorf("tailer acks = %v, want a single ack of 150", link.acks)
	}
}

// ============================================================
// Failure handling
// ============================================================

func TestPoller_FailureThreshold(t *testing.T) {
	link := newFakeLink(DefaultRegisterMap())
	p := NewPoller(link, link.m, FixedPointCodec{})
	link.failuresLeft = 1000

	for i := 1; i < FailureThreshold; i++ {
		_, err := p.Poll()
		if err == nil {
			t.Fatalf("cycle %d: expected an error", i)
		}
		if errors.Is(err, ErrConnectionLost) {
			t.Fatalf("cycle %d: disconnected before the threshold", i)
		}
	}
	if p.Lost() {
		t.Fatal("poller lost before the threshold cycle")
	}

	// The 10th straight failure is terminal.
	if _, err := p.Poll(); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("threshold cycle: err = %v, want ErrConnectionLost", err)
	}
	if !p.Lost() {
		t.Fatal("poller not marked lost after the threshold cycle")
	}

	// Lost is terminal: no further transport traffic.
	link.failuresLeft = 0
	if _, err := p.Poll(); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("post-loss poll: err = %v, want ErrConnectionLost", err)
	}
	if p.Stats.TransportErrors != FailureThreshold {
		t.Errorf("transport errors = %d, want %d", p.Stats.TransportErrors, FailureThreshold)
	}
}

func TestPoller_TransientRecovery(t *testing.T) {
	link := newFakeLink(DefaultRegisterMap())
	codec := FixedPointCodec{}
	p := NewPoller(link, link.m, codec)

	link.header = 3
	link.fillRing(codec, 0, 1, 2)
	link.failuresLeft = FailureThreshold - 1

	for i := 0; i < FailureThreshold-1; i++ {
		if _, err := p.Poll(); err == nil {
			t.Fatalf("cycle %d: expected an error", i)
		}
	}

	samples, err := p.Poll()
	if err != nil {
		t.Fatalf("recovery poll: %v", err)
	}
	if len(samples) != 3 {
		t.Errorf("recovery poll drained %d samples, want 3", len(samples))
	}
	if p.failures != 0 {
		t.Errorf("failure counter = %d after a good cycle, want 0", p.failures)
	}
	if p.Lost() {
		t.Error("poller lost after recovering within the threshold")
	}
}

func TestPoller_MidDrainFailureKeepsTailer(t *testing.T) {
	link := newFakeLink(DefaultRegisterMap())
	codec := FixedPointCodec{}
	p := NewPoller(link, link.m, codec)

	link.header = 4
	link.fillRing(codec, 0, 1, 2, 3)
	link.failuresLeft = 1
	link.failRingReads = true

	if _, err := p.Poll(); err == nil {
		t.Fatal("expected the ring read to fail")
	}
	if p.Tailer() != 0 {
		t.Errorf("tailer advanced to %d on a failed cycle", p.Tailer())
	}
	if len(link.acks) != 0 {
		t.Errorf("failed cycle acknowledged the tailer: %v", link.acks)
	}

	// The retry re-reads the same span.
	samples, err := p.Poll()
	if err != nil {
		t.Fatalf("retry poll: %v", err)
	}
	if len(samples) != 4 {
		t.Errorf("retry drained %d samples, want 4", len(samples))
	}
	if p.Tailer() != 4 {
		t.Errorf("tailer = %d after retry, want 4", p.Tailer())
	}
}

// ============================================================
// Resync and status
// ============================================================

func TestPoller_Resync(t *testing.T) {
	link := newFakeLink(DefaultRegisterMap())
	p := NewPoller(link, link.m, FixedPointCodec{})

	link.tailerReg = 42
	if err := p.Resync(); err != nil {
		t.Fatalf("resync error: %v", err)
	}
	if p.Tailer() != 42 {
		t.Errorf("tailer = %d after resync, want 42", p.Tailer())
	}
	if p.Stats.Resyncs != 1 {
		t.Errorf("resyncs = %d, want 1", p.Stats.Resyncs)
	}

	link.failuresLeft = 1
	if err := p.Resync(); err == nil {
		t.Error("expected resync to surface the transport error")
	}
}

func TestPoller_StatusCapture(t *testing.T) {
	link := newFakeLink(DefaultRegisterMap())
	p := NewPoller(link, link.m, FixedPointCodec{})

	link.status = uint16(StatusRunning)
	if _, err := p.Poll(); err != nil {
		t.Fatalf("poll error: %v", err)
	}
	if p.Status() != StatusRunning {
		t.Errorf("status = %v, want %v", p.Status(), StatusRunning)
	}
	if p.Status().State() != StateRunning {
		t.Errorf("state = %v, want %v", p.Status().State(), StateRunning)
	}
}

func TestPoller_OverrunHighWater(t *testing.T) {
	link := newFakeLink(DefaultRegisterMap())
	codec := FixedPointCodec{}
	p := NewPoller(link, link.m, codec)

	// header one slot behind the tailer: the producer is about to lap.
	capB := link.m.RingCapacity
	link.header = capB - 1
	slots := make([]uint16, capB-1)
	for i := range slots {
		slots[i] = uint16(i)
	}
	link.fillRing(codec, slots...)

	samples, err := p.Poll()
	if err != nil {
		t.Fatalf("poll error: %v", err)
	}
	if uint16(len(samples)) != capB-1 {
		t.Errorf("drained %d samples, want %d", len(samples), capB-1)
	}
	if p.Stats.Overruns != 1 {
		t.Errorf("overruns = %d, want 1", p.Stats.Overruns)
	}
}

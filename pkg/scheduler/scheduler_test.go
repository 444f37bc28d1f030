package scheduler

import (
	"context"
	"testing"
	"time"

	"mbbridge/pkg/groupread"
	"mbbridge/pkg/liveness"
	"mbbridge/pkg/publisher"
	"mbbridge/pkg/registry"
	"mbbridge/pkg/tag"
)

type fakeTransport struct {
	holdingValues map[uint16][]byte
}

func (f *fakeTransport) ReadCoils(slaveID uint8, address, quantity uint16) ([]byte, error) {
	return nil, nil
}
func (f *fakeTransport) ReadDiscreteInputs(slaveID uint8, address, quantity uint16) ([]byte, error) {
	return nil, nil
}
func (f *fakeTransport) ReadInputRegisters(slaveID uint8, address, quantity uint16) ([]byte, error) {
	return nil, nil
}
func (f *fakeTransport) ReadHoldingRegisters(slaveID uint8, address, quantity uint16) ([]byte, error) {
	return f.holdingValues[address], nil
}
func (f *fakeTransport) WriteSingleRegister(slaveID uint8, address, value uint16) error { return nil }
func (f *fakeTransport) WriteSingleCoil(slaveID uint8, address uint16, on bool) error   { return nil }
func (f *fakeTransport) Close() error                                                  { return nil }

type fakeClient struct{}

func (f *fakeClient) Connected() bool { return true }
func (f *fakeClient) Publish(ctx context.Context, topic string, payload string, retain bool) error {
	return nil
}

func TestTickServicesDueCycle(t *testing.T) {
	ft := &fakeTransport{holdingValues: map[uint16][]byte{1: {0x00, 0x09}}}
	lv := liveness.New(&fakeClient{}, "", false, "")
	pub := publisher.New(&fakeClient{})
	ge := groupread.New(ft, lv, pub, 1)
	sched := New(ge, 0)

	reg := registry.New()
	rt, _ := tag.NewReadTag(1, 40001)
	idx := reg.AddReadTag(rt)
	reg.AddCycle(&registry.UpdateCycle{Ident: "fast", Interval: 1, NextFireUnix: 0, TagIndices: []int{idx}})

	sched.Tick(context.Background(), reg, time.Now())

	if rt.RawValue != 9 {
		t.Fatalf("RawValue = %d, want 9", rt.RawValue)
	}
	if reg.Cycles[0].NextFireUnix == 0 {
		t.Fatal("expected next_fire_time to be advanced")
	}
}

func TestTickSkipsCycleNotYetDue(t *testing.T) {
	ft := &fakeTransport{holdingValues: map[uint16][]byte{1: {0x00, 0x09}}}
	lv := liveness.New(&fakeClient{}, "", false, "")
	pub := publisher.New(&fakeClient{})
	ge := groupread.New(ft, lv, pub, 1)
	sched := New(ge, 0)

	reg := registry.New()
	rt, _ := tag.NewReadTag(1, 40001)
	idx := reg.AddReadTag(rt)
	future := time.Now().Unix() + 3600
	reg.AddCycle(&registry.UpdateCycle{Ident: "slow", Interval: 60, NextFireUnix: future, TagIndices: []int{idx}})

	sched.Tick(context.Background(), reg, time.Now())

	if rt.RawValue != 0 {
		t.Fatalf("RawValue = %d, want 0 (cycle should not have fired)", rt.RawValue)
	}
}

func TestTickAbortsOnPendingWrites(t *testing.T) {
	ft := &fakeTransport{holdingValues: map[uint16][]byte{1: {0x00, 0x09}, 2: {0x00, 0x0A}}}
	lv := liveness.New(&fakeClient{}, "", false, "")
	pub := publisher.New(&fakeClient{})
	ge := groupread.New(ft, lv, pub, 1)
	sched := New(ge, 0)

	reg := registry.New()
	rt1, _ := tag.NewReadTag(1, 40001)
	rt2, _ := tag.NewReadTag(1, 40002)
	idx1 := reg.AddReadTag(rt1)
	idx2 := reg.AddReadTag(rt2)
	reg.AddCycle(&registry.UpdateCycle{Ident: "c", Interval: 1, NextFireUnix: 0, TagIndices: []int{idx1, idx2}})

	wt, _ := tag.NewWriteTag("cmd/x", 1, 40010, tag.HoldingRegisterWrite, false)
	wt.RequestWrite(1)
	reg.AddWriteTag(wt)

	sched.Tick(context.Background(), reg, time.Now())

	if rt1.RawValue != 9 {
		t.Fatalf("RawValue rt1 = %d, want 9", rt1.RawValue)
	}
	if rt2.RawValue != 0 {
		t.Fatal("expected scheduler pass to abort before reading rt2 due to pending write backpressure")
	}
}

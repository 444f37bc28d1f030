package groupread

import (
	"context"
	"errors"
	"testing"
	"time"

	"mbbridge/pkg/liveness"
	"mbbridge/pkg/publisher"
	"mbbridge/pkg/registry"
	"mbbridge/pkg/tag"
)

type fakeTransport struct {
	holdingValues map[uint16][]byte
	failNext      bool
	failErr       error
}

func (f *fakeTransport) ReadCoils(slaveID uint8, address, quantity uint16) ([]byte, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeTransport) ReadDiscreteInputs(slaveID uint8, address, quantity uint16) ([]byte, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeTransport) ReadInputRegisters(slaveID uint8, address, quantity uint16) ([]byte, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeTransport) ReadHoldingRegisters(slaveID uint8, address, quantity uint16) ([]byte, error) {
	if f.failNext {
		return nil, f.failErr
	}
	return f.holdingValues[address], nil
}
func (f *fakeTransport) WriteSingleRegister(slaveID uint8, address, value uint16) error { return nil }
func (f *fakeTransport) WriteSingleCoil(slaveID uint8, address uint16, on bool) error   { return nil }
func (f *fakeTransport) Close() error                                                  { return nil }

type fakeClient struct{ connected bool }

func (f *fakeClient) Connected() bool { return f.connected }
func (f *fakeClient) Publish(ctx context.Context, topic string, payload string, retain bool) error {
	return nil
}

func TestReadOneSuccess(t *testing.T) {
	ft := &fakeTransport{holdingValues: map[uint16][]byte{1: {0x00, 0x2A}}}
	lv := liveness.New(&fakeClient{connected: true}, "", false, "")
	pub := publisher.New(&fakeClient{connected: true})
	eng := New(ft, lv, pub, 3)

	rt, err := tag.NewReadTag(1, 40001)
	if err != nil {
		t.Fatalf("NewReadTag: %v", err)
	}

	if err := eng.ReadOne(context.Background(), rt); err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if rt.RawValue != 42 {
		t.Fatalf("RawValue = %d, want 42", rt.RawValue)
	}
	if !lv.IsOnline(1) {
		t.Fatal("expected slave marked online")
	}
}

func TestReadOneFailureMarksOffline(t *testing.T) {
	ft := &fakeTransport{failNext: true, failErr: errors.New("i/o timeout")}
	lv := liveness.New(&fakeClient{connected: true}, "", false, "")
	pub := publisher.New(&fakeClient{connected: true})
	eng := New(ft, lv, pub, 1)

	rt, _ := tag.NewReadTag(1, 40001)
	if err := eng.ReadOne(context.Background(), rt); err == nil {
		t.Fatal("expected error")
	}
	if rt.NoreadCount == 0 {
		t.Fatal("expected noread count incremented")
	}
	if lv.IsOnline(1) {
		t.Fatal("expected slave marked offline on timeout")
	}
}

func TestReadGroupAlreadyRead(t *testing.T) {
	ft := &fakeTransport{}
	lv := liveness.New(&fakeClient{connected: true}, "", false, "")
	pub := publisher.New(&fakeClient{connected: true})
	eng := New(ft, lv, pub, 1)

	reg := registry.New()
	rt, _ := tag.NewReadTag(1, 40001)
	rt.GroupID = 1
	refTime := time.Now()
	rt.ReferenceTime = refTime
	idx := reg.AddReadTag(rt)

	outcome, err := eng.ReadGroup(context.Background(), reg, idx, refTime)
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if outcome != AlreadyRead {
		t.Fatalf("outcome = %v, want AlreadyRead", outcome)
	}
}

func TestReadGroupCoalescedRange(t *testing.T) {
	ft := &fakeTransport{holdingValues: map[uint16][]byte{
		1: {0x00, 0x01, 0x00, 0x02, 0x00, 0x03},
	}}
	lv := liveness.New(&fakeClient{connected: true}, "", false, "")
	pub := publisher.New(&fakeClient{connected: true})
	eng := New(ft, lv, pub, 1)

	reg := registry.New()
	t1, _ := tag.NewReadTag(1, 40001)
	t1.GroupID = 5
	t2, _ := tag.NewReadTag(1, 40002)
	t2.GroupID = 5
	t3, _ := tag.NewReadTag(1, 40003)
	t3.GroupID = 5
	idx1 := reg.AddReadTag(t1)
	reg.AddReadTag(t2)
	reg.AddReadTag(t3)

	refTime := time.Now()
	outcome, err := eng.ReadGroup(context.Background(), reg, idx1, refTime)
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if outcome != Read {
		t.Fatalf("outcome = %v, want Read", outcome)
	}
	if t1.RawValue != 1 || t2.RawValue != 2 || t3.RawValue != 3 {
		t.Fatalf("unexpected group values: %d %d %d", t1.RawValue, t2.RawValue, t3.RawValue)
	}
	if !t1.ReferenceTime.Equal(refTime) || !t2.ReferenceTime.Equal(refTime) {
		t.Fatal("expected all group members stamped with reference time")
	}
}

func TestReadGroupNotAGroup(t *testing.T) {
	ft := &fakeTransport{}
	lv := liveness.New(&fakeClient{connected: true}, "", false, "")
	pub := publisher.New(&fakeClient{connected: true})
	eng := New(ft, lv, pub, 1)

	reg := registry.New()
	rt, _ := tag.NewReadTag(1, 40001)
	idx := reg.AddReadTag(rt)

	outcome, err := eng.ReadGroup(context.Background(), reg, idx, time.Now())
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if outcome != NotAGroup {
		t.Fatalf("outcome = %v, want NotAGroup", outcome)
	}
}

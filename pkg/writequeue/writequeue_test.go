package writequeue

import (
	"context"
	"errors"
	"testing"
	"time"

	"mbbridge/pkg/liveness"
	"mbbridge/pkg/registry"
	"mbbridge/pkg/tag"
)

type fakeTransport struct {
	failNext  bool
	lastAddr  uint16
	lastValue uint16
	calls     int
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
	return nil, nil
}
func (f *fakeTransport) WriteSingleRegister(slaveID uint8, address, value uint16) error {
	f.calls++
	f.lastAddr, f.lastValue = address, value
	if f.failNext {
		return errors.New("write failed")
	}
	return nil
}
func (f *fakeTransport) WriteSingleCoil(slaveID uint8, address uint16, on bool) error {
	f.calls++
	return nil
}
func (f *fakeTransport) Close() error { return nil }

type fakeClient struct{}

func (f *fakeClient) Connected() bool { return true }
func (f *fakeClient) Publish(ctx context.Context, topic string, payload string, retain bool) error {
	return nil
}

func TestDrainOneIdleWhenNothingPending(t *testing.T) {
	ft := &fakeTransport{}
	lv := liveness.New(&fakeClient{}, "", false, "")
	q := New(ft, lv, 0, 3)
	reg := registry.New()

	if got := q.DrainOne(context.Background(), reg); got != Idle {
		t.Fatalf("DrainOne = %v, want Idle", got)
	}
}

func TestDrainOneSuccessClearsPending(t *testing.T) {
	ft := &fakeTransport{}
	lv := liveness.New(&fakeClient{}, "", false, "")
	q := New(ft, lv, 0, 3)
	reg := registry.New()

	wt, err := tag.NewWriteTag("cmd/relay1", 1, 40001, tag.HoldingRegisterWrite, false)
	if err != nil {
		t.Fatalf("NewWriteTag: %v", err)
	}
	wt.RequestWrite(7)
	reg.AddWriteTag(wt)

	if got := q.DrainOne(context.Background(), reg); got != Progressed {
		t.Fatalf("DrainOne = %v, want Progressed", got)
	}
	if wt.WritePending {
		t.Fatal("expected write_pending cleared on success")
	}
	if ft.lastValue != 7 {
		t.Fatalf("lastValue = %d, want 7", ft.lastValue)
	}
}

func TestDrainOneAbandonsAfterMaxAttempts(t *testing.T) {
	ft := &fakeTransport{failNext: true}
	lv := liveness.New(&fakeClient{}, "", false, "")
	q := New(ft, lv, 0, 2)
	reg := registry.New()

	wt, _ := tag.NewWriteTag("cmd/relay1", 1, 40001, tag.HoldingRegisterWrite, false)
	wt.RequestWrite(1)
	reg.AddWriteTag(wt)

	q.DrainOne(context.Background(), reg)
	if !wt.WritePending {
		t.Fatal("expected still pending after first failure")
	}
	if wt.WriteFailedCount != 1 {
		t.Fatalf("WriteFailedCount = %d, want 1", wt.WriteFailedCount)
	}

	q.DrainOne(context.Background(), reg)
	if wt.WritePending {
		t.Fatal("expected write abandoned after reaching max attempts")
	}
	if wt.WriteFailedCount != 0 {
		t.Fatalf("WriteFailedCount = %d, want 0 after abandon", wt.WriteFailedCount)
	}
}

func TestDrainOneSleepsOnSlaveChange(t *testing.T) {
	ft := &fakeTransport{}
	lv := liveness.New(&fakeClient{}, "", false, "")
	q := New(ft, lv, 20*time.Millisecond, 3)
	reg := registry.New()

	w1, _ := tag.NewWriteTag("cmd/a", 1, 40001, tag.HoldingRegisterWrite, false)
	w1.RequestWrite(1)
	w2, _ := tag.NewWriteTag("cmd/b", 2, 40001, tag.HoldingRegisterWrite, false)
	w2.RequestWrite(2)
	reg.AddWriteTag(w1)
	reg.AddWriteTag(w2)

	q.DrainOne(context.Background(), reg)
	start := time.Now()
	q.DrainOne(context.Background(), reg)
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("expected inter-slave delay to be observed on slave change")
	}
}

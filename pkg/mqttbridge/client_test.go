package mqttbridge

import (
	"testing"

	"mbbridge/pkg/registry"
	"mbbridge/pkg/tag"
)

// fakeMessage implements paho.Message for tests without a real broker.
type fakeMessage struct {
	topic    string
	payload  string
	retained bool
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return m.retained }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return []byte(m.payload) }
func (m *fakeMessage) Ack()              {}

func newTestClient(t *testing.T) (*Client, *registry.Registry, *tag.WriteTag) {
	reg := registry.New()
	wt, err := tag.NewWriteTag("cmd/setpoint", 3, 40010, tag.HoldingRegisterWrite, true)
	if err != nil {
		t.Fatalf("NewWriteTag: %v", err)
	}
	reg.AddWriteTag(wt)

	c := &Client{reg: reg, inbound: make(chan inboundWrite, 8)}
	return c, reg, wt
}

func TestOnMessageEnqueuesWriteIntent(t *testing.T) {
	c, reg, wt := newTestClient(t)
	c.onMessage(nil, &fakeMessage{topic: "cmd/setpoint", payload: "42"})
	c.DrainInbound(reg)

	if !wt.WritePending {
		t.Fatal("expected write_pending true after draining inbound")
	}
	if wt.RawValue != 42 {
		t.Fatalf("RawValue = %d, want 42", wt.RawValue)
	}
}

func TestOnMessageSuppressesRetainedWhenIgnoreRetained(t *testing.T) {
	c, reg, wt := newTestClient(t)
	c.onMessage(nil, &fakeMessage{topic: "cmd/setpoint", payload: "42", retained: true})
	c.DrainInbound(reg)

	if wt.WritePending {
		t.Fatal("expected retained message to be suppressed (ignore_retained=true)")
	}
}

func TestOnMessageIgnoresUnknownTopic(t *testing.T) {
	c, reg, _ := newTestClient(t)
	c.onMessage(nil, &fakeMessage{topic: "cmd/unknown", payload: "1"})
	c.DrainInbound(reg)
	// No panic, no write tags affected — nothing to assert beyond completion.
}

func TestOnMessageIgnoresNonNumericPayload(t *testing.T) {
	c, reg, wt := newTestClient(t)
	c.onMessage(nil, &fakeMessage{topic: "cmd/setpoint", payload: "not-a-number"})
	c.DrainInbound(reg)

	if wt.WritePending {
		t.Fatal("expected non-numeric payload to be dropped, not enqueued")
	}
}

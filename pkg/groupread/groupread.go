// Package groupread implements the Group Read Engine (C6): single-register
// reads and range-coalesced group reads, per SPEC_FULL.md §4.6.
package groupread

import (
	"context"
	"time"

	bridgeerrors "mbbridge/pkg/errors"
	"mbbridge/pkg/liveness"
	"mbbridge/pkg/publisher"
	"mbbridge/pkg/registry"
	"mbbridge/pkg/tag"
	"mbbridge/pkg/transport"
)

// GroupOutcome is the result of attempting a coalesced group read.
type GroupOutcome int

const (
	// Read means a physical range read was issued (success or failure).
	Read GroupOutcome = iota
	// AlreadyRead means the group was already read earlier in this cycle pass.
	AlreadyRead
	// NotAGroup means the tag at index is ungrouped; caller should fall back
	// to ReadOne.
	NotAGroup
)

// Engine performs reads against a transport, updating tag state, liveness
// and publishing results — SPEC_FULL.md §4.6.1 and §4.6.2.
type Engine struct {
	transport  transport.Transport
	liveness   *liveness.Tracker
	publisher  *publisher.Publisher
	maxRetries int
}

// New creates a group read engine.
func New(t transport.Transport, lv *liveness.Tracker, pub *publisher.Publisher, maxRetries int) *Engine {
	return &Engine{transport: t, liveness: lv, publisher: pub, maxRetries: maxRetries}
}

// ReadOne implements §4.6.1 read_one(tag): a 1-register read, with retries
// on timeout while previously online or on any non-illegal-data-address error.
func (e *Engine) ReadOne(ctx context.Context, t *tag.ReadTag) error {
	wasOnline := e.liveness.IsOnline(t.SlaveID)

	var lastErr error
	attempts := e.maxRetries + 1
	for i := 0; i < attempts; i++ {
		start := time.Now()
		value, err := e.issueRead(t.SlaveID, t.Class, t.InClassOffset, 1)
		if err == nil {
			t.SetRaw(value[0], time.Now())
			e.liveness.RecordSuccess(t.SlaveID, time.Since(start))
			_ = e.liveness.SetOnline(ctx, t.SlaveID, true, false)
			return e.publisher.PublishReadTag(ctx, t)
		}
		lastErr = err
		kind := transport.ClassifyError(err)
		if kind == bridgeerrors.KindIllegalDataAddress {
			break
		}
		if kind == bridgeerrors.KindTimeout && !wasOnline {
			break
		}
	}

	t.NoreadNotify()
	e.liveness.RecordError(t.SlaveID, lastErr.Error())
	if transport.ClassifyError(lastErr) == bridgeerrors.KindTimeout {
		_ = e.liveness.SetOnline(ctx, t.SlaveID, false, false)
	}
	_ = e.publisher.PublishReadTag(ctx, t)
	return bridgeerrors.NewModbusError("read_one", lastErr, transport.ClassifyError(lastErr),
		t.SlaveID, t.Class.ReadFunctionCode(), uint16(t.RegisterAddr))
}

// ReadGroup implements §4.6.2 group read coalescing for the tag at index.
func (e *Engine) ReadGroup(ctx context.Context, reg *registry.Registry, index int, referenceTime time.Time) (GroupOutcome, error) {
	t := reg.ReadTags[index]
	if t.GroupID == 0 {
		return NotAGroup, nil
	}
	if t.ReferenceTime.Equal(referenceTime) {
		_ = e.publisher.PublishReadTag(ctx, t)
		return AlreadyRead, nil
	}

	members := reg.GroupMembers(t.SlaveID, t.GroupID)
	addrLo, addrHi := t.RegisterAddr, t.RegisterAddr
	for _, mi := range members {
		m := reg.ReadTags[mi]
		if m.RegisterAddr < addrLo {
			addrLo = m.RegisterAddr
		}
		if m.RegisterAddr > addrHi {
			addrHi = m.RegisterAddr
		}
	}
	count := addrHi - addrLo + 1
	if count > 125 {
		err := bridgeerrors.NewModbusError("group_read", nil, bridgeerrors.KindRangeTooLarge,
			t.SlaveID, t.Class.ReadFunctionCode(), uint16(addrLo))
		for _, mi := range members {
			reg.ReadTags[mi].NoreadNotify()
			reg.ReadTags[mi].ReferenceTime = referenceTime
		}
		_ = e.publisher.PublishReadTag(ctx, t)
		return Read, err
	}

	_, classOffsetLo, _ := tag.DecodeAddress(addrLo)
	start := time.Now()
	values, err := e.issueRead(t.SlaveID, t.Class, classOffsetLo, uint16(count))
	if err != nil {
		for _, mi := range members {
			reg.ReadTags[mi].NoreadNotify()
			reg.ReadTags[mi].ReferenceTime = referenceTime
		}
		e.liveness.RecordError(t.SlaveID, err.Error())
		if transport.ClassifyError(err) == bridgeerrors.KindTimeout {
			_ = e.liveness.SetOnline(ctx, t.SlaveID, false, false)
		}
		_ = e.publisher.PublishReadTag(ctx, t)
		return Read, bridgeerrors.NewModbusError("group_read", err, transport.ClassifyError(err),
			t.SlaveID, t.Class.ReadFunctionCode(), uint16(addrLo))
	}

	now := time.Now()
	for _, mi := range members {
		m := reg.ReadTags[mi]
		if m.RegisterAddr < addrLo || m.RegisterAddr > addrHi {
			continue
		}
		m.SetRaw(values[m.RegisterAddr-addrLo], now)
		m.ReferenceTime = referenceTime
	}
	e.liveness.RecordSuccess(t.SlaveID, time.Since(start))
	_ = e.liveness.SetOnline(ctx, t.SlaveID, true, false)
	_ = e.publisher.PublishReadTag(ctx, t)
	return Read, nil
}

// issueRead dispatches to the read function code matching class, returning
// one uint16 value per register.
func (e *Engine) issueRead(slaveID uint8, class tag.RegisterClass, offset, quantity uint16) ([]uint16, error) {
	var raw []byte
	var err error
	switch class {
	case tag.Coil:
		raw, err = e.transport.ReadCoils(slaveID, offset, quantity)
		if err != nil {
			return nil, err
		}
		return bitsToValues(raw, quantity), nil
	case tag.DiscreteInput:
		raw, err = e.transport.ReadDiscreteInputs(slaveID, offset, quantity)
		if err != nil {
			return nil, err
		}
		return bitsToValues(raw, quantity), nil
	case tag.InputRegister:
		raw, err = e.transport.ReadInputRegisters(slaveID, offset, quantity)
	default:
		raw, err = e.transport.ReadHoldingRegisters(slaveID, offset, quantity)
	}
	if err != nil {
		return nil, err
	}
	return registersToValues(raw), nil
}

func registersToValues(raw []byte) []uint16 {
	values := make([]uint16, len(raw)/2)
	for i := range values {
		values[i] = uint16(raw[i*2])<<8 | uint16(raw[i*2+1])
	}
	return values
}

func bitsToValues(raw []byte, quantity uint16) []uint16 {
	values := make([]uint16, quantity)
	for i := uint16(0); i < quantity; i++ {
		byteIdx := i / 8
		bitIdx := i % 8
		if int(byteIdx) >= len(raw) {
			break
		}
		if raw[byteIdx]&(1<<bitIdx) != 0 {
			values[i] = 1
		}
	}
	return values
}

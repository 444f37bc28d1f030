// Package writequeue implements the Write Queue (C7): draining one pending
// write tag per main-loop tick, per SPEC_FULL.md §4.7.
package writequeue

import (
	"context"
	"time"

	"mbbridge/pkg/liveness"
	"mbbridge/pkg/registry"
	"mbbridge/pkg/tag"
	"mbbridge/pkg/transport"
)

// DrainOutcome reports whether drain_one found and attempted a write.
type DrainOutcome int

const (
	// Idle means no pending write was found.
	Idle DrainOutcome = iota
	// Progressed means a write was attempted, whether or not it succeeded.
	Progressed
)

// Queue is the C7 component.
type Queue struct {
	transport       transport.Transport
	liveness        *liveness.Tracker
	interSlaveDelay time.Duration
	maxAttempts     int
	lastSlaveID     uint8
	haveLastSlave   bool
}

// New creates a write queue.
func New(t transport.Transport, lv *liveness.Tracker, interSlaveDelay time.Duration, maxAttempts int) *Queue {
	return &Queue{transport: t, liveness: lv, interSlaveDelay: interSlaveDelay, maxAttempts: maxAttempts}
}

// DrainOne implements §4.7 drain_one(): scans write tags in index order,
// dispatches the first pending one, and returns whether it found work.
func (q *Queue) DrainOne(ctx context.Context, reg *registry.Registry) DrainOutcome {
	for _, w := range reg.WriteTags {
		if !w.WritePending {
			continue
		}
		q.attempt(ctx, w)
		return Progressed
	}
	return Idle
}

func (q *Queue) attempt(ctx context.Context, w *tag.WriteTag) {
	if q.haveLastSlave && q.lastSlaveID != w.SlaveID && q.interSlaveDelay > 0 {
		time.Sleep(q.interSlaveDelay)
	}
	q.lastSlaveID = w.SlaveID
	q.haveLastSlave = true

	var err error
	switch w.DataType {
	case tag.HoldingRegisterWrite:
		err = q.transport.WriteSingleRegister(w.SlaveID, w.InClassOffset, w.RawValue)
	case tag.CoilLikeWrite:
		err = q.transport.WriteSingleCoil(w.SlaveID, w.InClassOffset, w.RawValue != 0)
	}

	if err == nil {
		w.WritePending = false
		w.WriteFailedCount = 0
		_ = q.liveness.SetOnline(ctx, w.SlaveID, true, false)
		return
	}

	w.WriteFailedCount++
	kind := transport.ClassifyError(err)
	q.liveness.RecordError(w.SlaveID, err.Error())
	if kind.String() == "timeout" {
		_ = q.liveness.SetOnline(ctx, w.SlaveID, false, false)
	}
	if w.WriteFailedCount >= q.maxAttempts {
		w.WritePending = false
		w.WriteFailedCount = 0
	}
}

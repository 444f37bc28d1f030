// Package scheduler implements the Read Scheduler (C5): a single-threaded
// cooperative sweep of declared update cycles, per SPEC_FULL.md §4.5.
package scheduler

import (
	"context"
	"time"

	"mbbridge/pkg/groupread"
	"mbbridge/pkg/logger"
	"mbbridge/pkg/registry"
)

// Scheduler drives one pass over due update cycles per tick.
type Scheduler struct {
	groupEngine     *groupread.Engine
	interSlaveDelay time.Duration
}

// New creates a read scheduler.
func New(groupEngine *groupread.Engine, interSlaveDelay time.Duration) *Scheduler {
	return &Scheduler{groupEngine: groupEngine, interSlaveDelay: interSlaveDelay}
}

// Tick implements §4.5: iterate update cycles in declaration order, running
// each cycle whose next_fire_time has arrived, and aborting early if writes
// are pending so write latency stays bounded.
func (s *Scheduler) Tick(ctx context.Context, reg *registry.Registry, now time.Time) {
	for _, cycle := range reg.Cycles {
		if cycle.NextFireUnix > now.Unix() {
			continue
		}
		cycle.NextFireUnix = now.Unix() + cycle.Interval

		if s.runCycle(ctx, reg, cycle.TagIndices, now) {
			return
		}
	}
}

// runCycle returns true if the scheduler pass should abort early due to
// backpressure from pending writes.
func (s *Scheduler) runCycle(ctx context.Context, reg *registry.Registry, tagIndices []int, referenceTime time.Time) bool {
	var lastSlave uint8
	haveLastSlave := false

	for _, idx := range tagIndices {
		t := reg.ReadTags[idx]

		if haveLastSlave && lastSlave != t.SlaveID && s.interSlaveDelay > 0 {
			time.Sleep(s.interSlaveDelay)
		}
		lastSlave = t.SlaveID
		haveLastSlave = true

		if t.GroupID == 0 {
			if err := s.groupEngine.ReadOne(ctx, t); err != nil {
				logger.LogDebug("read_one slave %d addr %d: %v", t.SlaveID, t.RegisterAddr, err)
			}
		} else {
			if _, err := s.groupEngine.ReadGroup(ctx, reg, idx, referenceTime); err != nil {
				logger.LogDebug("group read slave %d group %d: %v", t.SlaveID, t.GroupID, err)
			}
		}

		if reg.PendingWritesCount() > 0 {
			return true
		}
	}
	return false
}

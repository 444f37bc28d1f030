// Package liveness implements per-slave online/offline tracking (C4) and
// the diagnostic counters layered on top of it (A5).
package liveness

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Publisher is the narrow MQTT seam this package needs: publish a retained
// or non-retained payload on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload string, retain bool) error
}

// entry tracks one slave's online flag plus the diagnostic streak counters
// from SPEC_FULL.md §3 ("Slave Liveness Entry ... for diagnostics only").
type entry struct {
	online            bool
	everSet           bool
	consecutiveOK     int
	consecutiveErrors int
	lastError         string
	lastLatency       time.Duration
}

// Tracker is the C4 component: a status-topic prefix plus per-slave online
// flags, reporting a change (or a forced transition) to MQTT exactly once.
type Tracker struct {
	mu                sync.RWMutex
	entries           map[uint8]*entry
	statusTopicPrefix string
	statusRetain      bool
	publisher         Publisher

	diagnosticTopic string // empty disables diagnostic publication (A5)
}

// New creates a liveness tracker. statusTopicPrefix empty disables
// per-slave status publication (the flag is still tracked internally).
func New(publisher Publisher, statusTopicPrefix string, statusRetain bool, diagnosticTopic string) *Tracker {
	return &Tracker{
		entries:           make(map[uint8]*entry),
		statusTopicPrefix: statusTopicPrefix,
		statusRetain:      statusRetain,
		publisher:         publisher,
		diagnosticTopic:   diagnosticTopic,
	}
}

func (t *Tracker) get(slaveID uint8) *entry {
	e, ok := t.entries[slaveID]
	if !ok {
		e = &entry{}
		t.entries[slaveID] = e
	}
	return e
}

// SetOnline implements §4.4 set_online: publishes iff force or the flag
// actually changes, range-checking the slave id (1..254).
func (t *Tracker) SetOnline(ctx context.Context, slaveID uint8, online bool, force bool) error {
	if slaveID < 1 || slaveID > 254 {
		return fmt.Errorf("slave id %d out of range 1..254", slaveID)
	}

	t.mu.Lock()
	e := t.get(slaveID)
	changed := force || e.online != online
	e.online = online
	e.everSet = true
	t.mu.Unlock()

	if !changed {
		return nil
	}

	if t.statusTopicPrefix != "" {
		payload := "0"
		if online {
			payload = "1"
		}
		topic := fmt.Sprintf("%s%d", t.statusTopicPrefix, slaveID)
		if err := t.publisher.Publish(ctx, topic, payload, t.statusRetain); err != nil {
			return err
		}
	}
	return nil
}

// IsOnline reports the last-known liveness of a slave (defaults false — a
// slave never yet seen starts offline, matching the original source's
// mbSlaveOnline[] bootstrap, and only flips online on its first proven
// success).
func (t *Tracker) IsOnline(slaveID uint8) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[slaveID]
	if !ok {
		return false
	}
	return e.online
}

// RecordSuccess updates the diagnostic streak counters for a slave (A5).
func (t *Tracker) RecordSuccess(slaveID uint8, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.get(slaveID)
	e.consecutiveOK++
	e.consecutiveErrors = 0
	e.lastLatency = latency
}

// RecordError updates the diagnostic streak counters for a slave (A5).
func (t *Tracker) RecordError(slaveID uint8, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.get(slaveID)
	e.consecutiveErrors++
	e.consecutiveOK = 0
	e.lastError = errMsg
}

// PublishDiagnostic republishes a slave's streak counters to the optional
// diagnostic topic (A5), a richer companion to the bare status topic.
func (t *Tracker) PublishDiagnostic(ctx context.Context, slaveID uint8) error {
	if t.diagnosticTopic == "" {
		return nil
	}
	t.mu.RLock()
	e := t.get(slaveID)
	payload := fmt.Sprintf(`{"slave_id":%d,"online":%v,"consecutive_errors":%d,"last_error":%q}`,
		slaveID, e.online, e.consecutiveErrors, e.lastError)
	t.mu.RUnlock()
	topic := fmt.Sprintf("%s/%d", t.diagnosticTopic, slaveID)
	return t.publisher.Publish(ctx, topic, payload, false)
}

// ForceAllOffline marks every slave that is currently online as
// offline, publishing each transition — the shutdown step in §5
// ("force all online slaves to offline and publish").
func (t *Tracker) ForceAllOffline(ctx context.Context) {
	t.mu.RLock()
	ids := make([]uint8, 0, len(t.entries))
	for id, e := range t.entries {
		if e.everSet && e.online {
			ids = append(ids, id)
		}
	}
	t.mu.RUnlock()

	for _, id := range ids {
		_ = t.SetOnline(ctx, id, false, true)
	}
}

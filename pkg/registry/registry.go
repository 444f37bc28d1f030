// Package registry implements the Tag Registry (C1): the owning store of
// read tags, write tags and local tags, addressed by integer index rather
// than pointer (SPEC_FULL.md §9, "cyclic/back references").
package registry

import (
	"mbbridge/pkg/tag"
)

// UpdateCycle is a named polling period. TagIndices is built once at
// startup from every read tag whose UpdateCycleID matches Ident
// (SPEC_FULL.md §3 "Update Cycle").
type UpdateCycle struct {
	Ident         string
	Interval      int64 // seconds
	NextFireUnix  int64
	TagIndices    []int
}

// Registry owns every tag's backing storage. Callers hold indices, never
// pointers, into ReadTags/WriteTags — mirroring the source's TagStore but
// replacing raw pointers with array positions (§9).
type Registry struct {
	ReadTags  []*tag.ReadTag
	WriteTags []*tag.WriteTag
	Cycles    []*UpdateCycle

	localTags    map[string]*tag.LocalTag
	topicToRead  map[string]int // topic -> index into ReadTags, for tags with a topic
	topicToWrite map[string]int // topic -> index into WriteTags
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		localTags:    make(map[string]*tag.LocalTag),
		topicToRead:  make(map[string]int),
		topicToWrite: make(map[string]int),
	}
}

// AddReadTag appends a read tag and returns its index.
func (r *Registry) AddReadTag(t *tag.ReadTag) int {
	idx := len(r.ReadTags)
	r.ReadTags = append(r.ReadTags, t)
	if t.Topic != "" {
		r.topicToRead[t.Topic] = idx
	}
	return idx
}

// AddWriteTag appends a write tag and returns its index, registering it
// for inbound-topic lookup (SPEC_FULL.md §4.9 "look up topic in C1").
func (r *Registry) AddWriteTag(t *tag.WriteTag) int {
	idx := len(r.WriteTags)
	r.WriteTags = append(r.WriteTags, t)
	r.topicToWrite[t.Topic] = idx
	return idx
}

// AddLocalTag registers a local (non-Modbus) tag by topic.
func (r *Registry) AddLocalTag(t *tag.LocalTag) {
	r.localTags[t.Topic] = t
}

// LocalTag returns the local tag for topic, if any. The capacity here is
// small by construction (one CPU-temp tag in practice) so a map is more
// than the source's linear array ever needed, but the lookup contract —
// O(1) by topic, no dynamic add/remove after startup — matches §4.1.
func (r *Registry) LocalTag(topic string) (*tag.LocalTag, bool) {
	t, ok := r.localTags[topic]
	return t, ok
}

// LocalTags returns every registered local tag, for iteration in C10.
func (r *Registry) LocalTags() map[string]*tag.LocalTag {
	return r.localTags
}

// WriteTagByTopic resolves an inbound MQTT topic to a write tag index.
func (r *Registry) WriteTagByTopic(topic string) (int, bool) {
	idx, ok := r.topicToWrite[topic]
	return idx, ok
}

// SubscribeTopics returns every topic C9 must subscribe to on connect.
func (r *Registry) SubscribeTopics() []string {
	topics := make([]string, 0, len(r.topicToWrite))
	for topic := range r.topicToWrite {
		topics = append(topics, topic)
	}
	return topics
}

// PendingWritesCount returns the number of write tags currently pending,
// the quantity the backpressure check in C5 reads each iteration (§4.5).
func (r *Registry) PendingWritesCount() int {
	n := 0
	for _, w := range r.WriteTags {
		if w.WritePending {
			n++
		}
	}
	return n
}

// AddCycle registers an update cycle.
func (r *Registry) AddCycle(c *UpdateCycle) {
	r.Cycles = append(r.Cycles, c)
}

// AssignCycleIndices builds each cycle's TagIndices from the read tags'
// UpdateCycleID, once, at startup (mirrors mb_assign_updatecycles in
// original_source/mbbridge.cpp). Must run after every AddReadTag call.
func (r *Registry) AssignCycleIndices() {
	for _, c := range r.Cycles {
		c.TagIndices = c.TagIndices[:0]
		for i, t := range r.ReadTags {
			if t.UpdateCycleID == c.Ident {
				c.TagIndices = append(c.TagIndices, i)
			}
		}
	}
}

// GroupMembers returns the indices of every read tag with the given slaveID
// and groupID — the set S in SPEC_FULL.md §4.6.2.
func (r *Registry) GroupMembers(slaveID uint8, groupID int) []int {
	var members []int
	for i, t := range r.ReadTags {
		if t.SlaveID == slaveID && t.GroupID == groupID {
			members = append(members, i)
		}
	}
	return members
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"sync"

	"grimm.is/bastion/internal/errors"
)

const flowShards = 64

// FlowKey identifies a flow by its 5-tuple.
type FlowKey struct {
	SrcAddr  uint32
	DstAddr  uint32
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// Hash returns the 64-bit FNV-1a hash of the tuple used as the table key.
func (k FlowKey) Hash() uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, b := range [13]byte{
		byte(k.SrcAddr >> 24), byte(k.SrcAddr >> 16), byte(k.SrcAddr >> 8), byte(k.SrcAddr),
		byte(k.DstAddr >> 24), byte(k.DstAddr >> 16), byte(k.DstAddr >> 8), byte(k.DstAddr),
		byte(k.SrcPort >> 8), byte(k.SrcPort),
		byte(k.DstPort >> 8), byte(k.DstPort),
		k.Protocol,
	} {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}

// FlowState tags a flow entry.
type FlowState uint8

const (
	FlowUnknown FlowState = iota
	FlowEstablished
)

// FlowEntry records a flow that passed every admission check.
type FlowEntry struct {
	Key         FlowKey
	State       FlowState
	ChallengeID uint16
}

type flowShard struct {
	mu      sync.Mutex
	entries map[uint64]FlowEntry
}

// FlowTable records admitted flows keyed by tuple hash. Entries are never
// expired here; reaping is left to an external collaborator.
type FlowTable struct {
	shards   [flowShards]flowShard
	perShard int
}

// NewFlowTable creates a flow table bounded to capacity entries.
func NewFlowTable(capacity int) *FlowTable {
	t := &FlowTable{perShard: shardCapacity(capacity, flowShards)}
	for i := range t.shards {
		t.shards[i].entries = make(map[uint64]FlowEntry)
	}
	return t
}

func (t *FlowTable) shard(hash uint64) *flowShard {
	return &t.shards[shardIndex(uint32(hash^hash>>32), flowShards)]
}

// Record inserts an established entry for the flow on first sight. Existing
// entries are left as they are. A full shard fails the insert; the caller is
// expected to fail closed.
func (t *FlowTable) Record(key FlowKey) error {
	hash := key.Hash()
	s := t.shard(hash)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[hash]; ok {
		return nil
	}
	if len(s.entries) >= t.perShard {
		return errors.New(errors.KindCapacity, "flow table full")
	}
	s.entries[hash] = FlowEntry{Key: key, State: FlowEstablished}
	return nil
}

// Lookup returns the entry for the flow, if present.
func (t *FlowTable) Lookup(key FlowKey) (FlowEntry, bool) {
	hash := key.Hash()
	s := t.shard(hash)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[hash]
	return e, ok
}

// Len returns the number of recorded flows.
func (t *FlowTable) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

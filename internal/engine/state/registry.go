// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package state holds the shared mutable tables consulted by every packet
// decision: the protected-endpoint registry, the blacklist, the flow table
// and the outcome counters. Tables have fixed capacities set at construction
// and guarantee per-key atomicity; nothing here takes a lock across more than
// one table operation.
package state

import (
	"sync"

	"grimm.is/bastion/internal/errors"
)

// Edition is the application protocol family a protected endpoint speaks.
type Edition uint8

const (
	// EditionJava is the TCP handshake family (VarInt-framed handshake).
	EditionJava Edition = iota
	// EditionBedrock is the UDP datagram family (RakNet).
	EditionBedrock
)

func (e Edition) String() string {
	switch e {
	case EditionJava:
		return "java"
	case EditionBedrock:
		return "bedrock"
	default:
		return "unknown"
	}
}

// EndpointKey identifies a registry entry. Addr is masked to PrefixLen bits;
// Port and Proto are exact-match fields.
type EndpointKey struct {
	PrefixLen uint8
	Addr      uint32
	Port      uint16
	Proto     uint8
}

// EndpointPolicy is the protection policy attached to a registry entry.
type EndpointPolicy struct {
	OriginAddr  uint32
	OriginPort  uint16
	Edition     Edition
	RateLimit   uint32 // tokens per second
	BurstLimit  uint32 // bucket capacity
	Maintenance bool   // blocks all traffic to the endpoint
}

// EndpointEntry pairs a key with its policy, for listing and mirroring.
type EndpointEntry struct {
	Key    EndpointKey
	Policy EndpointPolicy
}

// Registry is the protected-endpoint table with longest-prefix-match reads.
// Mutation comes only from the control plane; the packet path only reads.
type Registry struct {
	mu       sync.RWMutex
	entries  map[EndpointKey]EndpointPolicy
	capacity int
}

// NewRegistry creates a registry bounded to capacity entries.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		entries:  make(map[EndpointKey]EndpointPolicy, capacity),
		capacity: capacity,
	}
}

func prefixMask(plen uint8) uint32 {
	if plen == 0 {
		return 0
	}
	return ^uint32(0) << (32 - plen)
}

// Add upserts an endpoint entry. The address is normalized to its prefix.
func (r *Registry) Add(key EndpointKey, policy EndpointPolicy) error {
	if key.PrefixLen > 32 {
		return errors.Errorf(errors.KindValidation, "prefix length %d exceeds address width", key.PrefixLen)
	}
	key.Addr &= prefixMask(key.PrefixLen)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; !ok && len(r.entries) >= r.capacity {
		return errors.Errorf(errors.KindCapacity, "endpoint registry full (%d entries)", r.capacity)
	}
	r.entries[key] = policy
	return nil
}

// Remove deletes an endpoint entry. It returns false if no entry matched.
func (r *Registry) Remove(key EndpointKey) bool {
	if key.PrefixLen > 32 {
		return false
	}
	key.Addr &= prefixMask(key.PrefixLen)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	return true
}

// Lookup returns the policy of the most specific entry covering addr with an
// exact port and protocol match. The probe walks prefix lengths from /32 down
// to /0, a bounded 33 iterations.
func (r *Registry) Lookup(addr uint32, port uint16, proto uint8) (EndpointPolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for plen := 32; plen >= 0; plen-- {
		key := EndpointKey{
			PrefixLen: uint8(plen),
			Addr:      addr & prefixMask(uint8(plen)),
			Port:      port,
			Proto:     proto,
		}
		if policy, ok := r.entries[key]; ok {
			return policy, true
		}
	}
	return EndpointPolicy{}, false
}

// Len returns the number of registry entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a copy of every registry entry.
func (r *Registry) Entries() []EndpointEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EndpointEntry, 0, len(r.entries))
	for k, p := range r.entries {
		out = append(out, EndpointEntry{Key: k, Policy: p})
	}
	return out
}

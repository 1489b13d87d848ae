// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"sync"

	"grimm.is/bastion/internal/errors"
)

const blacklistShards = 64

// BlacklistEntry is one blocked source, for listing.
type BlacklistEntry struct {
	Addr  uint32
	Until uint64 // block deadline, milliseconds
}

type blacklistShard struct {
	mu      sync.Mutex
	entries map[uint32]uint64
}

// Blacklist maps source addresses to a block-until deadline. Expired entries
// are removed lazily on lookup; there is no background sweep.
type Blacklist struct {
	shards   [blacklistShards]blacklistShard
	perShard int
}

// NewBlacklist creates a blacklist bounded to capacity entries.
func NewBlacklist(capacity int) *Blacklist {
	b := &Blacklist{perShard: shardCapacity(capacity, blacklistShards)}
	for i := range b.shards {
		b.shards[i].entries = make(map[uint32]uint64)
	}
	return b
}

func (b *Blacklist) shard(addr uint32) *blacklistShard {
	return &b.shards[shardIndex(addr, blacklistShards)]
}

// Blocked reports whether src is currently blocked at now. A deadline at or
// before now counts as expired and deletes the entry.
func (b *Blacklist) Blocked(src uint32, now uint64) bool {
	s := b.shard(src)
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.entries[src]
	if !ok {
		return false
	}
	if now >= until {
		delete(s.entries, src)
		return false
	}
	return true
}

// Add upserts a block deadline for src.
func (b *Blacklist) Add(src uint32, until uint64) error {
	s := b.shard(src)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[src]; !ok && len(s.entries) >= b.perShard {
		return errors.New(errors.KindCapacity, "blacklist full")
	}
	s.entries[src] = until
	return nil
}

// Remove deletes the entry for src if present.
func (b *Blacklist) Remove(src uint32) bool {
	s := b.shard(src)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[src]; !ok {
		return false
	}
	delete(s.entries, src)
	return true
}

// Len returns the number of entries, expired ones included.
func (b *Blacklist) Len() int {
	n := 0
	for i := range b.shards {
		s := &b.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Entries returns a copy of every entry.
func (b *Blacklist) Entries() []BlacklistEntry {
	var out []BlacklistEntry
	for i := range b.shards {
		s := &b.shards[i]
		s.mu.Lock()
		for addr, until := range s.entries {
			out = append(out, BlacklistEntry{Addr: addr, Until: until})
		}
		s.mu.Unlock()
	}
	return out
}

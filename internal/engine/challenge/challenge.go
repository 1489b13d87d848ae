// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package challenge delays admission of datagram traffic per source until a
// liveness condition holds, blunting source-address spoofing: the first
// packet from a source is consumed to issue a challenge, and only a source
// that keeps transmitting after a short delay is admitted.
//
// Passage is time-gated only; no response payload is inspected. A spoofed
// source that re-sends after the delay gets through, so this is a heuristic
// against naive floods, not a cryptographic handshake.
package challenge

import (
	"sync"

	"grimm.is/bastion/internal/engine/state"
)

const (
	shards = 64

	// TimeoutMillis is the age past which an outstanding challenge is
	// considered abandoned and reissued.
	TimeoutMillis = 5000
	// MinAgeMillis is the age a challenge must reach before the source's
	// continued traffic counts as passing it.
	MinAgeMillis = 100
)

type pending struct {
	issued uint64
	cookie uint32
}

type shard struct {
	mu      sync.Mutex
	pending map[uint32]pending
}

// Gate is the per-source challenge table. A source has at most one
// outstanding challenge.
type Gate struct {
	shards   [shards]shard
	perShard int
	counters *state.Counters
}

// New creates a gate bounded to capacity outstanding challenges; sent/passed
// events are tallied on counters.
func New(capacity int, counters *state.Counters) *Gate {
	g := &Gate{counters: counters, perShard: capacity / shards}
	if g.perShard < 1 {
		g.perShard = 1
	}
	for i := range g.shards {
		g.shards[i].pending = make(map[uint32]pending)
	}
	return g
}

func (g *Gate) shard(src uint32) *shard {
	return &g.shards[(src*2654435769)>>16%shards]
}

// Admit runs the gate state machine for one packet from src and reports
// whether the packet may proceed. The packet that triggers a challenge is
// always denied.
func (g *Gate) Admit(src uint32, now uint64) bool {
	s := g.shard(src)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[src]
	if ok {
		age := now - p.issued
		switch {
		case age > TimeoutMillis:
			// Abandoned; fall through to a single reissue below.
			delete(s.pending, src)
		case age > MinAgeMillis:
			delete(s.pending, src)
			g.counters.Inc(state.CounterChallengesPassed)
			return true
		default:
			// Still inside the minimum wait.
			return false
		}
	}

	if len(s.pending) >= g.perShard && !s.evictStalest() {
		// Could not commit challenge state; fail closed.
		return false
	}
	s.pending[src] = pending{issued: now, cookie: uint32(now) ^ src}
	g.counters.Inc(state.CounterChallengesSent)
	return false
}

// evictStalest drops the oldest outstanding challenge. Bounded by the fixed
// shard capacity. Caller holds the shard lock.
func (s *shard) evictStalest() bool {
	var (
		victim uint32
		oldest uint64
		found  bool
	)
	for src, p := range s.pending {
		if !found || p.issued < oldest {
			victim, oldest, found = src, p.issued, true
		}
	}
	if !found {
		return false
	}
	delete(s.pending, victim)
	return true
}

// Outstanding reports whether src currently has a pending challenge.
func (g *Gate) Outstanding(src uint32) bool {
	s := g.shard(src)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[src]
	return ok
}

// Len returns the number of outstanding challenges.
func (g *Gate) Len() int {
	n := 0
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.Lock()
		n += len(s.pending)
		s.mu.Unlock()
	}
	return n
}

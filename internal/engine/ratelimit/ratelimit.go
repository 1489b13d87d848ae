// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ratelimit implements per-source token-bucket admission control.
// Bucket parameters (rate, burst) come from the matched endpoint policy on
// every call, so one source shares a bucket across the endpoints it targets.
package ratelimit

import "sync"

const shards = 64

// Result of a Debit call.
type Result int

const (
	Allow Result = iota
	Deny
	// Error means bucket state could not be committed. Callers fail closed.
	Error
)

func (r Result) String() string {
	switch r {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "error"
	}
}

type bucket struct {
	lastUpdate uint64 // milliseconds
	tokens     uint32
}

type shard struct {
	mu      sync.Mutex
	buckets map[uint32]*bucket
}

// Limiter is the sharded per-source bucket table. When a shard is full the
// least-recently-updated bucket is evicted to make room; a source evicted
// this way simply re-enters with a fresh bucket.
type Limiter struct {
	shards   [shards]shard
	perShard int
}

// New creates a limiter bounded to capacity sources.
func New(capacity int) *Limiter {
	l := &Limiter{perShard: capacity / shards}
	if l.perShard < 1 {
		l.perShard = 1
	}
	for i := range l.shards {
		l.shards[i].buckets = make(map[uint32]*bucket)
	}
	return l
}

func (l *Limiter) shard(src uint32) *shard {
	return &l.shards[(src*2654435769)>>16%shards]
}

// Debit charges one packet from src against a bucket parameterized by rate
// (tokens per second) and burst (bucket capacity). Tokens refill with elapsed
// time, floor(elapsed_ms * rate / 1000), and saturate at burst.
func (l *Limiter) Debit(src uint32, now uint64, rate, burst uint32) Result {
	s := l.shard(src)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[src]
	if !ok {
		if burst == 0 {
			return Deny
		}
		if len(s.buckets) >= l.perShard {
			if !s.evictStalest() {
				return Error
			}
		}
		// The admitted first packet consumes its token.
		s.buckets[src] = &bucket{lastUpdate: now, tokens: burst - 1}
		return Allow
	}

	var elapsed uint64
	if now > b.lastUpdate {
		elapsed = now - b.lastUpdate
	}
	tokens := uint64(b.tokens) + elapsed*uint64(rate)/1000
	if tokens > uint64(burst) {
		tokens = uint64(burst)
	}

	if tokens == 0 {
		b.lastUpdate = now
		return Deny
	}

	b.tokens = uint32(tokens) - 1
	b.lastUpdate = now
	return Allow
}

// evictStalest drops the bucket with the oldest update time. The scan is
// bounded by the fixed shard capacity. Caller holds the shard lock.
func (s *shard) evictStalest() bool {
	var (
		victim uint32
		oldest uint64
		found  bool
	)
	for src, b := range s.buckets {
		if !found || b.lastUpdate < oldest {
			victim, oldest, found = src, b.lastUpdate, true
		}
	}
	if !found {
		return false
	}
	delete(s.buckets, victim)
	return true
}

// Len returns the number of tracked sources.
func (l *Limiter) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.buckets)
		s.mu.Unlock()
	}
	return n
}

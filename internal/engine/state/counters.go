// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import "sync/atomic"

// Counter indexes one slot of the fixed statistics array. The layout mirrors
// the stats map consumed by the kernel datapath, so indexes are stable.
type Counter int

const (
	CounterAllowed Counter = iota
	CounterRateLimited
	CounterBlacklisted
	CounterInvalidProtocol
	CounterChallengeFailed
	CounterMaintenance
	CounterTotal
	CounterDropped
	CounterPassed
	CounterForwarded
	CounterChallengesSent
	CounterChallengesPassed
	counterCount
)

func (c Counter) String() string {
	switch c {
	case CounterAllowed:
		return "allowed"
	case CounterRateLimited:
		return "rate_limited"
	case CounterBlacklisted:
		return "blacklisted"
	case CounterInvalidProtocol:
		return "invalid_protocol"
	case CounterChallengeFailed:
		return "challenge_failed"
	case CounterMaintenance:
		return "maintenance"
	case CounterTotal:
		return "total"
	case CounterDropped:
		return "dropped"
	case CounterPassed:
		return "passed"
	case CounterForwarded:
		return "forwarded"
	case CounterChallengesSent:
		return "challenges_sent"
	case CounterChallengesPassed:
		return "challenges_passed"
	default:
		return "unknown"
	}
}

// AllCounters returns every counter index in layout order.
func AllCounters() []Counter {
	out := make([]Counter, counterCount)
	for i := range out {
		out[i] = Counter(i)
	}
	return out
}

// Counters is the process-wide outcome statistics array. Increments are
// atomic; slots are reset only by reinitialization.
type Counters struct {
	slots [counterCount]atomic.Uint64
}

// NewCounters creates a zeroed counter array.
func NewCounters() *Counters {
	return &Counters{}
}

// Inc atomically increments the given counter.
func (c *Counters) Inc(ctr Counter) {
	if ctr >= 0 && ctr < counterCount {
		c.slots[ctr].Add(1)
	}
}

// Get returns the current value of the given counter.
func (c *Counters) Get(ctr Counter) uint64 {
	if ctr < 0 || ctr >= counterCount {
		return 0
	}
	return c.slots[ctr].Load()
}

// Snapshot returns a name → value view of every counter.
func (c *Counters) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, counterCount)
	for i := Counter(0); i < counterCount; i++ {
		out[i.String()] = c.slots[i].Load()
	}
	return out
}

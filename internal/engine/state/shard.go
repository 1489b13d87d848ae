// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

// shardIndex spreads 32-bit keys across n shards. Fibonacci hashing keeps
// adjacent addresses from landing in the same shard.
func shardIndex(key uint32, n int) int {
	return int((key * 2654435769) >> 16 % uint32(n))
}

// shardCapacity splits a table capacity across n shards, at least one entry
// per shard so tiny test capacities still admit something.
func shardCapacity(capacity, n int) int {
	per := capacity / n
	if per < 1 {
		per = 1
	}
	return per
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"testing"
)

func ip4(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

func TestRegistryExactMatch(t *testing.T) {
	r := NewRegistry(16)

	key := EndpointKey{PrefixLen: 32, Addr: ip4(198, 51, 100, 7), Port: 25565, Proto: 6}
	policy := EndpointPolicy{Edition: EditionJava, RateLimit: 100, BurstLimit: 200}
	if err := r.Add(key, policy); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, ok := r.Lookup(ip4(198, 51, 100, 7), 25565, 6)
	if !ok {
		t.Fatal("expected a match")
	}
	if got.RateLimit != 100 || got.Edition != EditionJava {
		t.Errorf("unexpected policy: %+v", got)
	}

	if _, ok := r.Lookup(ip4(198, 51, 100, 8), 25565, 6); ok {
		t.Error("neighbouring address should not match a /32")
	}
	if _, ok := r.Lookup(ip4(198, 51, 100, 7), 25566, 6); ok {
		t.Error("port is an exact-match field")
	}
	if _, ok := r.Lookup(ip4(198, 51, 100, 7), 25565, 17); ok {
		t.Error("protocol is an exact-match field")
	}
}

func TestRegistryLongestPrefixWins(t *testing.T) {
	r := NewRegistry(16)

	wide := EndpointPolicy{Edition: EditionJava, RateLimit: 10, BurstLimit: 20}
	narrow := EndpointPolicy{Edition: EditionJava, RateLimit: 99, BurstLimit: 200}

	if err := r.Add(EndpointKey{PrefixLen: 16, Addr: ip4(10, 20, 0, 0), Port: 25565, Proto: 6}, wide); err != nil {
		t.Fatalf("Add /16: %v", err)
	}
	if err := r.Add(EndpointKey{PrefixLen: 24, Addr: ip4(10, 20, 30, 0), Port: 25565, Proto: 6}, narrow); err != nil {
		t.Fatalf("Add /24: %v", err)
	}

	got, ok := r.Lookup(ip4(10, 20, 30, 40), 25565, 6)
	if !ok {
		t.Fatal("expected a match")
	}
	if got.RateLimit != 99 {
		t.Errorf("expected the /24 policy to win, got rate %d", got.RateLimit)
	}

	got, ok = r.Lookup(ip4(10, 20, 99, 1), 25565, 6)
	if !ok {
		t.Fatal("expected the /16 to cover the rest of the net")
	}
	if got.RateLimit != 10 {
		t.Errorf("expected the /16 policy, got rate %d", got.RateLimit)
	}
}

func TestRegistryDefaultRoutePrefix(t *testing.T) {
	r := NewRegistry(16)

	if err := r.Add(EndpointKey{PrefixLen: 0, Addr: 0, Port: 19132, Proto: 17}, EndpointPolicy{Edition: EditionBedrock, RateLimit: 5, BurstLimit: 5}); err != nil {
		t.Fatalf("Add /0: %v", err)
	}

	if _, ok := r.Lookup(ip4(203, 0, 113, 99), 19132, 17); !ok {
		t.Error("a /0 entry should cover any destination with matching port/proto")
	}
}

func TestRegistryAddNormalizesAddress(t *testing.T) {
	r := NewRegistry(16)

	// Host bits set; Add should mask them away.
	if err := r.Add(EndpointKey{PrefixLen: 24, Addr: ip4(10, 0, 0, 99), Port: 25565, Proto: 6}, EndpointPolicy{RateLimit: 1, BurstLimit: 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, ok := r.Lookup(ip4(10, 0, 0, 1), 25565, 6); !ok {
		t.Error("lookup within the normalized prefix should match")
	}

	if !r.Remove(EndpointKey{PrefixLen: 24, Addr: ip4(10, 0, 0, 0), Port: 25565, Proto: 6}) {
		t.Error("remove with the canonical key should succeed")
	}
}

func TestRegistryValidationAndCapacity(t *testing.T) {
	r := NewRegistry(1)

	if err := r.Add(EndpointKey{PrefixLen: 33, Addr: 1, Port: 1, Proto: 6}, EndpointPolicy{}); err == nil {
		t.Error("prefix length above 32 must be rejected")
	}

	if err := r.Add(EndpointKey{PrefixLen: 32, Addr: ip4(1, 1, 1, 1), Port: 1, Proto: 6}, EndpointPolicy{}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := r.Add(EndpointKey{PrefixLen: 32, Addr: ip4(2, 2, 2, 2), Port: 1, Proto: 6}, EndpointPolicy{}); err == nil {
		t.Error("second Add should fail on capacity")
	}
	// Upserting the existing key stays within capacity.
	if err := r.Add(EndpointKey{PrefixLen: 32, Addr: ip4(1, 1, 1, 1), Port: 1, Proto: 6}, EndpointPolicy{Maintenance: true}); err != nil {
		t.Errorf("upsert of existing key failed: %v", err)
	}
	got, _ := r.Lookup(ip4(1, 1, 1, 1), 1, 6)
	if !got.Maintenance {
		t.Error("upsert did not replace the policy")
	}
}

func TestRegistryRemoveMissing(t *testing.T) {
	r := NewRegistry(4)
	if r.Remove(EndpointKey{PrefixLen: 32, Addr: 1, Port: 1, Proto: 6}) {
		t.Error("removing an absent key should return false")
	}
}

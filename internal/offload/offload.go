// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package offload mirrors the endpoint registry and blacklist into kernel
// eBPF maps, so an XDP datapath attached by an external loader filters
// against the same state the in-process pipeline uses. Map layouts are
// byte-compatible with the datapath's structs; loading and attaching the
// program itself is not this module's concern.
package offload

import "encoding/binary"

const (
	endpointMapName  = "bastion_endpoints"
	blacklistMapName = "bastion_blacklist"

	endpointKeySize   = 12
	endpointValueSize = 20
	blacklistKeySize  = 4
	blacklistValSize  = 8

	endpointMaxEntries  = 10_000
	blacklistMaxEntries = 50_000
)

// endpointKeyBytes lays out the LPM trie key: a little-endian prefix length
// followed by the address in network byte order, then port, protocol and a
// pad byte, matching the datapath's key struct.
func endpointKeyBytes(prefixLen uint8, addr uint32, port uint16, proto uint8) []byte {
	b := make([]byte, endpointKeySize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(prefixLen))
	binary.BigEndian.PutUint32(b[4:8], addr)
	binary.LittleEndian.PutUint16(b[8:10], port)
	b[10] = proto
	return b
}

// endpointValueBytes lays out the policy value: origin address in network
// byte order, origin port, rate and burst limits, the edition tag and the
// maintenance flag, with padding where the datapath struct aligns.
func endpointValueBytes(originAddr uint32, originPort uint16, rate, burst uint32, edition uint8, maintenance bool) []byte {
	b := make([]byte, endpointValueSize)
	binary.BigEndian.PutUint32(b[0:4], originAddr)
	binary.LittleEndian.PutUint16(b[4:6], originPort)
	binary.LittleEndian.PutUint32(b[8:12], rate)
	binary.LittleEndian.PutUint32(b[12:16], burst)
	b[16] = edition
	if maintenance {
		b[17] = 1
	}
	return b
}

func blacklistKeyBytes(addr uint32) []byte {
	b := make([]byte, blacklistKeySize)
	binary.BigEndian.PutUint32(b, addr)
	return b
}

func blacklistValueBytes(until uint64) []byte {
	b := make([]byte, blacklistValSize)
	binary.LittleEndian.PutUint64(b, until)
	return b
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package validate holds the stateless first-packet decoders that confirm a
// payload opens with the handshake its endpoint's edition expects. Both
// decoders do bounded work and reject on any read past the payload end.
package validate

const (
	maxVarintBytes = 5

	handshakePacketID = 0x00

	minHandshakeLength = 5
	maxHandshakeLength = 100

	minProtocolVersion = 4
	maxProtocolVersion = 1000
)

// varint decodes a little-endian base-128 varint: 7 payload bits per byte,
// high bit set on continuation. At most maxVarintBytes bytes are read; a
// varint still continuing past that budget, or past the buffer, is invalid.
func varint(b []byte) (val uint32, n int, ok bool) {
	for i := 0; i < maxVarintBytes && i < len(b); i++ {
		c := b[i]
		val |= uint32(c&0x7f) << (7 * i)
		if c&0x80 == 0 {
			return val, i + 1, true
		}
	}
	return 0, 0, false
}

// Java reports whether payload opens with a plausible Java-edition handshake:
// a varint frame length within handshake bounds, the handshake packet id, and
// a varint protocol version within the versions the edition has shipped.
func Java(payload []byte) bool {
	length, n, ok := varint(payload)
	if !ok {
		return false
	}
	if length < minHandshakeLength || length > maxHandshakeLength {
		return false
	}
	off := n

	if off >= len(payload) || payload[off] != handshakePacketID {
		return false
	}
	off++

	version, _, ok := varint(payload[off:])
	if !ok {
		return false
	}
	return version >= minProtocolVersion && version <= maxProtocolVersion
}

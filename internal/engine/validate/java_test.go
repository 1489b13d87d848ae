// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package validate

import "testing"

// handshake builds a payload of varint(length), packet id, varint(version).
func handshake(length uint32, id byte, version uint32) []byte {
	out := appendVarint(nil, length)
	out = append(out, id)
	out = appendVarint(out, version)
	// Trailing handshake fields the validator does not inspect.
	out = append(out, 0x09, 'l', 'o', 'c', 'a', 'l', 'h', 'o', 's', 't')
	return out
}

func appendVarint(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b = append(b, c|0x80)
		} else {
			return append(b, c)
		}
	}
}

func TestJavaAcceptsWellFormedHandshake(t *testing.T) {
	if !Java(handshake(50, 0x00, 760)) {
		t.Error("well-formed handshake (len 50, version 760) should be accepted")
	}
	if !Java(handshake(5, 0x00, 4)) {
		t.Error("boundary values len 5, version 4 should be accepted")
	}
	if !Java(handshake(100, 0x00, 1000)) {
		t.Error("boundary values len 100, version 1000 should be accepted")
	}
}

func TestJavaLengthBounds(t *testing.T) {
	if Java(handshake(4, 0x00, 760)) {
		t.Error("declared length 4 is below the minimum and must reject")
	}
	if Java(handshake(101, 0x00, 760)) {
		t.Error("declared length 101 is above the maximum and must reject")
	}
}

func TestJavaPacketID(t *testing.T) {
	if Java(handshake(50, 0x01, 760)) {
		t.Error("non-zero packet id must reject")
	}
}

func TestJavaProtocolVersionBounds(t *testing.T) {
	if Java(handshake(50, 0x00, 3)) {
		t.Error("protocol version 3 is below the minimum and must reject")
	}
	if Java(handshake(50, 0x00, 1001)) {
		t.Error("protocol version 1001 is above the maximum and must reject")
	}
}

func TestJavaTruncation(t *testing.T) {
	if Java(nil) {
		t.Error("empty payload must reject")
	}
	if Java([]byte{0x32}) {
		t.Error("payload ending after the length varint must reject")
	}
	if Java([]byte{0x32, 0x00}) {
		t.Error("payload ending before the version varint must reject")
	}
	// A varint that keeps its continuation bit set forever.
	if Java([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x00}) {
		t.Error("varint exceeding its byte budget must reject")
	}
}

func TestVarintDecoding(t *testing.T) {
	cases := []struct {
		in   []byte
		val  uint32
		n    int
		ok   bool
		name string
	}{
		{[]byte{0x00}, 0, 1, true, "zero"},
		{[]byte{0x7f}, 127, 1, true, "max single byte"},
		{[]byte{0x80, 0x01}, 128, 2, true, "two bytes"},
		{[]byte{0xf8, 0x05}, 760, 2, true, "protocol 760"},
		{[]byte{0x80}, 0, 0, false, "dangling continuation"},
		{nil, 0, 0, false, "empty"},
	}
	for _, tc := range cases {
		val, n, ok := varint(tc.in)
		if val != tc.val || n != tc.n || ok != tc.ok {
			t.Errorf("%s: varint(%v) = (%d, %d, %v), want (%d, %d, %v)",
				tc.name, tc.in, val, n, ok, tc.val, tc.n, tc.ok)
		}
	}
}

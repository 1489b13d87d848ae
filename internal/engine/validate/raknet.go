// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package validate

// RakNet offline-message packet types seen during Bedrock session setup.
const (
	idUnconnectedPing         = 0x05
	idUnconnectedPong         = 0x06
	idOpenConnectionRequest1  = 0x07
	idOpenConnectionReply1    = 0x08
	idOpenConnectionRequest2  = 0x09
	idOpenConnectionReply2    = 0x10
	idIncompatibleProtocol    = 0x13
	idUnconnectedPingOpenConn = 0x15
	idOpenConnectionBroadcast = 0x1c
)

// raknetMagic is the fixed offline-message marker following ping packet ids.
var raknetMagic = [16]byte{
	0x00, 0xff, 0xff, 0x00,
	0xfe, 0xfe, 0xfe, 0xfe,
	0xfd, 0xfd, 0xfd, 0xfd,
	0x12, 0x34, 0x56, 0x78,
}

// RakNet reports whether payload opens like a RakNet offline message. Ping
// variants must carry the offline-message magic directly after the packet id;
// the remaining accepted ids need no further payload.
func RakNet(payload []byte) bool {
	if len(payload) < 1 {
		return false
	}

	switch payload[0] {
	case idUnconnectedPing, idUnconnectedPingOpenConn:
		if len(payload) < 1+len(raknetMagic) {
			return false
		}
		for i, m := range raknetMagic {
			if payload[1+i] != m {
				return false
			}
		}
		return true
	case idUnconnectedPong, idOpenConnectionRequest1, idOpenConnectionReply1,
		idOpenConnectionRequest2, idOpenConnectionReply2,
		idIncompatibleProtocol, idOpenConnectionBroadcast:
		return true
	default:
		return false
	}
}

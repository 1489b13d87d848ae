// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package decode extracts the 5-tuple and payload view from a raw Ethernet
// frame. It is allocation-free and every field read is bounds-checked; a
// header that would run past the frame end classifies the frame as malformed.
// Only IPv4 over Ethernet carrying TCP or UDP is decoded; anything else is
// pass-through for the ordinary network stack.
package decode

import "encoding/binary"

const (
	etherHeaderLen = 14
	etherTypeIPv4  = 0x0800

	ipv4MinHeaderLen = 20

	tcpMinHeaderLen = 20
	udpHeaderLen    = 8

	// ProtoTCP and ProtoUDP are the IPv4 protocol numbers this engine decodes.
	ProtoTCP = 6
	ProtoUDP = 17
)

// Result classifies a frame.
type Result uint8

const (
	// Decoded: the frame carries IPv4 TCP/UDP and Packet is populated.
	Decoded Result = iota
	// PassThrough: a family or protocol this engine does not inspect.
	PassThrough
	// Malformed: a header would read past the frame end.
	Malformed
)

func (r Result) String() string {
	switch r {
	case Decoded:
		return "decoded"
	case PassThrough:
		return "pass_through"
	default:
		return "malformed"
	}
}

// Packet is the decoded view of a frame. Payload aliases the input buffer.
type Packet struct {
	SrcAddr  uint32
	DstAddr  uint32
	Protocol uint8
	SrcPort  uint16
	DstPort  uint16
	Payload  []byte
}

// Parse decodes one Ethernet frame.
func Parse(frame []byte) (Packet, Result) {
	if len(frame) < etherHeaderLen {
		return Packet{}, Malformed
	}
	if binary.BigEndian.Uint16(frame[12:14]) != etherTypeIPv4 {
		return Packet{}, PassThrough
	}

	ip := frame[etherHeaderLen:]
	if len(ip) < ipv4MinHeaderLen {
		return Packet{}, Malformed
	}
	if ip[0]>>4 != 4 {
		return Packet{}, Malformed
	}
	ihl := int(ip[0]&0x0f) * 4
	if ihl < ipv4MinHeaderLen || len(ip) < ihl {
		return Packet{}, Malformed
	}

	pkt := Packet{
		Protocol: ip[9],
		SrcAddr:  binary.BigEndian.Uint32(ip[12:16]),
		DstAddr:  binary.BigEndian.Uint32(ip[16:20]),
	}

	transport := ip[ihl:]
	switch pkt.Protocol {
	case ProtoTCP:
		if len(transport) < tcpMinHeaderLen {
			return Packet{}, Malformed
		}
		dataOff := int(transport[12]>>4) * 4
		if dataOff < tcpMinHeaderLen || len(transport) < dataOff {
			return Packet{}, Malformed
		}
		pkt.SrcPort = binary.BigEndian.Uint16(transport[0:2])
		pkt.DstPort = binary.BigEndian.Uint16(transport[2:4])
		pkt.Payload = transport[dataOff:]
	case ProtoUDP:
		if len(transport) < udpHeaderLen {
			return Packet{}, Malformed
		}
		pkt.SrcPort = binary.BigEndian.Uint16(transport[0:2])
		pkt.DstPort = binary.BigEndian.Uint16(transport[2:4])
		pkt.Payload = transport[udpHeaderLen:]
	default:
		return Packet{}, PassThrough
	}

	return pkt, Decoded
}

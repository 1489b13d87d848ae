// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import (
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var (
	srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func tcpFrame(t *testing.T, payload []byte) []byte {
	t.Helper()

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(192, 0, 2, 1),
		DstIP:    net.IPv4(198, 51, 100, 7),
	}
	tcp := &layers.TCP{SrcPort: 54321, DstPort: 25565, PSH: true, ACK: true}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func udpFrame(t *testing.T, payload []byte) []byte {
	t.Helper()

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 0, 2, 1),
		DstIP:    net.IPv4(198, 51, 100, 7),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 19132}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func TestParseTCP(t *testing.T) {
	payload := []byte{0x10, 0x00, 0xf8, 0x05}
	pkt, res := Parse(tcpFrame(t, payload))

	require.Equal(t, Decoded, res)
	require.Equal(t, uint32(0xC0000201), pkt.SrcAddr) // 192.0.2.1
	require.Equal(t, uint32(0xC6336407), pkt.DstAddr) // 198.51.100.7
	require.Equal(t, uint8(ProtoTCP), pkt.Protocol)
	require.Equal(t, uint16(54321), pkt.SrcPort)
	require.Equal(t, uint16(25565), pkt.DstPort)
	require.Equal(t, payload, pkt.Payload)
}

func TestParseUDP(t *testing.T) {
	payload := []byte{0x05, 0x00, 0xff}
	pkt, res := Parse(udpFrame(t, payload))

	require.Equal(t, Decoded, res)
	require.Equal(t, uint8(ProtoUDP), pkt.Protocol)
	require.Equal(t, uint16(40000), pkt.SrcPort)
	require.Equal(t, uint16(19132), pkt.DstPort)
	require.Equal(t, payload, pkt.Payload)
}

func TestParseNonIPv4PassesThrough(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: srcMAC, SourceProtAddress: []byte{192, 0, 2, 1},
		DstHwAddress: make([]byte, 6), DstProtAddress: []byte{192, 0, 2, 2},
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp))

	_, res := Parse(buf.Bytes())
	require.Equal(t, PassThrough, res)
}

func TestParseNonTCPUDPPassesThrough(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.IPv4(192, 0, 2, 1),
		DstIP:    net.IPv4(198, 51, 100, 7),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, icmp))

	_, res := Parse(buf.Bytes())
	require.Equal(t, PassThrough, res)
}

func TestParseTruncation(t *testing.T) {
	full := tcpFrame(t, []byte{0x01, 0x02, 0x03, 0x04})

	cases := []struct {
		name string
		cut  int // bytes kept
	}{
		{"empty", 0},
		{"partial ethernet", 10},
		{"partial ip header", 14 + 12},
		{"partial tcp header", 14 + 20 + 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, res := Parse(full[:tc.cut])
			require.Equal(t, Malformed, res)
		})
	}
}

func TestParseBogusIPHeaderLength(t *testing.T) {
	frame := tcpFrame(t, []byte{0x01})

	// IHL claiming more header than the frame holds.
	frame[14] = 0x4f
	_, res := Parse(frame)
	require.Equal(t, Malformed, res)

	// IHL below the minimum.
	frame[14] = 0x42
	_, res = Parse(frame)
	require.Equal(t, Malformed, res)
}

func TestParseBogusTCPDataOffset(t *testing.T) {
	frame := tcpFrame(t, []byte{0x01})

	// Data offset pointing far past the segment end.
	frame[14+20+12] = 0xf0
	_, res := Parse(frame)
	require.Equal(t, Malformed, res)
}

func TestParseUDPHeaderTooShort(t *testing.T) {
	frame := udpFrame(t, nil)
	_, res := Parse(frame[:14+20+7])
	require.Equal(t, Malformed, res)
}

// Package netstat reads the OS IPv4 TCP connection table with owning PIDs.
package netstat

import (
	"net"

	"github.com/eliteGoblin/netwatch/internal/domain"
)

// tcpRowOwnerPID mirrors MIB_TCPROW_OWNER_PID. Addresses are stored as
// little-endian uint32; ports live network-order in the first two bytes of
// a four-byte field.
type tcpRowOwnerPID struct {
	state      uint32
	localAddr  uint32
	localPort  [4]byte
	remoteAddr uint32
	remotePort [4]byte
	pid        uint32
}

// portFromNetworkOrder converts the raw port field to host order.
// 0x01BB in the leading bytes is port 443, not 0xBB01.
func portFromNetworkOrder(raw [4]byte) uint16 {
	return uint16(raw[0])<<8 | uint16(raw[1])
}

// ipFromLittleEndian converts a little-endian packed IPv4 address.
// The in-memory byte order is already network order, so the bytes map
// straight onto the dotted quad.
func ipFromLittleEndian(addr uint32) net.IP {
	return net.IPv4(byte(addr), byte(addr>>8), byte(addr>>16), byte(addr>>24)).To4()
}

// decodeRow turns one raw table row into a Connection. State values outside
// the known range are passed through rather than rejected.
func decodeRow(row tcpRowOwnerPID) domain.Connection {
	return domain.Connection{
		State: domain.ConnState(row.state),
		Local: domain.Endpoint{
			IP:   ipFromLittleEndian(row.localAddr),
			Port: portFromNetworkOrder(row.localPort),
		},
		Remote: domain.Endpoint{
			IP:   ipFromLittleEndian(row.remoteAddr),
			Port: portFromNetworkOrder(row.remotePort),
		},
		PID: int32(row.pid),
	}
}

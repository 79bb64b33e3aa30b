//go:build !windows

package netstat

import (
	"fmt"
	"net"

	gopsnet "github.com/shirou/gopsutil/v3/net"

	"github.com/eliteGoblin/netwatch/internal/domain"
)

// statusToState maps gopsutil status strings onto connection states.
var statusToState = map[string]domain.ConnState{
	"CLOSE":       domain.StateClosed,
	"LISTEN":      domain.StateListen,
	"SYN_SENT":    domain.StateSYNSent,
	"SYN_RECV":    domain.StateSYNReceived,
	"ESTABLISHED": domain.StateEstablished,
	"FIN_WAIT1":   domain.StateFinWait1,
	"FIN_WAIT2":   domain.StateFinWait2,
	"CLOSE_WAIT":  domain.StateCloseWait,
	"CLOSING":     domain.StateClosing,
	"LAST_ACK":    domain.StateLastAck,
	"TIME_WAIT":   domain.StateTimeWait,
	"DELETE":      domain.StateDeleteTCB,
}

// Reader reads the IPv4 TCP table via gopsutil (procfs on Linux,
// libproc on macOS).
type Reader struct{}

// NewReader creates a connection table reader.
func NewReader() *Reader {
	return &Reader{}
}

// Snapshot returns all IPv4 TCP connections with owning PIDs, in the order
// gopsutil presents them.
func (r *Reader) Snapshot() ([]domain.Connection, error) {
	stats, err := gopsnet.Connections("tcp4")
	if err != nil {
		return nil, fmt.Errorf("failed to get tcp connections: %w", err)
	}
	conns := make([]domain.Connection, 0, len(stats))
	for _, s := range stats {
		conns = append(conns, domain.Connection{
			State: statusToState[s.Status],
			Local: domain.Endpoint{
				IP:   parseIPv4(s.Laddr.IP),
				Port: uint16(s.Laddr.Port),
			},
			Remote: domain.Endpoint{
				IP:   parseIPv4(s.Raddr.IP),
				Port: uint16(s.Raddr.Port),
			},
			PID: s.Pid,
		})
	}
	return conns, nil
}

func parseIPv4(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		return net.IPv4zero.To4()
	}
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip
}

var _ domain.TableReader = (*Reader)(nil)

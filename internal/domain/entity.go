// Package domain contains core entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"net"
	"time"
)

// ConnState is a TCP connection state as reported by the OS connection table.
// Values follow MIB_TCP_STATE; unmapped values are carried through as-is.
type ConnState uint8

const (
	StateUnknown ConnState = iota
	StateClosed
	StateListen
	StateSYNSent
	StateSYNReceived
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateCloseWait
	StateClosing
	StateLastAck
	StateTimeWait
	StateDeleteTCB
)

var connStateNames = map[ConnState]string{
	StateClosed:      "Closed",
	StateListen:      "Listen",
	StateSYNSent:     "SYN_Sent",
	StateSYNReceived: "SYN_Received",
	StateEstablished: "Established",
	StateFinWait1:    "Fin_Wait1",
	StateFinWait2:    "Fin_Wait2",
	StateCloseWait:   "Close_Wait",
	StateClosing:     "Closing",
	StateLastAck:     "Last_Ack",
	StateTimeWait:    "Time_Wait",
	StateDeleteTCB:   "Delete_TCB",
}

// String returns the state name, or "State(n)" for values the OS reported
// that have no mapping.
func (s ConnState) String() string {
	if name, ok := connStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Endpoint is one side of a TCP connection.
type Endpoint struct {
	IP   net.IP
	Port uint16
}

// String formats the endpoint as "ip:port".
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}

// Connection is one observed TCP connection at a point in time.
// Constructed fresh on every poll from the raw OS table, never persisted.
// PID may be 0 if the OS reports no owner for the socket.
type Connection struct {
	State  ConnState
	Local  Endpoint
	Remote Endpoint
	PID    int32
}

// ConnKey is the deduplication identity of an observed connection.
// Two connections with the same key are the same observed event and must
// not be reported twice. Comparable, so it is usable as a map key.
type ConnKey struct {
	PID        int32
	LocalIP    string
	LocalPort  uint16
	RemoteIP   string
	RemotePort uint16
	State      ConnState
}

// Key derives the ConnKey for this connection.
func (c Connection) Key() ConnKey {
	return ConnKey{
		PID:        c.PID,
		LocalIP:    c.Local.IP.String(),
		LocalPort:  c.Local.Port,
		RemoteIP:   c.Remote.IP.String(),
		RemotePort: c.Remote.Port,
		State:      c.State,
	}
}

// ConnEvent is a newly observed outbound connection attributed to its
// owning process. Emitted at most once per distinct ConnKey for the
// lifetime of the monitor.
type ConnEvent struct {
	PID        int32
	Process    string
	Local      Endpoint
	Remote     Endpoint
	ObservedAt time.Time
}

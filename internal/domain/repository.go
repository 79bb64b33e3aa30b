package domain

import "context"

// TableReader queries the OS for the current IPv4 TCP connection table.
// Implementation: iphlpapi GetExtendedTcpTable on Windows, gopsutil elsewhere.
type TableReader interface {
	// Snapshot returns all IPv4 TCP connections with their owning PID.
	// The returned slice preserves the order the OS presented the rows.
	Snapshot() ([]Connection, error)
}

// ProcessResolver maps a PID to a human-readable process name.
// Implementation: gopsutil lookup behind a process-lifetime cache.
type ProcessResolver interface {
	// Resolve returns the short name of the process owning pid, or
	// "Unknown" when pid <= 0 or the lookup fails. Never returns an error;
	// resolution failures are expected (race with process exit) and must
	// not block event emission.
	Resolve(pid int32) string
}

// Prober determines whether the host currently has internet reachability.
type Prober interface {
	// Probe reports reachability using a layered strategy:
	// interface/gateway gate, then ICMP echo, then DNS fallback.
	// All sub-probes are bounded by timeouts; ctx cancels between tiers.
	Probe(ctx context.Context) bool
}

// EventSink consumes monitor output (logging, alerting, audit journal).
type EventSink interface {
	// Publish records one new-connection event.
	Publish(event ConnEvent) error

	// PublishReachability records the reachability value for a tick.
	PublishReachability(reachable bool) error
}

// Package monitor implements the connection diff engine and the poll loop
// that drives it together with the reachability prober.
package monitor

import (
	"time"

	"github.com/eliteGoblin/netwatch/internal/domain"
)

// Tracker turns repeated connection-table snapshots into a stream of
// new-connection events.
//
// The seen set grows monotonically for the tracker's lifetime and is never
// evicted, so memory is proportional to the distinct connections ever
// observed. Known limitation of the baseline design.
//
// Not safe for concurrent use; the monitor owns one instance on a single
// poll-loop goroutine.
type Tracker struct {
	resolver domain.ProcessResolver
	seen     map[domain.ConnKey]struct{}
}

// NewTracker creates a tracker with an empty seen set.
func NewTracker(resolver domain.ProcessResolver) *Tracker {
	return &Tracker{
		resolver: resolver,
		seen:     make(map[domain.ConnKey]struct{}),
	}
}

// reportable filters to the states worth surfacing: only Established
// connections are active outbound sessions. Listeners and half-closed
// sockets never produce events.
func reportable(state domain.ConnState) bool {
	switch state {
	case domain.StateEstablished:
		return true
	case domain.StateUnknown, domain.StateClosed, domain.StateListen,
		domain.StateSYNSent, domain.StateSYNReceived, domain.StateFinWait1,
		domain.StateFinWait2, domain.StateCloseWait, domain.StateClosing,
		domain.StateLastAck, domain.StateTimeWait, domain.StateDeleteTCB:
		return false
	}
	// States passed through from the OS without a mapping.
	return false
}

// Diff emits one event per connection whose key has not been seen before,
// in the order the table presented the rows. Re-running with the same
// snapshot and an unchanged seen set emits nothing.
func (t *Tracker) Diff(conns []domain.Connection) []domain.ConnEvent {
	var events []domain.ConnEvent
	now := time.Now()
	for _, conn := range conns {
		if !reportable(conn.State) {
			continue
		}
		key := conn.Key()
		if _, ok := t.seen[key]; ok {
			continue
		}
		t.seen[key] = struct{}{}
		events = append(events, domain.ConnEvent{
			PID:        conn.PID,
			Process:    t.resolver.Resolve(conn.PID),
			Local:      conn.Local,
			Remote:     conn.Remote,
			ObservedAt: now,
		})
	}
	return events
}

// SeenCount returns the number of distinct keys observed so far.
func (t *Tracker) SeenCount() int {
	return len(t.seen)
}

// Package resolve maps PIDs to process names with a process-lifetime cache.
package resolve

import (
	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/netwatch/internal/domain"
)

// UnknownProcess is the sentinel name for PIDs that cannot be resolved.
const UnknownProcess = "Unknown"

// lookupFunc queries the OS for the short name of a live process.
type lookupFunc func(pid int32) (string, error)

// gopsutilLookup resolves a PID via gopsutil.
func gopsutilLookup(pid int32) (string, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return "", err
	}
	return p.Name()
}

// CachedResolver implements domain.ProcessResolver with a lookup cache.
//
// Successful lookups are cached for the resolver's lifetime; failures are
// not, so a PID that was mid-exit on one tick can still resolve on a later
// one. PID reuse is not detected: a recycled PID can return the name of the
// earlier process. Known limitation, accepted for a performance cache.
//
// Not safe for concurrent use; the monitor owns one instance on a single
// poll-loop goroutine.
type CachedResolver struct {
	lookup lookupFunc
	cache  map[int32]string
}

// NewCachedResolver creates a resolver backed by gopsutil.
func NewCachedResolver() *CachedResolver {
	return &CachedResolver{
		lookup: gopsutilLookup,
		cache:  make(map[int32]string),
	}
}

// Resolve returns the short name of the process owning pid.
// pid <= 0 resolves to the sentinel without touching cache or OS.
func (r *CachedResolver) Resolve(pid int32) string {
	if pid <= 0 {
		return UnknownProcess
	}
	if name, ok := r.cache[pid]; ok {
		return name
	}
	name, err := r.lookup(pid)
	if err != nil || name == "" {
		// Process exited, access denied, or PID unknown. Transient by
		// assumption; do not cache the negative result.
		return UnknownProcess
	}
	r.cache[pid] = name
	return name
}

// Len returns the number of cached entries.
func (r *CachedResolver) Len() int {
	return len(r.cache)
}

var _ domain.ProcessResolver = (*CachedResolver)(nil)

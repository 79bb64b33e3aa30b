package resolve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// countingLookup records how many times the OS lookup was invoked.
type countingLookup struct {
	names map[int32]string
	calls int
}

func (c *countingLookup) lookup(pid int32) (string, error) {
	c.calls++
	if name, ok := c.names[pid]; ok {
		return name, nil
	}
	return "", errors.New("process does not exist")
}

func newTestResolver(names map[int32]string) (*CachedResolver, *countingLookup) {
	counter := &countingLookup{names: names}
	return &CachedResolver{
		lookup: counter.lookup,
		cache:  make(map[int32]string),
	}, counter
}

// TestResolveSentinel verifies non-positive PIDs resolve to the sentinel
// without cache entries or OS calls.
func TestResolveSentinel(t *testing.T) {
	r, counter := newTestResolver(nil)

	assert.Equal(t, UnknownProcess, r.Resolve(0))
	assert.Equal(t, UnknownProcess, r.Resolve(-1))
	assert.Equal(t, 0, counter.calls)
	assert.Equal(t, 0, r.Len())
}

// TestResolveCacheHit verifies a second resolve of the same PID does not
// trigger another OS lookup.
func TestResolveCacheHit(t *testing.T) {
	r, counter := newTestResolver(map[int32]string{100: "chrome.exe"})

	assert.Equal(t, "chrome.exe", r.Resolve(100))
	assert.Equal(t, 1, counter.calls)

	assert.Equal(t, "chrome.exe", r.Resolve(100))
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, 1, r.Len())
}

// TestResolveFailureNotCached verifies a failed lookup degrades to the
// sentinel and re-resolves once the PID becomes valid.
func TestResolveFailureNotCached(t *testing.T) {
	r, counter := newTestResolver(map[int32]string{})

	assert.Equal(t, UnknownProcess, r.Resolve(200))
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, 0, r.Len())

	// The PID becomes valid on a later tick and must resolve fresh.
	counter.names[200] = "sshd"
	assert.Equal(t, "sshd", r.Resolve(200))
	assert.Equal(t, 2, counter.calls)
	assert.Equal(t, 1, r.Len())
}

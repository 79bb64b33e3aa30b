package journal

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/netwatch/internal/domain"
)

func testEvent(pid int32, process string) domain.ConnEvent {
	return domain.ConnEvent{
		PID:        pid,
		Process:    process,
		Local:      domain.Endpoint{IP: net.IPv4(10, 0, 0, 5).To4(), Port: 51000},
		Remote:     domain.Endpoint{IP: net.IPv4(142, 250, 72, 206).To4(), Port: 443},
		ObservedAt: time.Now(),
	}
}

func openTestJournal(t *testing.T, dir string) *Journal {
	t.Helper()
	key, err := NewFileKeyProvider(dir).EnsureKey()
	require.NoError(t, err)
	j, err := Open(dir, key)
	require.NoError(t, err)
	return j
}

// TestJournalAppend verifies events are appended and countable.
func TestJournalAppend(t *testing.T) {
	dir := t.TempDir()
	j := openTestJournal(t, dir)
	defer j.Close()

	require.NoError(t, j.Publish(testEvent(100, "chrome")))
	require.NoError(t, j.Publish(testEvent(200, "slack")))

	n, err := j.EventCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// TestJournalPersistsAcrossReopen verifies the trail survives a restart when
// opened with the same key.
func TestJournalPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	j := openTestJournal(t, dir)
	require.NoError(t, j.Publish(testEvent(100, "chrome")))
	require.NoError(t, j.Close())

	j = openTestJournal(t, dir)
	defer j.Close()

	n, err := j.EventCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestJournalWrongKey verifies the journal is unreadable with a different key.
func TestJournalWrongKey(t *testing.T) {
	dir := t.TempDir()

	j := openTestJournal(t, dir)
	require.NoError(t, j.Publish(testEvent(100, "chrome")))
	require.NoError(t, j.Close())

	wrongKey := make([]byte, keySize)
	for i := range wrongKey {
		wrongKey[i] = byte(i)
	}
	j2, err := Open(dir, wrongKey)
	if err == nil {
		defer j2.Close()
		_, err = j2.EventCount()
	}
	assert.Error(t, err)
}

// TestJournalReachabilityTransitionsOnly verifies steady-state values are
// not journaled.
func TestJournalReachabilityTransitionsOnly(t *testing.T) {
	dir := t.TempDir()
	j := openTestJournal(t, dir)
	defer j.Close()

	require.NoError(t, j.PublishReachability(true))
	require.NoError(t, j.PublishReachability(true))
	require.NoError(t, j.PublishReachability(false))
	require.NoError(t, j.PublishReachability(false))
	require.NoError(t, j.PublishReachability(true))

	var n int
	require.NoError(t, j.db.QueryRow(`SELECT COUNT(*) FROM reachability`).Scan(&n))
	assert.Equal(t, 3, n)
}

package journal

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/netwatch/internal/domain"
)

const journalDBName = "journal.db"

// Journal implements domain.EventSink on a SQLCipher encrypted SQLite
// database. It is an audit artifact, not monitor state: the monitor's seen
// set and caches still rebuild from empty on every start.
//
// Connection events are appended once each; reachability is recorded only
// on transitions to keep the trail compact.
type Journal struct {
	db     *sql.DB
	dbPath string

	lastReachable *bool
}

// Open opens (or creates) the encrypted journal in dataDir. The key is used
// as the SQLCipher passphrase via PRAGMA key.
func Open(dataDir string, key []byte) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, journalDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	j := &Journal{
		db:     db,
		dbPath: dbPath,
	}
	if err := j.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conn_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		observed_at INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		process TEXT NOT NULL,
		local_addr TEXT NOT NULL,
		local_port INTEGER NOT NULL,
		remote_addr TEXT NOT NULL,
		remote_port INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reachability (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		changed_at INTEGER NOT NULL,
		reachable INTEGER NOT NULL
	);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Publish appends one connection event to the journal.
func (j *Journal) Publish(event domain.ConnEvent) error {
	observedAt := event.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}
	_, err := j.db.Exec(`
		INSERT INTO conn_events
			(observed_at, pid, process, local_addr, local_port, remote_addr, remote_port)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		observedAt.Unix(), event.PID, event.Process,
		event.Local.IP.String(), event.Local.Port,
		event.Remote.IP.String(), event.Remote.Port,
	)
	if err != nil {
		return fmt.Errorf("failed to journal event: %w", err)
	}
	return nil
}

// PublishReachability records the value when it differs from the previous
// tick; steady-state ticks are not journaled.
func (j *Journal) PublishReachability(reachable bool) error {
	if j.lastReachable != nil && *j.lastReachable == reachable {
		return nil
	}
	j.lastReachable = &reachable

	_, err := j.db.Exec(
		`INSERT INTO reachability (changed_at, reachable) VALUES (?, ?)`,
		time.Now().Unix(), boolToInt(reachable),
	)
	if err != nil {
		return fmt.Errorf("failed to journal reachability: %w", err)
	}
	return nil
}

// EventCount returns the number of journaled connection events.
func (j *Journal) EventCount() (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM conn_events`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.EventSink = (*Journal)(nil)

package recordstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/eunmann/csvload/pkg/membudget"
)

// DefaultDBPath is the store file created in the working directory.
const DefaultDBPath = "CodeInfinity.db"

// Config holds configuration for the record store.
//
// The defaults trade crash safety for insert throughput: no rollback journal,
// no fsync, a large page cache, and an exclusive file lock for the session.
// A crash mid-import can corrupt the file; the source CSV is re-imported.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
	// JournalMode sets the journal_mode pragma. "OFF" disables the rollback journal.
	JournalMode string
	// Synchronous sets the synchronous pragma. "OFF" skips fsync on commit.
	Synchronous string
	// LockingMode sets the locking_mode pragma. "EXCLUSIVE" holds the file
	// lock until the session closes.
	LockingMode string
	// TempStore sets the temp_store pragma. "MEMORY" keeps temp structures in RAM.
	TempStore string
	// CacheSizeKB is the page cache budget in KiB. Zero leaves SQLite's default.
	CacheSizeKB int
	// BusyTimeout is how long Open waits for another session's lock before failing.
	BusyTimeout time.Duration
}

// DefaultConfig returns the bulk-load configuration for dbPath.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:      dbPath,
		JournalMode: "OFF",
		Synchronous: "OFF",
		LockingMode: "EXCLUSIVE",
		TempStore:   "MEMORY",
		CacheSizeKB: DefaultCacheSizeKB(),
		BusyTimeout: 5 * time.Second,
	}
}

// DefaultCacheSizeKB sizes the page cache at one eighth of system RAM,
// clamped to [64 MiB, 1 GiB].
func DefaultCacheSizeKB() int {
	return membudget.Auto().KiB()
}

// Validate checks configuration values and returns an error for invalid settings.
// Empty pragma values leave SQLite's own default in place.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("DBPath is required")
	}
	if err := oneOf("JournalMode", c.JournalMode, "OFF", "MEMORY", "DELETE", "TRUNCATE", "PERSIST", "WAL"); err != nil {
		return err
	}
	if err := oneOf("Synchronous", c.Synchronous, "OFF", "NORMAL", "FULL", "EXTRA"); err != nil {
		return err
	}
	if err := oneOf("LockingMode", c.LockingMode, "NORMAL", "EXCLUSIVE"); err != nil {
		return err
	}
	if err := oneOf("TempStore", c.TempStore, "DEFAULT", "FILE", "MEMORY"); err != nil {
		return err
	}
	if c.CacheSizeKB < 0 {
		return fmt.Errorf("CacheSizeKB must be non-negative, got %d", c.CacheSizeKB)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("BusyTimeout must be non-negative, got %s", c.BusyTimeout)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s value %q: must be one of %v", field, value, allowed)
}

// dsn builds the driver DSN. BEGIN is issued as BEGIN EXCLUSIVE so a second
// session waits for BusyTimeout and then fails instead of interleaving.
func (c *Config) dsn() string {
	return fmt.Sprintf("%s?_txlock=exclusive&_busy_timeout=%d", c.DBPath, c.BusyTimeout.Milliseconds())
}

// pragmas returns the performance pragmas in the order they are applied.
func (c *Config) pragmas() []string {
	var out []string
	if c.JournalMode != "" {
		out = append(out, "PRAGMA journal_mode = "+c.JournalMode)
	}
	if c.Synchronous != "" {
		out = append(out, "PRAGMA synchronous = "+c.Synchronous)
	}
	if c.CacheSizeKB > 0 {
		// Negative cache_size is interpreted as KiB rather than pages.
		out = append(out, fmt.Sprintf("PRAGMA cache_size = -%d", c.CacheSizeKB))
	}
	if c.LockingMode != "" {
		out = append(out, "PRAGMA locking_mode = "+c.LockingMode)
	}
	if c.TempStore != "" {
		out = append(out, "PRAGMA temp_store = "+c.TempStore)
	}
	return out
}

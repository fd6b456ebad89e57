// Package recordstore owns the SQLite table imported person rows are loaded
// into: its schema, its bulk-load pragmas, and the single-writer session
// lifecycle (open, stage rows, finalize).
package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eunmann/csvload/internal/logctx"
	"github.com/eunmann/csvload/pkg/logging"
	"github.com/eunmann/csvload/pkg/person"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateUnopened is the state before Open succeeds.
	StateUnopened State = iota
	// StateReady means the transaction is open and rows can be staged.
	StateReady
	// StateFinalized is terminal: committed or rolled back.
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateReady:
		return "ready"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats counts what happened to staged rows.
type Stats struct {
	// Staged is the number of rows passed to Stage while Ready.
	Staged int64
	// Inserted is the number of rows written (post-dedup).
	Inserted int64
	// Duplicates is the number of rows dropped by the uniqueness constraint.
	Duplicates int64
	// Faults is the number of rows dropped by any other storage error.
	Faults int64
}

// Session is one open-to-finalize lifecycle against the store file.
// It owns a dedicated connection, one write transaction and one prepared
// insert reused for every row. A Session is not reusable after Finalize.
type Session struct {
	cfg    Config
	openDB func(driverName, dsn string) (*sql.DB, error)
	log    zerolog.Logger

	mu         sync.Mutex
	state      State
	db         *sql.DB
	conn       *sql.Conn
	tx         *sql.Tx
	insertStmt *sql.Stmt
	stats      Stats
}

// New creates an unopened session for cfg.
func New(cfg Config) *Session {
	return &Session{
		cfg:    cfg,
		openDB: sql.Open,
		log:    logging.WithPhase("record_store"),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the row counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Open creates the store file if absent, applies the bulk-load pragmas,
// creates the table, begins the write transaction and prepares the insert.
// Calling Open on a Ready session is a no-op.
//
// The transaction is bound to ctx: cancelling ctx rolls it back.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		return nil
	case StateFinalized:
		return ErrSessionFinalized
	}

	s.log = logctx.FromContext(ctx).With().Str("phase", "record_store").Logger()

	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: invalid config: %w", ErrStoreUnavailable, err)
	}

	start := time.Now()
	if err := s.open(ctx); err != nil {
		// Release error is secondary to the open failure.
		_ = s.release(false)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	s.state = StateReady

	s.log.Info().
		Str("db_path", s.cfg.DBPath).
		Str("journal_mode", s.cfg.JournalMode).
		Str("synchronous", s.cfg.Synchronous).
		Int("cache_size_kb", s.cfg.CacheSizeKB).
		Dur("open_duration", time.Since(start)).
		Msg("record store ready, transaction started")

	return nil
}

func (s *Session) open(ctx context.Context) error {
	db, err := s.openDB("sqlite3", s.cfg.dsn())
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	// Pragmas are per-connection, so everything runs on one pinned connection.
	db.SetMaxOpenConns(1)
	s.db = db

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.conn = conn

	for _, pragma := range s.cfg.pragmas() {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute pragma %q: %w", pragma, err)
		}
	}

	if _, err := conn.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create %s table: %w", TableName, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert statement: %w", err)
	}
	s.insertStmt = stmt

	return nil
}

// Stage inserts one record inside the open transaction. It never fails the
// import: a duplicate key is dropped silently, any other storage error is
// counted as a fault and logged. Outside the Ready state it only warns.
func (s *Session) Stage(ctx context.Context, rec person.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		s.log.Warn().
			Str("state", s.state.String()).
			Str("key", rec.Key()).
			Msg("stage called outside an open session, row ignored")
		return
	}
	s.stats.Staged++

	var age any
	if rec.Age != nil {
		age = int64(*rec.Age)
	}

	res, err := s.insertStmt.ExecContext(ctx, rec.Name, rec.Surname, rec.Initials, age, rec.ISODate())
	if err != nil {
		if isUniqueViolation(err) {
			s.stats.Duplicates++
			return
		}
		s.fault(rec, err)
		return
	}

	n, err := res.RowsAffected()
	if err != nil {
		s.fault(rec, fmt.Errorf("rows affected: %w", err))
		return
	}
	if n == 0 {
		s.stats.Duplicates++
		return
	}
	s.stats.Inserted++
}

func (s *Session) fault(rec person.Record, err error) {
	s.stats.Faults++
	s.log.Warn().
		Err(err).
		Str("key", rec.Key()).
		Int64("faults", s.stats.Faults).
		Msg("insert failed, row dropped")
}

// isUniqueViolation reports whether err is a SQLite uniqueness failure.
// The insert uses ON CONFLICT DO NOTHING for the identity key, so this only
// fires for other unique indexes added to the table by hand.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Finalize releases the prepared insert, commits the transaction and closes
// the store. The session is unusable afterwards. Finalize on an unopened
// session does nothing and returns zero stats.
func (s *Session) Finalize() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUnopened:
		s.log.Warn().Msg("finalize called before open, nothing to commit")
		return Stats{}, nil
	case StateFinalized:
		return s.stats, ErrSessionFinalized
	}
	s.state = StateFinalized

	start := time.Now()
	if err := s.release(true); err != nil {
		s.log.Error().Err(err).Int64("staged", s.stats.Staged).Msg("commit failed")
		return s.stats, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	logging.PhaseComplete(s.log, "commit", time.Since(start)).
		Count("inserted", s.stats.Inserted).
		Count("duplicates", s.stats.Duplicates).
		Count("faults", s.stats.Faults).
		Log("transaction committed, store closed")

	return s.stats, nil
}

// Rollback discards the open transaction and closes the store. It is used
// when the input cannot be read to the end. Rollback on a session that is
// not Ready does nothing.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return nil
	}
	s.state = StateFinalized

	err := s.release(false)
	s.log.Warn().
		Int64("discarded", s.stats.Inserted).
		Msg("transaction rolled back, store closed")
	return err
}

// release closes the statement, ends the transaction (commit or rollback)
// and closes the connection and database handle. Every step runs even if
// an earlier one fails.
func (s *Session) release(commit bool) error {
	var errs []error

	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close insert statement: %w", err))
		}
		s.insertStmt = nil
	}

	if s.tx != nil {
		if commit {
			if err := s.tx.Commit(); err != nil {
				errs = append(errs, fmt.Errorf("commit: %w", err))
			}
		} else if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, fmt.Errorf("rollback: %w", err))
		}
		s.tx = nil
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, fmt.Errorf("release connection: %w", err))
		}
		s.conn = nil
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		s.db = nil
	}

	return errors.Join(errs...)
}

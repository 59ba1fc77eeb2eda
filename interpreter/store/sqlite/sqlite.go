// Package sqlite provides a SQLite implementation of the program store.
//
// # Calling Conventions
//
// This store is a pure data access layer with no internal transaction
// management. Individual methods execute against s.conn, which may be
// either the underlying *sql.DB (autocommit mode) or a *sql.Tx
// (transactional mode).
//
// For operations that require atomicity across multiple calls, use
// RunInTransaction:
//
//	err := store.RunInTransaction(ctx, func(txStore interpreter.Store) error {
//	    if err := txStore.SaveProgram(ctx, entry); err != nil {
//	        return err // triggers rollback
//	    }
//	    return txStore.SaveDispatcher(ctx, state) // commits if nil
//	})
//
// The daemon serialises all mutating operations through a single
// actor, so there is no concurrent writer contention at the database
// level. WAL mode is enabled for crash recovery and so that readers
// never block the writer.
//
// All SQL queries use prepared statements. The SQL is parsed and
// compiled once at open time; transactional use binds the compiled
// masters to the transaction via tx.StmtContext.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/frobware/go-bpfd/interpreter"
)

//go:embed schema.sql
var schemaSQL string

// msec formats a duration as milliseconds with 3 decimal places.
func msec(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d.Microseconds())/1000)
}

// dbConn abstracts *sql.DB and *sql.Tx for query execution.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteStore implements interpreter.Store using SQLite.
type sqliteStore struct {
	db     *sql.DB // original connection, used for BeginTx
	conn   dbConn  // active connection (db or tx)
	logger *slog.Logger

	// Prepared statements for program operations
	stmtSaveProgram       *sql.Stmt
	stmtDeleteProgram     *sql.Stmt
	stmtGetProgram        *sql.Stmt
	stmtListPrograms      *sql.Stmt
	stmtDeleteProgramMaps *sql.Stmt
	stmtInsertProgramMap  *sql.Stmt
	stmtListProgramMaps   *sql.Stmt

	// Prepared statements for dispatcher operations
	stmtSaveDispatcher   *sql.Stmt
	stmtDeleteDispatcher *sql.Stmt
	stmtGetDispatcher    *sql.Stmt
	stmtListDispatchers  *sql.Stmt
}

// New creates a new SQLite store at the given path.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (interpreter.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", dbPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(driverName, dsn(dbPath, [][2]string{{"journal_mode", "WAL"}, {"foreign_keys", "1"}}))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &sqliteStore{db: db, conn: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.Info("opened database", "path", dbPath)
	return s, nil
}

// NewInMemory creates an in-memory SQLite store for testing.
func NewInMemory(ctx context.Context, logger *slog.Logger) (interpreter.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", ":memory:")

	db, err := sql.Open(driverName, dsn(":memory:", [][2]string{{"foreign_keys", "1"}}))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	s := &sqliteStore{db: db, conn: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.Info("opened in-memory database")
	return s, nil
}

// Close closes all prepared statements and the database connection.
func (s *sqliteStore) Close() error {
	s.closeStatements()
	return s.db.Close()
}

// closeStatements closes all prepared statements. Each close error
// is silently ignored because the database is about to be closed.
func (s *sqliteStore) closeStatements() {
	stmts := []*sql.Stmt{
		s.stmtSaveProgram,
		s.stmtDeleteProgram,
		s.stmtGetProgram,
		s.stmtListPrograms,
		s.stmtDeleteProgramMaps,
		s.stmtInsertProgramMap,
		s.stmtListProgramMaps,
		s.stmtSaveDispatcher,
		s.stmtDeleteDispatcher,
		s.stmtGetDispatcher,
		s.stmtListDispatchers,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	// Execute the embedded schema
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// RunInTransaction executes the callback within a database transaction.
// If the callback returns nil, the transaction commits.
// If the callback returns an error, the transaction rolls back.
//
// The master prepared statements remain valid across transactions;
// tx.StmtContext creates lightweight transaction-bound handles that
// reference the already-compiled masters. After commit or rollback the
// handles become invalid, but txStore goes out of scope with them.
func (s *sqliteStore) RunInTransaction(ctx context.Context, fn func(interpreter.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txStore := &sqliteStore{
		db:     s.db,
		conn:   tx,
		logger: s.logger,
		// Program statements
		stmtSaveProgram:       tx.StmtContext(ctx, s.stmtSaveProgram),
		stmtDeleteProgram:     tx.StmtContext(ctx, s.stmtDeleteProgram),
		stmtGetProgram:        tx.StmtContext(ctx, s.stmtGetProgram),
		stmtListPrograms:      tx.StmtContext(ctx, s.stmtListPrograms),
		stmtDeleteProgramMaps: tx.StmtContext(ctx, s.stmtDeleteProgramMaps),
		stmtInsertProgramMap:  tx.StmtContext(ctx, s.stmtInsertProgramMap),
		stmtListProgramMaps:   tx.StmtContext(ctx, s.stmtListProgramMaps),
		// Dispatcher statements
		stmtSaveDispatcher:   tx.StmtContext(ctx, s.stmtSaveDispatcher),
		stmtDeleteDispatcher: tx.StmtContext(ctx, s.stmtDeleteDispatcher),
		stmtGetDispatcher:    tx.StmtContext(ctx, s.stmtGetDispatcher),
		stmtListDispatchers:  tx.StmtContext(ctx, s.stmtListDispatchers),
	}

	if err := fn(txStore); err != nil {
		return err
	}

	return tx.Commit()
}

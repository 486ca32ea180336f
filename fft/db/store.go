package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/BenEdridge/fast-file-tracker/fft/config"
	"github.com/BenEdridge/fast-file-tracker/fft/filesystem/common"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

const (
	createEntriesTable = `CREATE TABLE IF NOT EXISTS entries (
		xxhash64 TEXT NOT NULL,
		file_path TEXT NOT NULL
	)`

	createRunsTable = `CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT NOT NULL,
		root TEXT NOT NULL,
		files INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		total_bytes INTEGER NOT NULL,
		started_at TEXT NOT NULL
	)`

	insertEntry = "INSERT INTO entries (xxhash64, file_path) VALUES (?, ?)"
	insertRun   = "INSERT INTO runs (run_id, root, files, skipped, total_bytes, started_at) VALUES (?, ?, ?, ?, ?, ?)"
)

// RowSource yields staged rows in order; staging.Stager implements it.
type RowSource interface {
	Drain(fn func(fingerprint, path string) error) error
}

// RunRecord is the metadata row written next to the entries.
type RunRecord struct {
	ID         uuid.UUID
	Root       string
	Files      int64
	Skipped    int64
	TotalBytes uint64
	StartedAt  time.Time
}

// MemoryStore is the single-writer in-memory relational store a run fills
// before snapshotting it to disk.
type MemoryStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenMemoryStore opens the in-memory database and creates its tables.
func OpenMemoryStore(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*MemoryStore, error) {
	db, err := sql.Open(cfg.Type, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}

	// Every connection to an in-memory database is a separate database, so
	// the pool must hold exactly one, forever.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to in-memory store: %w", err)
	}

	store := &MemoryStore{db: db, log: log}
	if err := store.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// init sets up the store tables.
func (s *MemoryStore) init(ctx context.Context) error {
	for _, stmt := range []string{createEntriesTable, createRunsTable} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// InsertEntries drains src into the entries table inside one transaction,
// one parameterised insert per row. Nothing is committed unless every row
// went in.
func (s *MemoryStore) InsertEntries(ctx context.Context, src RowSource) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, common.WrapError(common.ErrStoreInsertFailed, err, "begin transaction")
	}
	defer tx.Rollback() // no-op once committed

	stmt, err := tx.PrepareContext(ctx, insertEntry)
	if err != nil {
		return 0, common.WrapError(common.ErrStoreInsertFailed, err, "prepare insert")
	}
	defer stmt.Close()

	var inserted int64
	err = src.Drain(func(fingerprint, path string) error {
		if _, err := stmt.ExecContext(ctx, fingerprint, pathValue(path)); err != nil {
			return common.WrapError(common.ErrStoreInsertFailed, err, "insert %s", path)
		}
		inserted++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, common.WrapError(common.ErrStoreInsertFailed, err, "commit %d rows", inserted)
	}

	s.log.Debug().Int64("rows", inserted).Msg("committed entries")
	return inserted, nil
}

// pathValue binds path as TEXT when it is valid UTF-8 and as a BLOB of the
// raw bytes otherwise, since the driver refuses invalid UTF-8 text.
func pathValue(path string) any {
	if utf8.ValidString(path) {
		return path
	}
	return []byte(path)
}

// RecordRun writes the run metadata row.
func (s *MemoryStore) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := s.db.ExecContext(ctx, insertRun,
		rec.ID.String(),
		pathValue(rec.Root),
		rec.Files,
		rec.Skipped,
		int64(rec.TotalBytes),
		rec.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return common.WrapError(common.ErrStoreInsertFailed, err, "record run %s", rec.ID)
	}
	return nil
}

// CountEntries returns the number of rows in entries.
func (s *MemoryStore) CountEntries(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Close releases the store; its contents are gone afterwards.
func (s *MemoryStore) Close() error {
	return s.db.Close()
}

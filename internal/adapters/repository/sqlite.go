package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/vouch/pkg/metrics"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS sheets (
	sheet TEXT    NOT NULL,
	pos   INTEGER NOT NULL,
	c0    TEXT    NOT NULL DEFAULT '',
	c1    TEXT    NOT NULL DEFAULT '',
	c2    TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (sheet, pos)
);
`

// SQLiteStore persists sheets in a single sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the sqlite sheet store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// ReadAll returns every row of the sheet in insertion order.
func (s *SQLiteStore) ReadAll(ctx context.Context, sheet Sheet) ([][]string, error) {
	if !sheet.valid() {
		return nil, ErrUnknownSheet
	}
	start := time.Now()
	defer func() {
		metrics.RecordStoreReadLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	rows, err := s.db.QueryContext(ctx,
		`SELECT c0, c1, c2 FROM sheets WHERE sheet = ? ORDER BY pos`, string(sheet))
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, sheet, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		row := make([]string, rowWidth)
		if err := rows.Scan(&row[0], &row[1], &row[2]); err != nil {
			metrics.RecordStoreError()
			return nil, fmt.Errorf("%w: scan %s: %w", ErrUnavailable, sheet, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("%w: iterate %s: %w", ErrUnavailable, sheet, err)
	}
	return out, nil
}

// WriteAll replaces the sheet's contents in one transaction.
func (s *SQLiteStore) WriteAll(ctx context.Context, sheet Sheet, rows [][]string) error {
	if !sheet.valid() {
		return ErrUnknownSheet
	}
	start := time.Now()
	defer func() {
		metrics.RecordStoreWriteLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("%w: begin write %s: %w", ErrUnavailable, sheet, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sheets WHERE sheet = ?`, string(sheet)); err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("%w: clear %s: %w", ErrUnavailable, sheet, err)
	}
	for i, row := range rows {
		padded := padRow(row)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sheets (sheet, pos, c0, c1, c2) VALUES (?, ?, ?, ?, ?)`,
			string(sheet), i, padded[0], padded[1], padded[2]); err != nil {
			metrics.RecordStoreError()
			return fmt.Errorf("%w: insert %s row %d: %w", ErrUnavailable, sheet, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("%w: commit %s: %w", ErrUnavailable, sheet, err)
	}
	return nil
}

// Append adds one row to the end of the sheet.
func (s *SQLiteStore) Append(ctx context.Context, sheet Sheet, row []string) error {
	if !sheet.valid() {
		return ErrUnknownSheet
	}
	start := time.Now()
	defer func() {
		metrics.RecordStoreWriteLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	padded := padRow(row)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sheets (sheet, pos, c0, c1, c2)
		 VALUES (?, (SELECT COALESCE(MAX(pos)+1, 0) FROM sheets WHERE sheet = ?), ?, ?, ?)`,
		string(sheet), string(sheet), padded[0], padded[1], padded[2])
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("%w: append %s: %w", ErrUnavailable, sheet, err)
	}
	return nil
}

// Close closes the sqlite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

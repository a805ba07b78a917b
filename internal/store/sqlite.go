package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.io/infrasutra/docreg/internal/workbook"
)

// Store is a workbook kept in a local SQLite file. Each tab is a row in
// worksheets; its rows are JSON-encoded cell lists kept in insertion order.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ workbook.Workbook = (*Store)(nil)

func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
		inMemory = true
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS worksheets (
            name TEXT PRIMARY KEY,
            created_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS worksheet_rows (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            worksheet TEXT NOT NULL,
            cells TEXT NOT NULL,
            created_at INTEGER NOT NULL,
            FOREIGN KEY(worksheet) REFERENCES worksheets(name) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_worksheet_rows ON worksheet_rows(worksheet, id);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// EnsureWorksheet creates the tab if needed and writes header as its first
// row when the tab is empty.
func (s *Store) EnsureWorksheet(ctx context.Context, name string, header []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now().Unix()
	if _, err := tx.ExecContext(ctx, `INSERT INTO worksheets (name, created_at)
        VALUES (?, ?)
        ON CONFLICT(name) DO NOTHING;`, name, now); err != nil {
		return fmt.Errorf("insert worksheet: %w", err)
	}

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM worksheet_rows WHERE worksheet = ?;`, name).Scan(&count); err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	if count == 0 && len(header) > 0 {
		if err := insertRow(ctx, tx, name, header, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit worksheet: %w", err)
	}
	return nil
}

func (s *Store) Worksheets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM worksheets ORDER BY name;`)
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list worksheets: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	return names, nil
}

func (s *Store) Values(ctx context.Context, tab string) ([][]string, error) {
	if err := s.requireWorksheet(ctx, s.db, tab); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT cells FROM worksheet_rows WHERE worksheet = ? ORDER BY id;`, tab)
	if err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}
	defer rows.Close()

	values := [][]string{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("get values: %w", err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		values = append(values, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}
	return values, nil
}

func (s *Store) AppendRow(ctx context.Context, tab string, row []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.requireWorksheet(ctx, tx, tab); err != nil {
		return err
	}
	if err := insertRow(ctx, tx, tab, row, s.now().Unix()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit row: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) requireWorksheet(ctx context.Context, q queryer, tab string) error {
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM worksheets WHERE name = ?;`, tab).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", workbook.ErrWorksheetNotFound, tab)
		}
		return fmt.Errorf("get worksheet: %w", err)
	}
	return nil
}

func insertRow(ctx context.Context, tx *sql.Tx, tab string, row []string, createdAt int64) error {
	if row == nil {
		row = []string{}
	}
	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO worksheet_rows (worksheet, cells, created_at)
        VALUES (?, ?, ?);`, tab, string(cells), createdAt); err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"fim-go/internal/database/migrations"
	"fim-go/internal/fim"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path, creating its directory if
// needed, and migrates the schema to the latest version.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// CreateRun inserts run and sets its ID.
func (s *SQLiteDatabase) CreateRun(run *fim.Run) error {
	res, err := s.db.Exec(`
		INSERT INTO runs (run_id, operation, root, algorithm, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Operation, run.Root, string(run.Algorithm), run.StartedAt.UTC(), run.Status,
	)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading run id: %w", err)
	}
	run.ID = id
	return nil
}

// FinishRun stores the final status and counters of run.
func (s *SQLiteDatabase) FinishRun(run *fim.Run) error {
	var finished any
	if run.FinishedAt.Valid {
		finished = run.FinishedAt.Time.UTC()
	}

	res, err := s.db.Exec(`
		UPDATE runs
		SET finished_at = ?, status = ?, files_scanned = ?, new_count = ?, modified_count = ?,
		    deleted_count = ?, false_positives = ?, error_count = ?
		WHERE id = ?`,
		finished, run.Status, run.FilesScanned, run.NewCount, run.ModifiedCount,
		run.DeletedCount, run.FalsePositives, run.ErrorCount, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing run: run %d not found", run.ID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
// A limit below 1 returns every run.
func (s *SQLiteDatabase) ListRuns(limit int) ([]*fim.Run, error) {
	if limit < 1 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT id, run_id, operation, root, algorithm, started_at, finished_at, status,
		       files_scanned, new_count, modified_count, deleted_count, false_positives, error_count
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*fim.Run
	for rows.Next() {
		var (
			r    fim.Run
			algo string
		)
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.Operation, &r.Root, &algo, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.FilesScanned, &r.NewCount, &r.ModifiedCount, &r.DeletedCount, &r.FalsePositives, &r.ErrorCount,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Algorithm = fim.Algorithm(algo)
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements fim.Database interface
var _ fim.Database = (*SQLiteDatabase)(nil)

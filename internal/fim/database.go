package fim

import (
	"database/sql"
	"time"
)

// Run is one recorded baseline or check operation.
type Run struct {
	ID             int64
	RunID          string
	Operation      string // "baseline" or "check"
	Root           string
	Algorithm      Algorithm
	StartedAt      time.Time
	FinishedAt     sql.NullTime
	Status         string // "running", "success" or "error"
	FilesScanned   int
	NewCount       int
	ModifiedCount  int
	DeletedCount   int
	FalsePositives int
	ErrorCount     int
}

// Database records the history of operations.
// Change events themselves are never persisted; only run summaries are.
type Database interface {
	// CreateRun inserts run and sets its ID.
	CreateRun(run *Run) error

	// FinishRun stores the final status and counters of run.
	FinishRun(run *Run) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// Close closes the database connection.
	Close() error
}

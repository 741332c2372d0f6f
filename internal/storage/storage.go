package storage

import (
	"context"
	"time"
)

// Run statuses
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// File outcomes recorded per run
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
	OutcomeDeleted   = "deleted"
)

// Storage defines the interface for the run ledger and the persistent response cache
type Storage interface {
	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// Run file operations
	RecordFile(ctx context.Context, file *RunFile) error
	ListRunFiles(ctx context.Context, runID string) ([]*RunFile, error)
	LastFileResult(ctx context.Context, relPath string) (*RunFile, error)

	// Response cache operations
	GetResponse(ctx context.Context, key string) (string, bool, error)
	PutResponse(ctx context.Context, key, model, response string) error
	PruneResponses(ctx context.Context, olderThan time.Time) (int, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Run is one invocation of the pipeline
type Run struct {
	ID         string // uuid, assigned by CreateRun when empty
	Provider   string
	Model      string
	Force      bool
	Degraded   bool // service unavailable, records built from heuristics
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time

	FilesDiscovered int
	FilesProcessed  int
	FilesSkipped    int
	FilesFailed     int
	FilesDeleted    int
	CorpusChanged   bool
}

// Duration returns how long a finished run took
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunFile is the outcome for one document within a run
type RunFile struct {
	ID         int64
	RunID      string
	RelPath    string
	Filename   string
	Hash       string
	Outcome    string
	Method     string
	Confidence float64
	Chunks     int
	Duration   time.Duration
	Error      string
	CreatedAt  time.Time
}

// Status summarizes the ledger
type Status struct {
	Runs            int
	LastRun         *Run
	DocumentsSeen   int // distinct documents processed at least once
	ResponsesCached int
	SchemaVersion   string
	DatabaseSizeMB  float64
	BuildMode       string
}

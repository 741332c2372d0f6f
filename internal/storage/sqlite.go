package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity doesn't exist
var ErrNotFound = errors.New("not found")

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Run operations

const runColumns = `id, provider, model, force_reprocess, degraded, status, error,
	files_discovered, files_processed, files_skipped, files_failed, files_deleted,
	corpus_changed, started_at, finished_at`

func (s *SQLiteStorage) createRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}

	query := `
		INSERT INTO runs (id, provider, model, force_reprocess, degraded, status, files_discovered, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		run.ID, run.Provider, run.Model, run.Force, run.Degraded, run.Status,
		run.FilesDiscovered, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CreateRun(ctx context.Context, run *Run) error {
	return s.createRunWithQuerier(ctx, s.querier(), run)
}

func (s *SQLiteStorage) finishRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.Status == "" || run.Status == RunRunning {
		run.Status = RunCompleted
	}

	query := `
		UPDATE runs
		SET status = ?, error = ?, degraded = ?, files_discovered = ?, files_processed = ?,
		    files_skipped = ?, files_failed = ?, files_deleted = ?, corpus_changed = ?, finished_at = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query,
		run.Status, run.Error, run.Degraded, run.FilesDiscovered, run.FilesProcessed,
		run.FilesSkipped, run.FilesFailed, run.FilesDeleted, run.CorpusChanged, run.FinishedAt,
		run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) FinishRun(ctx context.Context, run *Run) error {
	return s.finishRunWithQuerier(ctx, s.querier(), run)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var provider, model, errMsg sql.NullString
	var finishedAt sql.NullTime
	err := row.Scan(
		&run.ID, &provider, &model, &run.Force, &run.Degraded, &run.Status, &errMsg,
		&run.FilesDiscovered, &run.FilesProcessed, &run.FilesSkipped, &run.FilesFailed, &run.FilesDeleted,
		&run.CorpusChanged, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Provider = provider.String
	run.Model = model.String
	run.Error = errMsg.String
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

func (s *SQLiteStorage) getRunWithQuerier(ctx context.Context, q querier, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	run, err := scanRun(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	return s.getRunWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) listRunsWithQuerier(ctx context.Context, q querier, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return s.listRunsWithQuerier(ctx, s.querier(), limit)
}

// Run file operations

const runFileColumns = `id, run_id, rel_path, filename, hash, outcome, method,
	confidence, chunks, duration_ms, error, created_at`

func (s *SQLiteStorage) recordFileWithQuerier(ctx context.Context, q querier, file *RunFile) error {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO run_files (run_id, rel_path, filename, hash, outcome, method, confidence, chunks, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		file.RunID, file.RelPath, file.Filename, file.Hash, file.Outcome, file.Method,
		file.Confidence, file.Chunks, file.Duration.Milliseconds(), file.Error, file.CreatedAt,
	).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to record file: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) RecordFile(ctx context.Context, file *RunFile) error {
	return s.recordFileWithQuerier(ctx, s.querier(), file)
}

func scanRunFile(row rowScanner) (*RunFile, error) {
	var f RunFile
	var hash, method, errMsg sql.NullString
	var durationMs int64
	err := row.Scan(
		&f.ID, &f.RunID, &f.RelPath, &f.Filename, &hash, &f.Outcome, &method,
		&f.Confidence, &f.Chunks, &durationMs, &errMsg, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Hash = hash.String
	f.Method = method.String
	f.Error = errMsg.String
	f.Duration = time.Duration(durationMs) * time.Millisecond
	return &f, nil
}

func (s *SQLiteStorage) listRunFilesWithQuerier(ctx context.Context, q querier, runID string) ([]*RunFile, error) {
	query := `SELECT ` + runFileColumns + ` FROM run_files WHERE run_id = ? ORDER BY filename, id`
	rows, err := q.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []*RunFile
	for rows.Next() {
		f, err := scanRunFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListRunFiles(ctx context.Context, runID string) ([]*RunFile, error) {
	return s.listRunFilesWithQuerier(ctx, s.querier(), runID)
}

func (s *SQLiteStorage) lastFileResultWithQuerier(ctx context.Context, q querier, relPath string) (*RunFile, error) {
	query := `SELECT ` + runFileColumns + ` FROM run_files WHERE rel_path = ? ORDER BY id DESC LIMIT 1`
	f, err := scanRunFile(q.QueryRowContext(ctx, query, relPath))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLiteStorage) LastFileResult(ctx context.Context, relPath string) (*RunFile, error) {
	return s.lastFileResultWithQuerier(ctx, s.querier(), relPath)
}

// Response cache operations

func (s *SQLiteStorage) getResponseWithQuerier(ctx context.Context, q querier, key string) (string, bool, error) {
	var response string
	err := q.QueryRowContext(ctx, "SELECT response FROM responses WHERE cache_key = ?", key).Scan(&response)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read response: %w", err)
	}

	_, err = q.ExecContext(ctx,
		"UPDATE responses SET hit_count = hit_count + 1, last_hit_at = ? WHERE cache_key = ?",
		time.Now(), key)
	if err != nil {
		return "", false, fmt.Errorf("failed to update response hits: %w", err)
	}
	return response, true, nil
}

// GetResponse returns a cached generation response
func (s *SQLiteStorage) GetResponse(ctx context.Context, key string) (string, bool, error) {
	return s.getResponseWithQuerier(ctx, s.querier(), key)
}

func (s *SQLiteStorage) putResponseWithQuerier(ctx context.Context, q querier, key, model, response string) error {
	query := `
		INSERT INTO responses (cache_key, model, response, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			model = excluded.model,
			response = excluded.response,
			created_at = excluded.created_at
	`
	if _, err := q.ExecContext(ctx, query, key, model, response, time.Now()); err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}
	return nil
}

// PutResponse stores a generation response under key
func (s *SQLiteStorage) PutResponse(ctx context.Context, key, model, response string) error {
	return s.putResponseWithQuerier(ctx, s.querier(), key, model, response)
}

func (s *SQLiteStorage) pruneResponsesWithQuerier(ctx context.Context, q querier, olderThan time.Time) (int, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM responses WHERE created_at < ?", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune responses: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// PruneResponses drops cached responses created before olderThan
func (s *SQLiteStorage) PruneResponses(ctx context.Context, olderThan time.Time) (int, error) {
	return s.pruneResponsesWithQuerier(ctx, s.querier(), olderThan)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{
		SchemaVersion: CurrentSchemaVersion,
		BuildMode:     BuildMode,
	}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&status.Runs); err != nil {
		return nil, err
	}

	runs, err := s.listRunsWithQuerier(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		status.LastRun = runs[0]
	}

	err = q.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT rel_path) FROM run_files WHERE outcome = ?", OutcomeProcessed,
	).Scan(&status.DocumentsSeen)
	if err != nil {
		return nil, err
	}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM responses").Scan(&status.ResponsesCached); err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// Transaction implementations delegate to the querier-based helpers

func (t *sqliteTx) CreateRun(ctx context.Context, run *Run) error {
	return t.storage.createRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) FinishRun(ctx context.Context, run *Run) error {
	return t.storage.finishRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) GetRun(ctx context.Context, id string) (*Run, error) {
	return t.storage.getRunWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return t.storage.listRunsWithQuerier(ctx, t.querier(), limit)
}

func (t *sqliteTx) RecordFile(ctx context.Context, file *RunFile) error {
	return t.storage.recordFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) ListRunFiles(ctx context.Context, runID string) ([]*RunFile, error) {
	return t.storage.listRunFilesWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) LastFileResult(ctx context.Context, relPath string) (*RunFile, error) {
	return t.storage.lastFileResultWithQuerier(ctx, t.querier(), relPath)
}

func (t *sqliteTx) GetResponse(ctx context.Context, key string) (string, bool, error) {
	return t.storage.getResponseWithQuerier(ctx, t.querier(), key)
}

func (t *sqliteTx) PutResponse(ctx context.Context, key, model, response string) error {
	return t.storage.putResponseWithQuerier(ctx, t.querier(), key, model, response)
}

func (t *sqliteTx) PruneResponses(ctx context.Context, olderThan time.Time) (int, error) {
	return t.storage.pruneResponsesWithQuerier(ctx, t.querier(), olderThan)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}

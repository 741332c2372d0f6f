// Package storage provides SQLite-based persistence for pipeline runs and
// generation responses.
//
// The storage layer manages:
//   - Runs: one row per pipeline invocation with its counters and final status
//   - Run files: the outcome of every document touched by a run
//   - Responses: a persistent cache of text-generation responses keyed by a
//     hash of model, prompt and options
//
// The corpus and the change registry remain plain JSON files; the database is a
// ledger beside them and is never needed to rebuild the corpus.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations
//   - runs: uuid, provider, model, flags, counters, started/finished timestamps
//   - run_files: run id, relative path, hash, outcome, method, confidence, duration
//   - responses: cache key, model, response text, hit count
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(cfg.DatabasePath())
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	run := &storage.Run{Provider: "ollama", Model: "gemma3:4b"}
//	if err := db.CreateRun(ctx, run); err != nil {
//	    return err
//	}
//	_ = db.RecordFile(ctx, &storage.RunFile{RunID: run.ID, RelPath: "documents/a.pdf", ...})
//	_ = db.FinishRun(ctx, run)
//
// # Transactions
//
// Use transactions for atomic operations:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.RecordFile(ctx, deleted)
//	_ = tx.FinishRun(ctx, run)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Response Cache
//
// SQLiteStorage satisfies generator.ResponseStore, so identical prompts survive
// process restarts:
//
//	gen, err := generator.NewFromConfig(cfg, db, logger)
//
// # Build Modes
//
// The driver is chosen at compile time:
//
//   - default / purego: modernc.org/sqlite, no C toolchain needed
//   - sqlite_cgo: github.com/mattn/go-sqlite3
//
// BuildMode and DriverName report the active choice.
//
// # Migrations
//
// Schema versions are semantic versions. ApplyMigrations compares the highest
// applied version with each entry of AllMigrations and runs the newer ones in
// order; RollbackMigration reverts the most recent one.
//
// # Concurrency
//
// The connection pool is limited to one connection and WAL mode is enabled.
// All methods are safe for concurrent use; writes are serialized by the pool.
// While a transaction is open, use the Tx for every call: the pool has no
// second connection to serve the parent storage.
package storage

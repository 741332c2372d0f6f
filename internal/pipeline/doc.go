// Package pipeline coordinates the end-to-end processing of the documents directory.
//
// A run discovers the PDFs, decides which ones changed since the last run,
// analyzes those with a bounded worker pool, and rewrites the corpus and the
// change registry in one serialized step at the end.
//
// # Basic Usage
//
//	p := pipeline.New(pipeline.Deps{
//	    Config:    cfg,
//	    Generator: gen,
//	    Storage:   db,
//	    Logger:    logger,
//	})
//
//	stats, err := p.Run(ctx, pipeline.RunOptions{Force: false})
//	if pipeline.IsSetupError(err) {
//	    os.Exit(1)
//	}
//
// # Run Stages
//
//  1. Discover: list *.pdf directly inside the documents directory and hash them;
//     files that exist but cannot be read are logged and left untouched
//  2. Plan: compare hashes with the registry; new, changed, forced and
//     record-less files are processed, vanished files are deleted
//  3. Service check: skipped when there is nothing to process
//  4. Analyze: extract text, multi-pass analysis, validation (parallel per file)
//  5. Merge: drop deleted and superseded records, append fresh ones, sort
//  6. Write: corpus first (both copies), then the registry, then hooks
//
// # Incremental Processing
//
//	stats1, _ := p.Run(ctx, opts) // 12 processed, 0 skipped
//	stats2, _ := p.Run(ctx, opts) // 0 processed, 12 skipped, nothing rewritten
//
// Writes are skipped when the bytes would not change, so a second run over an
// unchanged directory leaves the corpus and the registry byte-identical.
//
// # Degraded Mode
//
// When the service is unreachable Run fails with ErrServiceUnavailable before
// writing anything. With RunOptions.AllowDegraded it continues and every record
// is built from the filename with confidence 0.
//
// # Cancellation
//
// Cancelling ctx stops scheduling new files. Finished files are merged and
// registered; the others are picked up by the next run.
package pipeline

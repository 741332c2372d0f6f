// Package tracker decides which source documents need processing.
//
// The registry is a JSON object mapping each document's relative path
// (documents/<name>.pdf) to the MD5 of its content when it was last processed
// successfully. A scan is turned into a Plan:
//
//	reg, err := tracker.Load(cfg.RegistryPath())
//	plan := reg.Plan(files, force, corpusHasRecord)
//	for _, item := range plan.Process { ... reg.MarkProcessed(item.File) }
//	for _, d := range plan.Deleted { reg.Forget(d.Key) }
//	_, err = reg.Save()
//
// Only files that finished processing are marked, so an interrupted run leaves the
// rest unregistered and they are picked up again next time. Save writes sorted,
// indented JSON and skips the write when nothing changed, keeping the file
// byte-identical across no-op runs.
package tracker

// Package corpus persists the document records backing the site.
//
// The corpus is a JSON array of types.DocumentRecord sorted by filename and
// indented with two spaces. It is written to two locations, the working copy
// (data/documents.json) and the published copy (dist/data/documents.json),
// which always hold identical bytes. Each write goes to a temporary file first
// and is renamed into place; a location already holding the same bytes is not
// touched, so a run that changes nothing leaves both files byte-for-byte stable.
//
// Load is forgiving: merge conflict markers left by a bad git merge are stripped,
// and a file that still fails to decode is treated as an empty corpus.
package corpus

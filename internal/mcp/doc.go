// Package mcp implements the Model Context Protocol (MCP) server for docmeta.
//
// The MCP server exposes four tools to AI assistants:
//   - process_documents: Run the pipeline over the documents directory
//   - get_status: Pending work, corpus size and recent runs
//   - get_document: The full record of one document
//   - list_documents: Filtered listing of the corpus
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
// The MCP server is started via the serve command:
//
//	docmeta serve --base /path/to/site
//
// # Tool: process_documents
//
//	Request:
//	{
//	  "name": "process_documents",
//	  "arguments": {"force": false, "allow_degraded": false}
//	}
//
//	Response:
//	{
//	  "files_discovered": 42,
//	  "files_processed": 3,
//	  "files_skipped": 39,
//	  "records": 42,
//	  "corpus_changed": true,
//	  "methods": {"multi-pass": 3},
//	  "duration_ms": 81234
//	}
//
// # Tool: get_status
//
//	Request:
//	{"name": "get_status", "arguments": {"runs": 5}}
//
//	Response:
//	{
//	  "pending": {"new": 1, "changed": 0, "missing_record": 0, "deleted": 0, "unchanged": 41},
//	  "records": 41,
//	  "running": false,
//	  "ledger": {"runs": 12, "responses_cached": 830, "build_mode": "purego", ...},
//	  "recent_runs": [...]
//	}
//
// # Tool: get_document
//
//	Request:
//	{"name": "get_document", "arguments": {"filename": "intro_to_ml.pdf"}}
//
// The response is the record exactly as stored in the corpus.
//
// # Tool: list_documents
//
//	Request:
//	{
//	  "name": "list_documents",
//	  "arguments": {"category": "Machine Learning", "keyword": "neural", "limit": 20}
//	}
//
// # Error Handling
//
// Errors are returned as MCPError with these codes:
//   - -32602: Invalid parameters
//   - -32603: Internal error
//   - -32001: Documents directory does not exist
//   - -32002: A run is already in progress
//   - -32003: Document not found
//   - -32004: Text-generation service unavailable
//
// # Concurrency
//
// Only one process_documents call runs at a time; a concurrent call fails with
// -32002 instead of queueing. Read-only tools can run during a run and see the
// corpus as last written.
package mcp

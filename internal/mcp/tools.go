package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lonardonifabio/tech-documents/internal/corpus"
	"github.com/lonardonifabio/tech-documents/internal/pipeline"
	"github.com/lonardonifabio/tech-documents/internal/tracker"
	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeSourceDirMissing   = -32001 // Documents directory does not exist
	ErrorCodeRunInProgress      = -32002 // Another run is already in progress
	ErrorCodeDocumentNotFound   = -32003 // No record for the requested filename
	ErrorCodeServiceUnavailable = -32004 // Text-generation service unreachable
)

// handleProcessDocuments handles the process_documents tool invocation
func (s *Server) handleProcessDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := pipeline.RunOptions{
		Force:         request.GetBool("force", false),
		AllowDegraded: request.GetBool("allow_degraded", false),
	}

	stats, err := s.pipeline.Run(ctx, opts)
	if err != nil {
		return nil, runError(err)
	}

	response := map[string]interface{}{
		"files_discovered": stats.FilesDiscovered,
		"files_processed":  stats.FilesProcessed,
		"files_skipped":    stats.FilesSkipped,
		"files_failed":     stats.FilesFailed,
		"files_deleted":    stats.FilesDeleted,
		"files_unreadable": stats.FilesUnreadable,
		"records":          stats.Records,
		"corpus_changed":   stats.CorpusChanged,
		"degraded":         stats.Degraded,
		"methods":          stats.Methods,
		"duration_ms":      stats.Duration.Milliseconds(),
	}
	if stats.RunID != "" {
		response["run_id"] = stats.RunID
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("runs", 5)
	if limit < 0 || limit > 50 {
		return nil, newMCPError(ErrorCodeInvalidParams, "runs must be between 0 and 50", map[string]interface{}{
			"param": "runs",
			"value": limit,
		})
	}

	cfg := s.pipeline.Config()
	response := map[string]interface{}{
		"documents_dir": cfg.DocumentsDir(),
		"running":       s.pipeline.Running(),
	}

	plan, err := s.pipeline.Plan(false)
	switch {
	case errors.Is(err, pipeline.ErrSourceDirMissing):
		response["pending"] = nil
		response["message"] = "Documents directory does not exist."
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "failed to scan documents", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		response["pending"] = map[string]interface{}{
			"new":            plan.Count(tracker.StatusNew),
			"changed":        plan.Count(tracker.StatusChanged),
			"missing_record": plan.Count(tracker.StatusMissingRecord),
			"deleted":        len(plan.Deleted),
			"unchanged":      len(plan.Skip),
		}
	}

	records, err := s.pipeline.Records()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load corpus", map[string]interface{}{
			"error": err.Error(),
		})
	}
	response["records"] = len(records)

	if s.storage != nil {
		status, err := s.storage.GetStatus(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["ledger"] = map[string]interface{}{
			"runs":             status.Runs,
			"documents_seen":   status.DocumentsSeen,
			"responses_cached": status.ResponsesCached,
			"schema_version":   status.SchemaVersion,
			"database_size_mb": fmt.Sprintf("%.2f", status.DatabaseSizeMB),
			"build_mode":       status.BuildMode,
		}

		if limit > 0 {
			runs, err := s.storage.ListRuns(ctx, limit)
			if err != nil {
				return nil, newMCPError(ErrorCodeInternalError, "failed to list runs", map[string]interface{}{
					"error": err.Error(),
				})
			}
			recent := make([]map[string]interface{}, 0, len(runs))
			for _, r := range runs {
				recent = append(recent, map[string]interface{}{
					"id":              r.ID,
					"status":          r.Status,
					"model":           r.Model,
					"started_at":      r.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
					"duration_ms":     r.Duration().Milliseconds(),
					"files_processed": r.FilesProcessed,
					"files_failed":    r.FilesFailed,
					"files_deleted":   r.FilesDeleted,
					"corpus_changed":  r.CorpusChanged,
					"degraded":        r.Degraded,
				})
			}
			response["recent_runs"] = recent
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetDocument handles the get_document tool invocation
func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename := strings.TrimSpace(request.GetString("filename", ""))
	if filename == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "filename parameter is required", map[string]interface{}{
			"param":  "filename",
			"reason": "missing or empty",
		})
	}

	records, err := s.pipeline.Records()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load corpus", map[string]interface{}{
			"error": err.Error(),
		})
	}

	rec, ok := corpus.Find(records, filename)
	if !ok {
		return nil, newMCPError(ErrorCodeDocumentNotFound, "document not found", map[string]interface{}{
			"filename": filename,
		})
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode record", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleListDocuments handles the list_documents tool invocation
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 50)
	if limit < 1 || limit > 500 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 500", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	var filter documentFilter
	if raw := request.GetString("category", ""); raw != "" {
		c, ok := types.ParseCategory(raw)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid category", map[string]interface{}{
				"param":   "category",
				"value":   raw,
				"allowed": types.Categories,
			})
		}
		filter.category = c
	}
	if raw := request.GetString("difficulty", ""); raw != "" {
		d, ok := types.ParseDifficulty(raw)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid difficulty", map[string]interface{}{
				"param":   "difficulty",
				"value":   raw,
				"allowed": []string{"Beginner", "Intermediate", "Advanced"},
			})
		}
		filter.difficulty = d
	}
	filter.keyword = strings.ToLower(strings.TrimSpace(request.GetString("keyword", "")))

	records, err := s.pipeline.Records()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load corpus", map[string]interface{}{
			"error": err.Error(),
		})
	}

	matched := 0
	documents := make([]map[string]interface{}, 0)
	for _, rec := range records {
		if !filter.match(rec) {
			continue
		}
		matched++
		if len(documents) >= limit {
			continue
		}
		documents = append(documents, map[string]interface{}{
			"filename":         rec.Filename,
			"title":            rec.Title,
			"category":         rec.Category,
			"difficulty":       rec.Difficulty,
			"keywords":         rec.Keywords,
			"confidence_score": rec.ConfidenceScore,
		})
	}

	response := map[string]interface{}{
		"total":     matched,
		"returned":  len(documents),
		"documents": documents,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

type documentFilter struct {
	category   types.Category
	difficulty types.Difficulty
	keyword    string // lower-cased
}

func (f documentFilter) match(rec types.DocumentRecord) bool {
	if f.category != "" && rec.Category != f.category {
		return false
	}
	if f.difficulty != "" && rec.Difficulty != f.difficulty {
		return false
	}
	if f.keyword == "" {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Title), f.keyword) {
		return true
	}
	for _, k := range rec.Keywords {
		if strings.Contains(strings.ToLower(k), f.keyword) {
			return true
		}
	}
	return false
}

// Helper functions

// runError maps pipeline setup failures to MCP error codes
func runError(err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		return newMCPError(ErrorCodeRunInProgress, "a run is already in progress", data)
	case errors.Is(err, pipeline.ErrSourceDirMissing):
		return newMCPError(ErrorCodeSourceDirMissing, "documents directory does not exist", data)
	case errors.Is(err, pipeline.ErrServiceUnavailable):
		return newMCPError(ErrorCodeServiceUnavailable, "text-generation service unavailable", data)
	default:
		return newMCPError(ErrorCodeInternalError, "processing failed", data)
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

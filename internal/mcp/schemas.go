package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// processDocumentsTool returns the tool definition for process_documents
func processDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "process_documents",
		Description: "Analyze new and changed PDFs in the documents directory and update the corpus",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, reprocess every document ignoring file hashes",
					"default":     false,
				},
				"allow_degraded": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, build records from filenames when the text-generation service is unavailable",
					"default":     false,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report pending documents, corpus size and recent pipeline runs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"runs": map[string]interface{}{
					"type":        "integer",
					"description": "Number of recent runs to include (0-50)",
					"default":     5,
					"minimum":     0,
					"maximum":     50,
				},
			},
		},
	}
}

// getDocumentTool returns the tool definition for get_document
func getDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_document",
		Description: "Return the full metadata record of one document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "PDF filename as stored in the corpus (e.g. intro_to_ml.pdf)",
				},
			},
			Required: []string{"filename"},
		},
	}
}

// listDocumentsTool returns the tool definition for list_documents
func listDocumentsTool() mcp.Tool {
	categories := make([]string, len(types.Categories))
	for i, c := range types.Categories {
		categories[i] = string(c)
	}

	return mcp.Tool{
		Name:        "list_documents",
		Description: "List corpus documents, optionally filtered by category, difficulty or keyword",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Only documents in this category",
					"enum":        categories,
				},
				"difficulty": map[string]interface{}{
					"type":        "string",
					"description": "Only documents of this difficulty",
					"enum":        []string{"Beginner", "Intermediate", "Advanced"},
				},
				"keyword": map[string]interface{}{
					"type":        "string",
					"description": "Case-insensitive match against keywords and title",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of documents to return (1-500)",
					"default":     50,
					"minimum":     1,
					"maximum":     500,
				},
			},
		},
	}
}

package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// retrieveContextTool returns the tool definition for retrieve_context
func retrieveContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve a token-bounded code context for a query over an indexed repository snapshot",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo_id": map[string]interface{}{
					"type":        "string",
					"description": "Repository identifier the snapshot belongs to",
				},
				"snapshot_id": map[string]interface{}{
					"type":        "string",
					"description": "Immutable snapshot identifier to search",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language or keyword query (max 1000 characters). When no hint arrays are given, inline path:, symbol: and module: tokens act as scope hints",
				},
				"token_budget": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum tokens in the assembled context (100-100000)",
					"default":     DefaultTokenBudget,
					"minimum":     100,
					"maximum":     100000,
				},
				"indices": map[string]interface{}{
					"type":        "array",
					"description": "Restrict fan-out to these strategies; empty lets the router decide",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"vector", "lexical", "symbol", "graph"},
					},
				},
				"symbols": map[string]interface{}{
					"type":        "array",
					"description": "Symbol-name hints that narrow the scope",
					"items":       map[string]interface{}{"type": "string"},
				},
				"files": map[string]interface{}{
					"type":        "array",
					"description": "File-path hints relative to the repo root",
					"items":       map[string]interface{}{"type": "string"},
				},
				"modules": map[string]interface{}{
					"type":        "array",
					"description": "Package/module path-prefix hints",
					"items":       map[string]interface{}{"type": "string"},
				},
				"timeout_ms": map[string]interface{}{
					"type":        "integer",
					"description": "End-to-end deadline in milliseconds; 0 uses the server default",
					"default":     0,
				},
			},
			Required: []string{"repo_id", "snapshot_id", "query"},
		},
	}
}

// submitFeedbackTool returns the tool definition for submit_feedback
func submitFeedbackTool() mcp.Tool {
	return mcp.Tool{
		Name:        "submit_feedback",
		Description: "Report which retrieved chunks were actually used, feeding the adaptive weight learner",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"request_id": map[string]interface{}{
					"type":        "string",
					"description": "Request id the feedback refers to",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The original query text",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Classified intent of the original request",
					"enum":        []string{"symbol", "flow", "concept", "code", "balanced"},
				},
				"selected_chunks": map[string]interface{}{
					"type":        "array",
					"description": "Chunk ids the consumer actually kept",
					"items":       map[string]interface{}{"type": "string"},
				},
				"contributions": map[string]interface{}{
					"type":        "object",
					"description": "Per-strategy count of selected chunks that strategy surfaced",
				},
				"positive": map[string]interface{}{
					"type":        "boolean",
					"description": "Whether the retrieval was useful overall",
					"default":     true,
				},
			},
			Required: []string{"request_id"},
		},
	}
}

// retrievalStatusTool returns the tool definition for retrieval_status
func retrievalStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieval_status",
		Description: "Report server build info, classifier fallback rate, learner counters, and fusion weight profiles",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

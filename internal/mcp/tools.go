package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/goretrieve-mcp/internal/fusion"
	"github.com/dshills/goretrieve-mcp/internal/scope"
	"github.com/dshills/goretrieve-mcp/internal/storage"
	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeRequestTimeout = -32001 // End-to-end retrieval deadline expired
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
)

// DefaultTokenBudget applies when retrieve_context omits token_budget
const DefaultTokenBudget = 4000

// handleRetrieveContext handles the retrieve_context tool invocation.
func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	queryText, _ := args["query"].(string)
	if queryText == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param": "query",
		})
	}
	repoID, _ := args["repo_id"].(string)
	snapshotID, _ := args["snapshot_id"].(string)
	if repoID == "" || snapshotID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "repo_id and snapshot_id are required", nil)
	}

	indices, err := parseIndices(args["indices"])
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param": "indices",
		})
	}

	hints := types.QueryHints{
		Symbols: getStringSlice(args, "symbols"),
		Files:   getStringSlice(args, "files"),
		Modules: getStringSlice(args, "modules"),
	}
	if hints.Empty() {
		// Callers without structured hints can embed path:, symbol: and
		// module: tokens in the query text
		hints = scope.HintsFromQuery(queryText)
	}

	query := types.Query{
		RepoID:           repoID,
		SnapshotID:       snapshotID,
		Text:             queryText,
		TokenBudget:      getIntDefault(args, "token_budget", DefaultTokenBudget),
		Hints:            hints,
		RequestedIndices: indices,
		Timeout:          time.Duration(getIntDefault(args, "timeout_ms", 0)) * time.Millisecond,
	}

	result, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		switch {
		case types.IsValidation(err):
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
		case types.IsRequestTimeout(err):
			return nil, newMCPError(ErrorCodeRequestTimeout, err.Error(), nil)
		default:
			return nil, newMCPError(ErrorCodeInternalError, "retrieval failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return mcp.NewToolResultText(formatJSON(formatRetrieveResult(result))), nil
}

// formatRetrieveResult shapes the pipeline result for tool consumers.
func formatRetrieveResult(result *types.RetrieveResult) map[string]interface{} {
	chunks := make([]map[string]interface{}, len(result.Context.Chunks))
	for i, chunk := range result.Context.Chunks {
		chunks[i] = map[string]interface{}{
			"chunk_id":    chunk.ChunkID,
			"rank":        chunk.Rank,
			"content":     chunk.Content,
			"file_path":   chunk.FilePath,
			"start_line":  chunk.StartLine,
			"end_line":    chunk.EndLine,
			"token_count": chunk.TokenCount,
			"trimmed":     chunk.Trimmed,
			"score":       chunk.Score,
		}
	}

	reports := make([]map[string]interface{}, len(result.Metadata.Reports))
	for i, report := range result.Metadata.Reports {
		entry := map[string]interface{}{
			"strategy":   string(report.Strategy),
			"tier":       report.Tier,
			"hit_count":  report.HitCount,
			"latency_ms": report.Latency.Milliseconds(),
		}
		if report.Err != "" {
			entry["error"] = report.Err
		}
		reports[i] = entry
	}

	out := map[string]interface{}{
		"request_id": result.Metadata.RequestID,
		"intent": map[string]interface{}{
			"kind":       string(result.Intent.Kind),
			"confidence": result.Intent.Confidence,
			"method":     string(result.Intent.Method),
		},
		"scope": map[string]interface{}{
			"type":   string(result.Scope.Type),
			"reason": result.Scope.Reason,
		},
		"chunks":        chunks,
		"total_tokens":  result.Context.TotalTokens,
		"token_budget":  result.Context.TokenBudget,
		"trimmed_count": result.Context.TrimmedCount,
		"dropped_count": result.Context.DroppedCount,
		"reports":       reports,
		"cache_hit":     result.Metadata.CacheHit,
		"duration_ms":   result.Metadata.Duration.Milliseconds(),
	}

	if len(result.Context.Dropped) > 0 {
		dropped := make([]map[string]interface{}, len(result.Context.Dropped))
		for i, d := range result.Context.Dropped {
			dropped[i] = map[string]interface{}{
				"chunk_id": d.ChunkID,
				"reason":   string(d.Reason),
			}
		}
		out["dropped"] = dropped
	}
	return out
}

// handleSubmitFeedback handles the submit_feedback tool invocation.
func (s *Server) handleSubmitFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	requestID, _ := args["request_id"].(string)
	if requestID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "request_id parameter is required", map[string]interface{}{
			"param": "request_id",
		})
	}

	if s.learner == nil {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"accepted": false,
			"reason":   "adaptive learning is disabled",
		})), nil
	}

	event := types.FeedbackEvent{
		RequestID:      requestID,
		Query:          getStringDefault(args, "query", ""),
		Intent:         types.IntentKind(getStringDefault(args, "intent", string(types.IntentBalanced))),
		SelectedChunks: getStringSlice(args, "selected_chunks"),
		Positive:       getBoolDefault(args, "positive", true),
		Contributions:  parseContributions(args["contributions"]),
	}

	if err := s.learner.Submit(ctx, event); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "feedback submission failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats := s.learner.Stats()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"accepted":  true,
		"submitted": stats.Submitted,
		"dropped":   stats.Dropped,
	})), nil
}

// handleRetrievalStatus handles the retrieval_status tool invocation.
func (s *Server) handleRetrievalStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{
		"server": map[string]interface{}{
			"name":    ServerName,
			"version": ServerVersion,
		},
		"build": map[string]interface{}{
			"mode":             storage.BuildMode,
			"sqlite_driver":    storage.DriverName,
			"vector_extension": storage.VectorExtensionAvailable,
		},
		"classifier": map[string]interface{}{
			"fallback_rate":     s.retriever.FallbackRate(),
			"fallback_alarming": s.retriever.FallbackAlarming(),
		},
	}

	table := fusion.DefaultProfileTable()
	if s.learner != nil {
		stats := s.learner.Stats()
		response["learner"] = map[string]interface{}{
			"enabled":   true,
			"submitted": stats.Submitted,
			"dropped":   stats.Dropped,
			"applied":   stats.Applied,
			"flushes":   stats.Flushes,
		}
		table = s.learner.Table()
	} else {
		response["learner"] = map[string]interface{}{"enabled": false}
	}

	profiles := make(map[string]map[string]float64)
	for kind, profile := range table.Profiles() {
		weights := make(map[string]float64, len(profile))
		for strategy, weight := range profile {
			weights[string(strategy)] = weight
		}
		profiles[string(kind)] = weights
	}
	response["profiles"] = profiles

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error.
func newMCPError(code int, message string, data interface{}) error {
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

// parseIndices converts the optional indices argument into strategy
// ids, rejecting unknown names.
func parseIndices(raw interface{}) ([]types.StrategyID, error) {
	list, ok := raw.([]interface{})
	if !ok || len(list) == 0 {
		return nil, nil
	}

	known := make(map[types.StrategyID]struct{}, len(types.AllStrategies))
	for _, s := range types.AllStrategies {
		known[s] = struct{}{}
	}

	indices := make([]types.StrategyID, 0, len(list))
	for _, item := range list {
		name, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("indices entries must be strings")
		}
		id := types.StrategyID(name)
		if _, valid := known[id]; !valid {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		indices = append(indices, id)
	}
	return indices, nil
}

// parseContributions converts the strategy-to-count feedback map.
func parseContributions(raw interface{}) map[types.StrategyID]int {
	m, ok := raw.(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[types.StrategyID]int, len(m))
	for name, value := range m {
		if count, ok := value.(float64); ok {
			out[types.StrategyID(name)] = int(count)
		}
	}
	return out
}

// formatJSON formats a map as indented JSON.
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value.
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value.
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string-array parameter, skipping non-string
// entries.
func getStringSlice(args map[string]interface{}, key string) []string {
	list, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

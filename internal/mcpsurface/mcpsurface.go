// Package mcpsurface exposes a read-only MCP tool surface over the
// live Aggregator window and recent Insights. It is optional and
// default-off (config.MCPConfig.Enabled); when disabled, nothing in
// this package is constructed or reachable.
package mcpsurface

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/baikal/sentinel/internal/aggregator"
	"github.com/baikal/sentinel/internal/model"
)

// InsightHistory is a bounded, concurrency-safe ring of recently
// produced Insights, read by the list_insights tool.
type InsightHistory struct {
	mu    sync.Mutex
	items []model.Insight
	cap   int
}

// NewInsightHistory creates a history retaining at most capacity entries.
func NewInsightHistory(capacity int) *InsightHistory {
	return &InsightHistory{cap: capacity}
}

// Record appends an insight, dropping the oldest on overflow.
func (h *InsightHistory) Record(ins model.Insight) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, ins)
	if len(h.items) > h.cap {
		h.items = h.items[len(h.items)-h.cap:]
	}
}

// Recent returns a snapshot copy of the retained insights.
func (h *InsightHistory) Recent() []model.Insight {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.Insight, len(h.items))
	copy(out, h.items)
	return out
}

// Server wraps the MCP server instance exposing the read-only surface.
type Server struct {
	mcpServer *server.MCPServer
}

// New creates an MCP server with the aggregator and insight-history
// tools registered. agg and history are read by handlers only; no
// tool here mutates core pipeline state.
func New(version string, agg *aggregator.Aggregator, history *InsightHistory, defaultWindowSeconds int) *Server {
	s := server.NewMCPServer("sentinel", version, server.WithLogging())
	registerTools(s, agg, history, defaultWindowSeconds)
	return &Server{mcpServer: s}
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func registerTools(s *server.MCPServer, agg *aggregator.Aggregator, history *InsightHistory, defaultWindowSeconds int) {
	logsTool := mcp.NewTool("recent_logs",
		mcp.WithDescription("Return recent log events currently held in the rolling window."),
		mcp.WithNumber("window_seconds",
			mcp.Description("How far back to look, in seconds"),
			mcp.DefaultNumber(float64(defaultWindowSeconds)),
		),
	)
	s.AddTool(logsTool, handleRecentLogs(agg))

	metricsTool := mcp.NewTool("recent_metrics",
		mcp.WithDescription("Return recent metric samples currently held in the rolling window."),
		mcp.WithNumber("window_seconds",
			mcp.Description("How far back to look, in seconds"),
			mcp.DefaultNumber(float64(defaultWindowSeconds)),
		),
	)
	s.AddTool(metricsTool, handleRecentMetrics(agg))

	insightsTool := mcp.NewTool("list_insights",
		mcp.WithDescription("List the most recent analysis insights produced by the backend."),
	)
	s.AddTool(insightsTool, handleListInsights(history))
}

func handleRecentLogs(agg *aggregator.Aggregator) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		window := numberArg(getArgs(request), "window_seconds", 60)
		logs := agg.RecentLogs(secondsToDuration(window))
		return jsonResult(logs)
	}
}

func handleRecentMetrics(agg *aggregator.Aggregator) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		window := numberArg(getArgs(request), "window_seconds", 60)
		metrics := agg.RecentMetrics(secondsToDuration(window))
		return jsonResult(metrics)
	}
}

func handleListInsights(history *InsightHistory) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(history.Recent())
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return newTextResult(string(b)), nil
}

func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

func numberArg(args map[string]interface{}, key string, defaultVal float64) float64 {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	f, ok := val.(float64)
	if !ok {
		return defaultVal
	}
	return f
}

func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

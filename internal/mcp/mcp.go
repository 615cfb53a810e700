// Package mcp provides the scripthost MCP server, exposing every command
// binding as a tool alongside a small set of host tools.
package mcp

import (
	_ "embed"
	"log/slog"

	"github.com/deixis/scripthost"
	"github.com/deixis/scripthost/internal/command"
	"github.com/deixis/scripthost/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	dispatcher *command.Dispatcher
	runner     *runner.Runner // used by host tools for listing and info
	log        *slog.Logger
}

// NewServer creates an MCP server with one tool per binding in d plus the
// host_scripts and host_info tools.
func NewServer(d *command.Dispatcher, r *runner.Runner, opts ...ServerOption) *mcp.Server {
	so := serverOptions{log: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(&so)
	}

	h := &handler{
		dispatcher: d,
		runner:     r,
		log:        so.log.With("component", "mcp"),
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "scripthost", Version: scripthost.Version}, mcpOpts)

	registerCommandTools(s, h)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "host_scripts",
		Description: "List the scripts available in the scripts directory and the commands bound to them.",
	}, h.scriptsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "host_info",
		Description: "Describe the host: version, operating system, interpreter and scripts directory.",
	}, h.infoHandler)

	return s
}

// ServerOption configures the scripthost MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	log *slog.Logger
}

// WithLogger sets the logger used by tool handlers.
func WithLogger(log *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.log = log
	}
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

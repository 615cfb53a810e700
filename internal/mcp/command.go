package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/scripthost/internal/runner"
)

// commandParams is the input of every command tool.
type commandParams struct {
	Arg *string `json:"arg"`
}

// runSummary is returned as structured content next to the text output.
type runSummary struct {
	RunID    string `json:"run_id"`
	Script   string `json:"script"`
	ExitCode int    `json:"exit_code"`
	Lines    int    `json:"lines"`
}

const defaultArgDescription = "Argument passed to the script as its only positional parameter."

// argSchema returns the input schema for a command tool.
func argSchema(description string) *jsonschema.Schema {
	if description == "" {
		description = defaultArgDescription
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"arg": {Type: "string", Description: description},
		},
		Required: []string{"arg"},
	}
}

// registerCommandTools registers one tool per binding. The tool name is the
// binding name.
func registerCommandTools(s *sdkmcp.Server, h *handler) {
	for _, b := range h.dispatcher.Bindings() {
		desc := b.Description
		if desc == "" {
			desc = "Run the " + b.Script + " script and return its standard output."
		}
		s.AddTool(
			&sdkmcp.Tool{
				Name:        b.Name,
				Description: desc,
				InputSchema: argSchema(b.ArgDescription),
			},
			makeCommandHandler(h, b.Name),
		)
	}
}

// makeCommandHandler returns a ToolHandler that invokes the named binding.
// If the caller supplied a progress token, each output line is also sent as
// a progress notification while the script runs.
func makeCommandHandler(h *handler, name string) sdkmcp.ToolHandler {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var params commandParams
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
				return errorResult("invalid arguments: " + err.Error()), nil
			}
		}

		if params.Arg == nil {
			return errorResult("arg is required"), nil
		}

		var onLine runner.LineHandler
		if token := req.Params.GetProgressToken(); token != nil && req.Session != nil {
			onLine = &progressNotifier{ctx: ctx, session: req.Session, token: token, log: h.log}
		}

		res, err := h.dispatcher.Invoke(ctx, name, *params.Arg, onLine)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		result := textResult(res.Output)
		result.StructuredContent = runSummary{
			RunID:    res.RunID,
			Script:   res.Script,
			ExitCode: res.ExitCode,
			Lines:    res.Lines,
		}
		return result, nil
	}
}

// progressNotifier forwards output lines as MCP progress notifications.
type progressNotifier struct {
	ctx     context.Context
	session *sdkmcp.ServerSession
	token   any
	log     *slog.Logger
	count   int
}

func (p *progressNotifier) OnLine(line string) {
	p.count++
	err := p.session.NotifyProgress(p.ctx, &sdkmcp.ProgressNotificationParams{
		ProgressToken: p.token,
		Progress:      float64(p.count),
		Message:       line,
	})
	if err != nil {
		p.log.Debug("dropping progress notification", "error", err)
	}
}

var _ runner.LineHandler = (*progressNotifier)(nil)

package mcp

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/deixis/scripthost"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type scriptsParams struct{}

func (h *handler) scriptsHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ scriptsParams) (*sdkmcp.CallToolResult, any, error) {
	ids, err := h.runner.Scripts()
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to list scripts: %v", err)), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scripts (%d):\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	fmt.Fprintln(&b)

	bindings := h.dispatcher.Bindings()
	fmt.Fprintf(&b, "Commands (%d):\n", len(bindings))
	for _, bd := range bindings {
		if bd.Script == bd.Name {
			fmt.Fprintf(&b, "  %s\n", bd.Name)
		} else {
			fmt.Fprintf(&b, "  %s -> %s\n", bd.Name, bd.Script)
		}
	}

	return textResult(b.String()), nil, nil
}

type infoParams struct{}

func (h *handler) infoHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ infoParams) (*sdkmcp.CallToolResult, any, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Version: %s\n", scripthost.Version)
	fmt.Fprintf(&b, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	interp := h.runner.InterpreterName()
	if path, err := exec.LookPath(interp); err == nil {
		fmt.Fprintf(&b, "Interpreter: %s (%s)\n", interp, path)
	} else {
		fmt.Fprintf(&b, "Interpreter: %s (not found)\n", interp)
	}
	fmt.Fprintf(&b, "Scripts: %s\n", h.runner.Dir())

	return textResult(b.String()), nil, nil
}

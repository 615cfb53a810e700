package mcp

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/deixis/scripthost/internal/command"
	"github.com/deixis/scripthost/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// setup creates a full scripthost MCP server + client over in-memory
// transports. Scripts are run with sh from scriptsDir.
func setup(t *testing.T, scriptsDir string, bindings []command.Binding, clientOpts *mcp.ClientOptions) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	r := &runner.Runner{
		Interpreter: "sh",
		ScriptsDir:  scriptsDir,
		Extension:   ".sh",
		Timeout:     30 * time.Second,
	}
	d, err := command.New(r, bindings, command.WithInterpreterLabel("sh"))
	if err != nil {
		t.Fatalf("command.New: %v", err)
	}

	server := NewServer(d, r)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, clientOpts)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs
}

// scriptsFixture writes the given scripts (name -> body) into a temp dir.
func scriptsFixture(t *testing.T, scripts map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range scripts {
		path := filepath.Join(dir, name+".sh")
		if err := os.WriteFile(path, []byte(body+"\n"), 0o644); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
	}
	return dir
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var exampleBindings = []command.Binding{{Name: "example_script", Script: "example_script"}}

// --- command tools ---

func TestExampleScript(t *testing.T) {
	dir := scriptsFixture(t, map[string]string{"example_script": `echo "$1"`})
	cs := setup(t, dir, exampleBindings, nil)

	res := callTool(t, cs, "example_script", map[string]any{"arg": "hello"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if text != "hello" {
		t.Errorf("output = %q, want %q", text, "hello")
	}
}

func TestCommandTool_MultiLine(t *testing.T) {
	dir := scriptsFixture(t, map[string]string{"lines": `printf 'a\nb\nc\n'`})
	cs := setup(t, dir, []command.Binding{{Name: "lines"}}, nil)

	res := callTool(t, cs, "lines", map[string]any{"arg": ""})
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(res))
	}
	if text := resultText(res); text != "a\nb\nc" {
		t.Errorf("output = %q, want %q", text, "a\nb\nc")
	}
}

func TestCommandTool_NonZeroExit(t *testing.T) {
	dir := scriptsFixture(t, map[string]string{"partial": `echo partial; exit 2`})
	cs := setup(t, dir, []command.Binding{{Name: "partial"}}, nil)

	res := callTool(t, cs, "partial", map[string]any{"arg": "x"})
	if res.IsError {
		t.Fatalf("non-zero exit should not be a tool error: %s", resultText(res))
	}
	if text := resultText(res); text != "partial" {
		t.Errorf("output = %q, want %q", text, "partial")
	}
	summary, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("StructuredContent = %T, want map", res.StructuredContent)
	}
	if code, _ := summary["exit_code"].(float64); code != 2 {
		t.Errorf("exit_code = %v, want 2", summary["exit_code"])
	}
	if id, _ := summary["run_id"].(string); id == "" {
		t.Error("run_id is empty")
	}
}

func TestCommandTool_SpawnFailure(t *testing.T) {
	dir := scriptsFixture(t, nil)
	cs := setup(t, dir, exampleBindings, nil)

	res := callTool(t, cs, "example_script", map[string]any{"arg": "hello"})
	if !res.IsError {
		t.Fatal("expected IsError for missing script")
	}
	text := resultText(res)
	if !strings.Contains(text, "Failed to run sh script") {
		t.Errorf("expected failure message, got:\n%s", text)
	}
	if !strings.Contains(text, "no such file or directory") {
		t.Errorf("expected I/O cause in message, got:\n%s", text)
	}
}

func TestCommandTool_MissingArg(t *testing.T) {
	dir := scriptsFixture(t, map[string]string{"example_script": `echo "$1"`})
	cs := setup(t, dir, exampleBindings, nil)

	res := callTool(t, cs, "example_script", map[string]any{})
	if !res.IsError {
		t.Fatalf("expected IsError for missing arg, got:\n%s", resultText(res))
	}
	if text := resultText(res); !strings.Contains(text, "arg is required") {
		t.Errorf("expected 'arg is required', got:\n%s", text)
	}
}

func TestCommandTool_ProgressNotifications(t *testing.T) {
	dir := scriptsFixture(t, map[string]string{"stream": `echo one; echo two; echo three`})

	got := make(chan string, 10)
	opts := &mcp.ClientOptions{
		ProgressNotificationHandler: func(_ context.Context, req *mcp.ProgressNotificationClientRequest) {
			got <- req.Params.Message
		},
	}
	cs := setup(t, dir, []command.Binding{{Name: "stream"}}, opts)

	params := &mcp.CallToolParams{
		Name:      "stream",
		Arguments: map[string]any{"arg": ""},
	}
	params.SetProgressToken("tok-1")
	res, err := cs.CallTool(context.Background(), params)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if text := resultText(res); text != "one\ntwo\nthree" {
		t.Errorf("output = %q, want %q", text, "one\ntwo\nthree")
	}

	// Notifications may be dispatched concurrently on the client side.
	var lines []string
	for i := 0; i < 3; i++ {
		select {
		case line := <-got:
			lines = append(lines, line)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for notification %d", i)
		}
	}
	slices.Sort(lines)
	if want := []string{"one", "three", "two"}; !slices.Equal(lines, want) {
		t.Errorf("notifications = %q, want %q", lines, want)
	}
}

func TestListTools(t *testing.T) {
	dir := scriptsFixture(t, nil)
	bindings := []command.Binding{
		{Name: "example_script"},
		{Name: "greet", Script: "hello", ArgDescription: "who to greet"},
	}
	cs := setup(t, dir, bindings, nil)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"example_script", "greet", "host_scripts", "host_info"} {
		if !names[want] {
			t.Errorf("tool %q not registered", want)
		}
	}
}

// --- host tools ---

func TestHostScripts(t *testing.T) {
	dir := scriptsFixture(t, map[string]string{
		"example_script": `echo "$1"`,
		"hello":          `echo hi`,
	})
	bindings := []command.Binding{
		{Name: "example_script", Script: "example_script"},
		{Name: "greet", Script: "hello"},
	}
	cs := setup(t, dir, bindings, nil)

	res := callTool(t, cs, "host_scripts", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Scripts (2):") {
		t.Errorf("expected script count, got:\n%s", text)
	}
	if !strings.Contains(text, "greet -> hello") {
		t.Errorf("expected greet binding, got:\n%s", text)
	}
}

func TestHostScripts_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "absent")
	cs := setup(t, dir, exampleBindings, nil)

	res := callTool(t, cs, "host_scripts", nil)
	if !res.IsError {
		t.Errorf("expected IsError for missing scripts dir, got:\n%s", resultText(res))
	}
}

func TestHostInfo(t *testing.T) {
	dir := scriptsFixture(t, nil)
	cs := setup(t, dir, exampleBindings, nil)

	res := callTool(t, cs, "host_info", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{"Version:", "OS:", "Interpreter: sh", "Scripts: " + dir} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deixis/scripthost/internal/command"
	"github.com/deixis/scripthost/internal/config"
	"github.com/deixis/scripthost/internal/runner"
	"github.com/fatih/color"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestBuildHost_FromConfig(t *testing.T) {
	root := t.TempDir()
	scripts := filepath.Join(root, "scripts")
	if err := os.Mkdir(scripts, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(scripts, "hello.sh"), []byte("echo \"hi $1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgBody := "interpreter: sh\nscripts_dir: scripts\nextension: .sh\ncommands:\n  - name: greet\n    script: hello\n"
	if err := os.WriteFile(filepath.Join(root, config.FileName), []byte(cfgBody), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := config.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h, err := buildHost(loaded, newLogger(io.Discard, false))
	if err != nil {
		t.Fatalf("buildHost: %v", err)
	}

	if h.runner.Dir() != scripts {
		t.Errorf("scripts dir = %q, want %q", h.runner.Dir(), scripts)
	}
	res, err := h.dispatcher.Invoke(context.Background(), "greet", "there", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Output != "hi there" {
		t.Errorf("Output = %q, want %q", res.Output, "hi there")
	}
}

func TestBuildHost_Defaults(t *testing.T) {
	root := t.TempDir()
	loaded, err := config.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h, err := buildHost(loaded, newLogger(io.Discard, false))
	if err != nil {
		t.Fatalf("buildHost: %v", err)
	}
	if h.runner.InterpreterName() != "ruby" {
		t.Errorf("interpreter = %q, want ruby", h.runner.InterpreterName())
	}
	if want := filepath.Join(root, "lib", "scripts"); h.runner.Dir() != want {
		t.Errorf("scripts dir = %q, want %q", h.runner.Dir(), want)
	}
	if _, ok := h.dispatcher.Lookup("example_script"); !ok {
		t.Error("example_script binding not registered")
	}
}

func TestFormatRunStatus(t *testing.T) {
	res := &runner.Result{RunID: "abc", Script: "demo", Lines: 2, Duration: 1500 * time.Microsecond}
	got := formatRunStatus(res)
	if !strings.HasPrefix(got, "ok demo") {
		t.Errorf("status = %q, want ok prefix", got)
	}
	if !strings.Contains(got, "run abc") {
		t.Errorf("status = %q, want run id", got)
	}

	res.ExitCode = 4
	if got := formatRunStatus(res); !strings.HasPrefix(got, "exit 4 demo") {
		t.Errorf("status = %q, want exit 4 prefix", got)
	}
}

func TestFormatScripts(t *testing.T) {
	out := formatScripts("/s", []string{"a", "b"}, []command.Binding{{Name: "greet", Script: "hello"}})
	for _, want := range []string{"Scripts in /s:", "  a\n", "  b\n", "greet", "hello"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestReportFailure_SpawnError(t *testing.T) {
	r := &runner.Runner{Interpreter: "sh", ScriptsDir: t.TempDir(), Extension: ".sh", Stderr: io.Discard}
	_, runErr := r.Run(context.Background(), "missing", nil, nil)
	if runErr == nil {
		t.Fatal("expected spawn error for missing script")
	}

	var b strings.Builder
	err := reportFailure(&b, runErr)
	if !errors.Is(err, errReported) {
		t.Errorf("reportFailure() = %v, want errReported", err)
	}
	out := b.String()
	if !strings.HasPrefix(out, "FAIL ") {
		t.Errorf("output = %q, want FAIL prefix", out)
	}
	if !strings.Contains(out, `spawning script "missing"`) {
		t.Errorf("output = %q, want the spawn error", out)
	}
}

// Package runner launches scripts through an external interpreter and
// collects their standard output line by line.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Defaults applied when the corresponding Runner field is zero.
const (
	DefaultInterpreter  = "ruby"
	DefaultScriptsDir   = "lib/scripts"
	DefaultExtension    = ".rb"
	DefaultMaxLineBytes = 1 << 20 // 1 MB
)

// Runner executes scripts found under ScriptsDir. A Runner holds no
// per-run state and may be used by multiple goroutines at once.
type Runner struct {
	Interpreter  string        // binary name, resolved via PATH
	ScriptsDir   string        // directory holding <script><Extension> files
	Extension    string        // script file extension, including the dot
	Timeout      time.Duration // zero means no timeout
	MaxLineBytes int           // longer output lines are skipped
	Stderr       io.Writer     // receives the child's stderr; nil means os.Stderr
	Logger       *slog.Logger  // nil discards
}

// Run launches the interpreter with the resolved script path followed by
// args, and reads the child's stdout until it closes. Each decoded line is
// passed to onLine (if non-nil) and then appended to the result. Lines that
// are not valid UTF-8 are skipped.
//
// The exit status is recorded in Result.ExitCode but does not make Run fail.
// Run returns a *SpawnError if the script cannot be resolved or the process
// cannot be started.
func (r *Runner) Run(ctx context.Context, script string, args []string, onLine LineHandler) (*Result, error) {
	path, err := r.ResolveScript(script)
	if err != nil {
		return nil, &SpawnError{Script: script, Err: err}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()
	log := r.logger().With("run_id", runID, "script", script)

	argv := append([]string{path}, args...)
	cmd := exec.CommandContext(ctx, r.interpreter(), argv...)
	cmd.Stderr = r.stderr()
	killProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Script: script, Err: fmt.Errorf("capturing stdout: %w", err)}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		log.Warn("script failed to start", "interpreter", r.interpreter(), "error", err)
		return nil, &SpawnError{Script: script, Err: err}
	}
	log.Debug("script started", "pid", cmd.Process.Pid, "args", len(args))

	lines := r.collect(stdout, onLine, log)

	// stdout is fully drained, so Wait only reaps the process.
	waitErr := cmd.Wait()
	if err := ctx.Err(); err != nil {
		log.Warn("script interrupted", "error", err)
		return nil, fmt.Errorf("script %q interrupted: %w", script, err)
	}
	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("waiting for script %q: %w", script, waitErr)
		}
		exitCode = exitErr.ExitCode()
	}

	res := &Result{
		RunID:    runID,
		Script:   script,
		Output:   strings.Join(lines, "\n"),
		Lines:    len(lines),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}
	log.Info("script finished", "exit_code", res.ExitCode, "lines", res.Lines, "duration", res.Duration)
	return res, nil
}

// collect decodes stdout into lines. A line longer than MaxLineBytes is
// skipped like an undecodable one and reading resumes at the next newline,
// so the child never blocks on a full pipe.
func (r *Runner) collect(stdout io.Reader, onLine LineHandler, log *slog.Logger) []string {
	maxLine := r.maxLineBytes()
	br := bufio.NewReader(stdout)

	var (
		lines   []string
		buf     []byte
		tooLong bool
	)
	emit := func() {
		defer func() {
			buf = buf[:0]
			tooLong = false
		}()
		line := bytes.TrimSuffix(bytes.TrimSuffix(buf, []byte("\n")), []byte("\r"))
		switch {
		case tooLong || len(line) > maxLine:
			log.Debug("skipping overlong line", "max_bytes", maxLine)
			return
		case !utf8.Valid(line):
			log.Debug("skipping undecodable line", "bytes", len(line))
			return
		}
		text := string(line)
		if onLine != nil {
			onLine.OnLine(text)
		}
		lines = append(lines, text)
	}

	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			// Room for the trailing CRLF.
			if len(buf) > maxLine+2 {
				tooLong = true
				buf = buf[:0]
			}
		}

		switch {
		case err == nil:
			emit()
		case errors.Is(err, bufio.ErrBufferFull):
		default:
			if len(buf) > 0 || tooLong {
				emit()
			}
			if !errors.Is(err, io.EOF) {
				log.Warn("stopped decoding script output", "error", err, "lines", len(lines))
				_, _ = io.Copy(io.Discard, stdout)
			}
			return lines
		}
	}
}

// ResolveScript maps a script identifier to its file under ScriptsDir.
// The resolved path must remain within ScriptsDir and name a regular file.
func (r *Runner) ResolveScript(script string) (string, error) {
	if script == "" {
		return "", ErrEmptyScript
	}

	dir := filepath.Clean(r.scriptsDir())
	path := filepath.Join(dir, script+r.extension())

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", fmt.Errorf("resolving script: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("script %q is outside scripts dir %q", script, dir)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return path, nil
}

// Scripts lists the identifiers of all scripts in ScriptsDir, sorted.
func (r *Runner) Scripts() ([]string, error) {
	entries, err := os.ReadDir(r.scriptsDir())
	if err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}

	ext := r.extension()
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		if id := strings.TrimSuffix(e.Name(), ext); id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// InterpreterName returns the interpreter binary Run will launch.
func (r *Runner) InterpreterName() string {
	return r.interpreter()
}

// Dir returns the directory scripts are resolved from.
func (r *Runner) Dir() string {
	return r.scriptsDir()
}

func (r *Runner) interpreter() string {
	if r.Interpreter != "" {
		return r.Interpreter
	}
	return DefaultInterpreter
}

func (r *Runner) scriptsDir() string {
	if r.ScriptsDir != "" {
		return r.ScriptsDir
	}
	return DefaultScriptsDir
}

func (r *Runner) extension() string {
	if r.Extension != "" {
		return r.Extension
	}
	return DefaultExtension
}

func (r *Runner) maxLineBytes() int {
	if r.MaxLineBytes > 0 {
		return r.MaxLineBytes
	}
	return DefaultMaxLineBytes
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

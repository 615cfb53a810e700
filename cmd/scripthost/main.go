// Command scripthost runs local scripts behind named command bindings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/deixis/scripthost"
	"github.com/deixis/scripthost/internal/command"
	"github.com/deixis/scripthost/internal/config"
	hostmcp "github.com/deixis/scripthost/internal/mcp"
	"github.com/deixis/scripthost/internal/runner"
	"github.com/fatih/color"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
)

// errReported marks a failure whose message has already been printed.
var errReported = errors.New("failure reported")

func main() {
	log.SetFlags(0)
	log.SetPrefix("scripthost: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "serve":
		err = serveMain(args)
	case "run":
		err = runMain(args)
	case "invoke":
		err = invokeMain(args)
	case "scripts":
		err = scriptsMain(args)
	case "version":
		fmt.Println(scripthost.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "scripthost: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if errors.Is(err, errReported) {
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: scripthost <command> [flags] [args]

Commands:
  serve       Start the MCP server (stdio, or HTTP with -http)
  run         Run a script and stream its output
  invoke      Call a named command binding with one argument
  scripts     List available scripts and commands
  version     Print the version
  help        Show this help

Use "scripthost <command> -h" for command-specific flags.`)
}

// --- serve ---

func serveMain(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	httpAddr := fs.String("http", "", "serve over HTTP on a localhost address (e.g. localhost:9090)")
	verbose := fs.Bool("v", false, "verbose logging")
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(hostmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger(os.Stderr, *verbose)
	h, err := newHost(logger)
	if err != nil {
		return err
	}

	server := hostmcp.NewServer(h.dispatcher, h.runner, hostmcp.WithLogger(logger))
	if *httpAddr != "" {
		return hostmcp.ServeHTTP(ctx, server, *httpAddr, logger)
	}
	logger.Info("starting stdio server")
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	quiet := fs.Bool("q", false, "omit the status line on success")
	verbose := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("run: script identifier required")
	}
	script := fs.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	h, err := newHost(newLogger(os.Stderr, *verbose))
	if err != nil {
		return err
	}

	res, err := h.runner.Run(ctx, script, fs.Args()[1:], runner.LineHandlerFunc(func(line string) {
		fmt.Println(line)
	}))
	if err != nil {
		return reportFailure(os.Stderr, err)
	}

	if !*quiet {
		fmt.Fprintln(os.Stderr, formatRunStatus(res))
	}
	return nil
}

func formatRunStatus(res *runner.Result) string {
	status := green("ok")
	if res.ExitCode != 0 {
		status = red(fmt.Sprintf("exit %d", res.ExitCode))
	}
	return fmt.Sprintf("%s %s (%d lines, %s, run %s)", status, res.Script, res.Lines, res.Duration.Round(time.Millisecond), res.RunID)
}

// reportFailure prints err even in quiet mode; script output on stdout
// stays clean either way.
func reportFailure(w io.Writer, err error) error {
	fmt.Fprintf(w, "%s %v\n", red("FAIL"), err)
	return errReported
}

// --- invoke ---

func invokeMain(args []string) error {
	fs := flag.NewFlagSet("invoke", flag.ExitOnError)
	verbose := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	if fs.NArg() != 2 {
		return errors.New("invoke: usage: scripthost invoke <command> <arg>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	h, err := newHost(newLogger(os.Stderr, *verbose))
	if err != nil {
		return err
	}

	res, err := h.dispatcher.Invoke(ctx, fs.Arg(0), fs.Arg(1), nil)
	if err != nil {
		return reportFailure(os.Stderr, err)
	}
	fmt.Println(res.Output)
	return nil
}

// --- scripts ---

func scriptsMain(args []string) error {
	fs := flag.NewFlagSet("scripts", flag.ExitOnError)
	_ = fs.Parse(args)

	h, err := newHost(newLogger(io.Discard, false))
	if err != nil {
		return err
	}

	ids, err := h.runner.Scripts()
	if err != nil {
		return err
	}
	fmt.Print(formatScripts(h.runner.Dir(), ids, h.dispatcher.Bindings()))
	return nil
}

func formatScripts(dir string, ids []string, bindings []command.Binding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scripts in %s:\n", dir)
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Commands:")
	for _, bd := range bindings {
		fmt.Fprintf(&b, "  %-20s %s\n", bd.Name, bd.Script)
	}
	return b.String()
}

// --- shared ---

type host struct {
	runner     *runner.Runner
	dispatcher *command.Dispatcher
}

// newHost loads configuration from the working directory and wires the
// runner and command bindings.
func newHost(logger *slog.Logger) (*host, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}

	loaded, err := config.Load(wd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return buildHost(loaded, logger)
}

func buildHost(loaded *config.LoadResult, logger *slog.Logger) (*host, error) {
	cfg := loaded.Config

	r := &runner.Runner{
		Interpreter:  cfg.Interpreter(),
		ScriptsDir:   cfg.ScriptsDir(loaded.Root),
		Extension:    cfg.Extension(),
		Timeout:      cfg.Timeout(),
		MaxLineBytes: cfg.MaxLineBytes(),
		Logger:       logger.With("component", "runner"),
	}

	d, err := command.New(r, command.BindingsFromConfig(cfg.CommandList()),
		command.WithInterpreterLabel(cfg.Interpreter()),
		command.WithLogger(logger.With("component", "command")),
	)
	if err != nil {
		return nil, fmt.Errorf("registering commands: %w", err)
	}
	return &host{runner: r, dispatcher: d}, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

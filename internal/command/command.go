// Package command exposes scripts to a host as named operations that take a
// single string argument. A binding is a pass-through to the script runner;
// it adds no behaviour beyond turning failures into a readable message.
package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deixis/scripthost/internal/config"
	"github.com/deixis/scripthost/internal/runner"
)

// ScriptRunner runs a script and collects its output.
// Implemented by runner.Runner.
type ScriptRunner interface {
	Run(ctx context.Context, script string, args []string, onLine runner.LineHandler) (*runner.Result, error)
}

// Binding maps an operation name to the script it runs.
type Binding struct {
	Name           string
	Script         string
	Description    string
	ArgDescription string
}

// BindingsFromConfig converts configured commands into bindings.
func BindingsFromConfig(cmds []config.Command) []Binding {
	out := make([]Binding, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, Binding{
			Name:           c.Name,
			Script:         c.ScriptID(),
			Description:    c.Description,
			ArgDescription: c.ArgDescription,
		})
	}
	return out
}

// Error is the failure value of an invocation. Message is what the host
// shows to its caller; Err holds the cause when there is one.
type Error struct {
	Command string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Dispatcher routes invocations to their bindings.
type Dispatcher struct {
	runner   ScriptRunner
	bindings []Binding
	byName   map[string]int
	label    string
	log      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for invocation tracking.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// WithInterpreterLabel names the interpreter in failure messages,
// e.g. "ruby" gives "Failed to run ruby script: ...".
func WithInterpreterLabel(label string) Option {
	return func(d *Dispatcher) {
		d.label = label
	}
}

// New creates a Dispatcher for the given bindings. Binding names must be
// unique and non-empty.
func New(r ScriptRunner, bindings []Binding, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		runner: r,
		byName: make(map[string]int, len(bindings)),
		log:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(d)
	}

	for _, b := range bindings {
		if b.Name == "" {
			return nil, fmt.Errorf("binding for script %q has no name", b.Script)
		}
		if _, ok := d.byName[b.Name]; ok {
			return nil, fmt.Errorf("duplicate binding %q", b.Name)
		}
		if b.Script == "" {
			b.Script = b.Name
		}
		d.byName[b.Name] = len(d.bindings)
		d.bindings = append(d.bindings, b)
	}
	return d, nil
}

// Bindings returns the registered bindings in registration order.
func (d *Dispatcher) Bindings() []Binding {
	return append([]Binding(nil), d.bindings...)
}

// Lookup returns the binding registered under name.
func (d *Dispatcher) Lookup(name string) (Binding, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Binding{}, false
	}
	return d.bindings[i], true
}

// Invoke runs the script bound to name with arg as its only argument.
// onLine may be nil. On failure the returned error is an *Error.
func (d *Dispatcher) Invoke(ctx context.Context, name, arg string, onLine runner.LineHandler) (*runner.Result, error) {
	b, ok := d.Lookup(name)
	if !ok {
		return nil, &Error{Command: name, Message: fmt.Sprintf("unknown command %q", name)}
	}

	res, err := d.runner.Run(ctx, b.Script, []string{arg}, onLine)
	if err != nil {
		d.log.Warn("command failed", "command", name, "script", b.Script, "error", err)
		return nil, &Error{Command: name, Message: d.failureMessage(err), Err: err}
	}

	d.log.Debug("command completed", "command", name, "run_id", res.RunID, "exit_code", res.ExitCode)
	return res, nil
}

func (d *Dispatcher) failureMessage(err error) string {
	if d.label == "" {
		return fmt.Sprintf("Failed to run script: %v", err)
	}
	return fmt.Sprintf("Failed to run %s script: %v", d.label, err)
}

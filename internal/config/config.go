// Package config loads and validates the optional .scripthost YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deixis/scripthost/internal/runner"
)

// FileName is the name of the configuration file looked up by Load.
const FileName = ".scripthost"

// DefaultCommands is the binding set used when none are configured.
var DefaultCommands = []Command{
	{
		Name:        "example_script",
		Script:      "example_script",
		Description: "Run the example script with a single argument and return its output.",
	},
}

// Config holds the parsed .scripthost configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version         int       `yaml:"version"`
	RawInterpreter  string    `yaml:"interpreter"`    // e.g. "ruby", "python3"
	RawScriptsDir   string    `yaml:"scripts_dir"`    // relative to the config root
	RawExtension    string    `yaml:"extension"`      // e.g. ".rb"
	RawTimeout      string    `yaml:"timeout"`        // e.g. "30s"; empty means none
	RawMaxLineBytes int       `yaml:"max_line_bytes"` // bytes
	Commands        []Command `yaml:"commands"`
}

// Command binds a host-visible operation name to a script. Every command
// takes exactly one string argument.
type Command struct {
	Name           string `yaml:"name"`
	Script         string `yaml:"script"` // defaults to Name
	Description    string `yaml:"description"`
	ArgDescription string `yaml:"arg_description"`
}

// ScriptID returns the script identifier the command runs.
func (c Command) ScriptID() string {
	if c.Script != "" {
		return c.Script
	}
	return c.Name
}

// Interpreter returns the configured interpreter or the default.
func (c *Config) Interpreter() string {
	if c.RawInterpreter != "" {
		return c.RawInterpreter
	}
	return runner.DefaultInterpreter
}

// Extension returns the configured script extension or the default.
// A missing leading dot is added.
func (c *Config) Extension() string {
	ext := c.RawExtension
	if ext == "" {
		return runner.DefaultExtension
	}
	if ext[0] != '.' {
		ext = "." + ext
	}
	return ext
}

// ScriptsDir returns the scripts directory resolved against root.
func (c *Config) ScriptsDir(root string) string {
	dir := c.RawScriptsDir
	if dir == "" {
		dir = runner.DefaultScriptsDir
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

// Timeout returns the configured timeout, or zero when none is set.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxLineBytes returns the configured line limit or the default.
func (c *Config) MaxLineBytes() int {
	if c.RawMaxLineBytes > 0 {
		return c.RawMaxLineBytes
	}
	return runner.DefaultMaxLineBytes
}

// CommandList returns the configured commands, falling back to defaults.
func (c *Config) CommandList() []Command {
	if len(c.Commands) > 0 {
		return c.Commands
	}
	return DefaultCommands
}

// Validate reports configuration errors that would make the host unusable.
func (c *Config) Validate() error {
	if c.RawTimeout != "" {
		if _, err := time.ParseDuration(c.RawTimeout); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.RawTimeout, err)
		}
	}
	seen := make(map[string]bool, len(c.Commands))
	for i, cmd := range c.Commands {
		if cmd.Name == "" {
			return fmt.Errorf("command %d: name is required", i)
		}
		if seen[cmd.Name] {
			return fmt.Errorf("command %q defined twice", cmd.Name)
		}
		seen[cmd.Name] = true
	}
	return nil
}

// LoadResult holds the parsed config and the directory it was found in.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .scripthost; falls back to the start dir
}

// Load reads the .scripthost file by walking upward from dir. If no file
// exists, a default Config rooted at dir is returned.
func Load(dir string) (*LoadResult, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	root, err := findConfigRoot(start)
	if err != nil {
		return &LoadResult{Config: &Config{}, Root: start}, nil
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", FileName, err)
	}
	return &LoadResult{Config: cfg, Root: root}, nil
}

// findConfigRoot walks upward from dir looking for a directory containing
// the config file.
func findConfigRoot(dir string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}

//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package runner

import "os/exec"

// killProcessGroup is a no-op; cancellation kills only the interpreter.
func killProcessGroup(*exec.Cmd) {}

package runner

import (
	"errors"
	"fmt"
)

// ErrEmptyScript is returned when Run is called without a script identifier.
var ErrEmptyScript = errors.New("empty script identifier")

// SpawnError reports that a script could not be launched or that its
// standard output could not be captured. Err holds the underlying cause,
// e.g. exec.ErrNotFound for a missing interpreter or fs.ErrNotExist for a
// missing script file.
type SpawnError struct {
	Script string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning script %q: %v", e.Script, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

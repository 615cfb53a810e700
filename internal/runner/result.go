package runner

import "time"

// Result holds the outcome of a script run.
type Result struct {
	RunID    string        // unique identifier for this run
	Script   string        // script identifier as requested
	Output   string        // decoded stdout lines joined with "\n"
	Lines    int           // number of lines in Output
	ExitCode int           // process exit code; -1 if the process was killed by a signal
	Duration time.Duration // wall time from start to reap
}

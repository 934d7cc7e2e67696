package model

import "time"

// ExecResult is the normalized result of a single command invocation,
// independent of the runner (host shell or sandbox) that executed it.
type ExecResult struct {
	Success bool
	// Output is the captured standard output.
	Output string
	// Error is the captured standard error or the reason the command didn't run.
	Error    string
	ExitCode int
	// Blocked is set when the safety filter rejected the command before spawning it.
	Blocked bool
	// TimedOut is set when the command was killed after exceeding its timeout.
	TimedOut bool
	Duration time.Duration
}

// ExitCodeNotRun is the exit code reported for commands that were blocked,
// timed out or could not be spawned.
const ExitCodeNotRun = -1

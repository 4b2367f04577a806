package command

import (
	"os/exec"
	"strings"
)

// ExitError wraps a child process failure together with its captured stderr.
type ExitError struct {
	cmd    *exec.Cmd
	stderr string
	err    error
}

func (e *ExitError) Error() string {
	name := e.cmd.Args[0]
	if stderr := strings.TrimSpace(e.stderr); len(stderr) != 0 {
		return name + ": " + stderr
	}
	return name + ": " + e.err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.err
}

// Stderr returns the captured (bounded) stderr of the child.
func (e *ExitError) Stderr() string {
	return e.stderr
}

func FromError(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(*ExitError); ok {
		return e.Error()
	}
	if e, ok := err.(*exec.ExitError); ok {
		if len(e.Stderr) > 0 {
			return e.Error() + ". stderr: " + string(e.Stderr)
		}
		return e.Error()
	}
	return err.Error()
}

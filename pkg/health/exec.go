package health

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// ExecChecker verifies that a required host command runs successfully.
// The agent depends on a working shell for task execution, so the
// default gate includes an exec check of the shell itself.
type ExecChecker struct {
	// CheckName identifies the prerequisite (e.g. "shell")
	CheckName string

	// Command is the command to execute (e.g. ["/bin/sh", "-c", "true"])
	Command []string

	// Timeout is the command execution timeout (default: 10 seconds)
	Timeout time.Duration
}

// NewExecChecker creates a new exec compatibility checker
func NewExecChecker(name string, command []string) *ExecChecker {
	return &ExecChecker{
		CheckName: name,
		Command:   command,
		Timeout:   10 * time.Second,
	}
}

// Check performs the exec compatibility check
func (e *ExecChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if len(e.Command) == 0 {
		return Result{
			Compatible: false,
			Message:    "no command specified",
			CheckedAt:  start,
			Duration:   time.Since(start),
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, e.Command[0], e.Command[1:]...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("command %v failed: %v", e.Command, err)
		if stderr.Len() > 0 {
			message = fmt.Sprintf("%s, stderr: %s", message, stderr.String())
		}
		return Result{
			Compatible: false,
			Message:    message,
			CheckedAt:  start,
			Duration:   time.Since(start),
		}
	}

	return Result{
		Compatible: true,
		Message:    fmt.Sprintf("command %v succeeded", e.Command),
		CheckedAt:  start,
		Duration:   time.Since(start),
	}
}

// Name identifies the prerequisite
func (e *ExecChecker) Name() string {
	return e.CheckName
}

// Type returns the compatibility check type
func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}

// WithTimeout sets the execution timeout
func (e *ExecChecker) WithTimeout(timeout time.Duration) *ExecChecker {
	e.Timeout = timeout
	return e
}

package session

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rangeworks/drover/pkg/types"
)

// baseAction carries the identity every variant shares.
type baseAction struct {
	id   string
	kind types.ActionKind
}

func base(d types.ActionDescriptor) baseAction {
	return baseAction{id: d.ID, kind: d.Kind}
}

func (b baseAction) ID() string             { return b.id }
func (b baseAction) Kind() types.ActionKind { return b.kind }

// Cancel is a no-op by default: context cancellation is the cooperative
// signal, and only process-backed actions need escalation.
func (b baseAction) Cancel(graceTime time.Duration) error { return nil }

// syncAction transfers job attachments in or out via the wired syncer.
type syncAction struct {
	baseAction
	syncer AttachmentSyncer
	output bool
}

func (a *syncAction) HumanReadable() string {
	if a.output {
		return "sync output job attachments"
	}
	return "sync input job attachments"
}

// Output sync is cleanup: results produced before a failure still get
// uploaded.
func (a *syncAction) AlwaysRuns() bool { return a.output }

func (a *syncAction) Run(ctx context.Context, env *Env) error {
	if a.syncer == nil {
		env.Logger.Debug().Str("action_id", a.id).Msg("no attachment syncer wired, skipping")
		env.Progress(100, "")
		return nil
	}
	progress := func(pct float64) { env.Progress(pct, "") }
	if a.output {
		return a.syncer.SyncOutputs(ctx, env, progress)
	}
	return a.syncer.SyncInputs(ctx, env, progress)
}

// environmentAction enters or exits a job environment by running its
// configured command under the session user.
type environmentAction struct {
	baseAction
	envID   string
	command string
	exit    bool
}

func (a *environmentAction) HumanReadable() string {
	if a.exit {
		return "exit environment " + a.envID
	}
	return "enter environment " + a.envID
}

// Environment exit is cleanup and always attempted.
func (a *environmentAction) AlwaysRuns() bool { return a.exit }

func (a *environmentAction) Run(ctx context.Context, env *Env) error {
	if a.command == "" {
		// Environments without enter/exit hooks are legal.
		env.Progress(100, "")
		return nil
	}
	if err := runCommand(ctx, env, a.command); err != nil {
		return fmt.Errorf("environment %s %s failed: %w", a.envID, a.kind, err)
	}
	env.Progress(100, "")
	return nil
}

// taskAction runs one task step as a subprocess under the session user,
// streaming its output into the session log and parsing progress lines.
type taskAction struct {
	baseAction
	stepID  string
	taskID  string
	command string

	mu   sync.Mutex
	proc *exec.Cmd
}

func newTaskAction(d types.ActionDescriptor) *taskAction {
	return &taskAction{
		baseAction: base(d),
		stepID:     d.StepID,
		taskID:     d.TaskID,
		command:    d.Parameters["command"],
	}
}

func (a *taskAction) HumanReadable() string {
	return fmt.Sprintf("run task %s of step %s", a.taskID, a.stepID)
}

func (a *taskAction) AlwaysRuns() bool { return false }

// Cancel escalates: SIGTERM immediately, SIGKILL once the grace period
// passes without the process exiting. Run's Wait observes the exit either
// way, so the action still reaches exactly one terminal status.
func (a *taskAction) Cancel(graceTime time.Duration) error {
	a.mu.Lock()
	proc := a.proc
	a.mu.Unlock()

	if proc == nil || proc.Process == nil {
		return nil
	}

	if err := proc.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal task process: %w", err)
	}

	if graceTime > 0 {
		process := proc.Process
		time.AfterFunc(graceTime, func() {
			_ = process.Kill()
		})
	}
	return nil
}

func (a *taskAction) Run(ctx context.Context, env *Env) error {
	if a.command == "" {
		return fmt.Errorf("task %s has no command", a.taskID)
	}

	cmd := exec.Command("/bin/sh", "-c", a.command)
	cmd.Dir = env.WorkingDir
	if env.User != nil {
		env.User.ConfigureCommand(cmd)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open task stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	a.mu.Lock()
	a.proc = cmd
	a.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start task process: %w", err)
	}

	// Stream process output into the session log; lines of the form
	// "progress: N" feed the progress callback.
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			if pct, ok := parseProgressLine(line); ok {
				env.Progress(pct, "")
				continue
			}
			env.Logger.Info().Msg(line)
		}
	}()

	waitDone := make(chan error, 1)
	go func() {
		<-scanDone
		waitDone <- cmd.Wait()
	}()

	select {
	case err := <-waitDone:
		if err != nil {
			return fmt.Errorf("task process failed: %w", err)
		}
		env.Progress(100, "")
		return nil
	case <-ctx.Done():
		// Cancel already signaled the process; wait for it to die so the
		// terminal status is recorded after the process is truly gone.
		<-waitDone
		return ctx.Err()
	}
}

func parseProgressLine(line string) (float64, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "progress:")
	if !ok {
		return 0, false
	}
	pct, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

// notifyAction delivers a message through the wired notifier.
type notifyAction struct {
	baseAction
	notifier Notifier
	message  string
}

func (a *notifyAction) HumanReadable() string { return "notify" }

// Notifications must still go out after a failure.
func (a *notifyAction) AlwaysRuns() bool { return true }

func (a *notifyAction) Run(ctx context.Context, env *Env) error {
	if a.notifier == nil {
		env.Logger.Debug().Str("action_id", a.id).Msg("no notifier wired, skipping")
		return nil
	}
	if err := a.notifier.Notify(ctx, env.SessionID, a.message); err != nil {
		return fmt.Errorf("notification failed: %w", err)
	}
	env.Progress(100, "")
	return nil
}

// runCommand runs a shell command under the session user, streaming
// output to the session log.
func runCommand(ctx context.Context, env *Env, command string) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = env.WorkingDir
	if env.User != nil {
		env.User.ConfigureCommand(cmd)
	}

	out, err := cmd.CombinedOutput()
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			env.Logger.Info().Msg(line)
		}
	}
	return err
}

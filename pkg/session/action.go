package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rangeworks/drover/pkg/osuser"
	"github.com/rangeworks/drover/pkg/types"
)

// Env is the execution environment an action runs in: the session's
// working directory, the impersonated OS user, the session logger, and
// the progress callback. Progress is reported in the action's own
// [0,100] sub-range; the session normalizes it into the job-overall
// percentage.
type Env struct {
	SessionID  string
	WorkingDir string
	User       *osuser.SessionUser
	Logger     zerolog.Logger
	Progress   func(segment float64, message string)
}

// Action is one cancelable unit of work in a session queue. Run blocks
// until the action finishes or its context is canceled; Cancel is the
// escalation hook invoked alongside context cancellation, with the grace
// period an unresponsive action gets before being killed.
//
// Exactly one of the terminal statuses is recorded for every started
// action; that bookkeeping lives in the session, not the action.
type Action interface {
	ID() string
	Kind() types.ActionKind
	HumanReadable() string

	// AlwaysRuns marks cleanup-like kinds (environment exit, output sync,
	// notify) that are still attempted after an earlier action failed.
	AlwaysRuns() bool

	Run(ctx context.Context, env *Env) error
	Cancel(graceTime time.Duration) error
}

// CancelationError is the single error kind cancellation surfaces.
// Whatever the execution layer reported underneath is wrapped here; the
// caller does not need to distinguish causes.
type CancelationError struct {
	ActionID string
	Message  string
	Cause    error
}

func (e *CancelationError) Error() string {
	if e.ActionID != "" {
		return fmt.Sprintf("cannot cancel action %s: %s", e.ActionID, e.Message)
	}
	return "cannot cancel: " + e.Message
}

func (e *CancelationError) Unwrap() error {
	return e.Cause
}

// AttachmentSyncer transfers job attachments between the host and remote
// storage. The manifest-based transfer implementation is an external
// collaborator; the engine only needs direction, environment, and a
// sub-progress callback.
type AttachmentSyncer interface {
	SyncInputs(ctx context.Context, env *Env, progress func(float64)) error
	SyncOutputs(ctx context.Context, env *Env, progress func(float64)) error
}

// Notifier delivers a session notification to whatever reporting channel
// the surrounding system wired in.
type Notifier interface {
	Notify(ctx context.Context, sessionID, message string) error
}

// ActionDeps carries the external collaborators action variants need.
type ActionDeps struct {
	Syncer   AttachmentSyncer
	Notifier Notifier
}

// BuildActions maps remote action descriptors onto executable variants,
// preserving queue order. Unknown kinds fail construction; a session with
// an action the agent cannot execute must not start.
func BuildActions(descs []types.ActionDescriptor, deps ActionDeps) ([]Action, error) {
	actions := make([]Action, 0, len(descs))
	for _, d := range descs {
		a, err := buildAction(d, deps)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func buildAction(d types.ActionDescriptor, deps ActionDeps) (Action, error) {
	switch d.Kind {
	case types.ActionKindSyncInputAttachments:
		return &syncAction{baseAction: base(d), syncer: deps.Syncer, output: false}, nil
	case types.ActionKindSyncOutputAttachments:
		return &syncAction{baseAction: base(d), syncer: deps.Syncer, output: true}, nil
	case types.ActionKindEnterEnvironment:
		return &environmentAction{baseAction: base(d), envID: d.EnvironmentID, command: d.Parameters["command"], exit: false}, nil
	case types.ActionKindExitEnvironment:
		return &environmentAction{baseAction: base(d), envID: d.EnvironmentID, command: d.Parameters["command"], exit: true}, nil
	case types.ActionKindRunTask:
		return newTaskAction(d), nil
	case types.ActionKindNotify:
		return &notifyAction{baseAction: base(d), notifier: deps.Notifier, message: d.Parameters["message"]}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q for action %s", d.Kind, d.ID)
	}
}

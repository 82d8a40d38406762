package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rangeworks/drover/pkg/log"
	"github.com/rangeworks/drover/pkg/metrics"
	"github.com/rangeworks/drover/pkg/osuser"
	"github.com/rangeworks/drover/pkg/types"
)

// ActionRecord tracks one action's lifecycle inside a session.
type ActionRecord struct {
	Action    Action
	Status    ActionStatus
	StartTime time.Time
	EndTime   time.Time
	Message   string

	cancel context.CancelFunc
	done   chan struct{}
}

// Config assembles a session.
type Config struct {
	ID         string
	Actions    []Action
	User       *osuser.SessionUser
	WorkingDir string
	Logger     zerolog.Logger

	// LogConfig is the validated log destination for this session, nil
	// when logs stay local only.
	LogConfig *log.Configuration

	// Releases run in reverse order at teardown: log sink detach, OS
	// profile unload, working directory removal. They run on every exit
	// path once Run has been entered.
	Releases []func()
}

// Update is the per-session slice of a heartbeat report.
type Update struct {
	SessionID     string
	SessionStatus Status
	ActionID      string
	ActionStatus  ActionStatus
	Progress      float64
	Message       string
}

// Session sequences the ordered action queue for one scheduled unit of
// work. All state is session-scoped; the agent may run many sessions
// concurrently even though the default configuration runs one.
type Session struct {
	id         string
	user       *osuser.SessionUser
	workingDir string
	logger     zerolog.Logger
	logConfig  *log.Configuration
	releases   []func()

	mu          sync.Mutex
	status      Status
	records     []*ActionRecord
	currentIdx  int  // index of the last started action
	started     bool // true once any action has been started
	canceling   bool
	progress    float64
	progressMsg string
}

// New creates a session in CREATED state with its action queue in order.
func New(cfg Config) *Session {
	records := make([]*ActionRecord, len(cfg.Actions))
	for i, a := range cfg.Actions {
		records[i] = &ActionRecord{Action: a, Status: ActionPending}
	}

	return &Session{
		id:         cfg.ID,
		user:       cfg.User,
		workingDir: cfg.WorkingDir,
		logger:     cfg.Logger,
		logConfig:  cfg.LogConfig,
		releases:   cfg.Releases,
		status:     StatusCreated,
		records:    records,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// LogConfiguration returns the session's log destination, nil when logs
// stay local only.
func (s *Session) LogConfiguration() *log.Configuration { return s.logConfig }

// Status returns the session status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns the current heartbeat view of the session.
func (s *Session) Snapshot() Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := Update{
		SessionID:     s.id,
		SessionStatus: s.status,
		Progress:      s.progress,
		Message:       s.progressMsg,
	}
	if s.started {
		rec := s.records[s.currentIdx]
		u.ActionID = rec.Action.ID()
		u.ActionStatus = rec.Status
	}
	return u
}

// RecordView is a read-only copy of one action's bookkeeping.
type RecordView struct {
	ActionID string
	Kind     types.ActionKind
	Status   ActionStatus
	Message  string
}

// Records returns a copy of the per-action bookkeeping in queue order.
func (s *Session) Records() []RecordView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]RecordView, len(s.records))
	for i, rec := range s.records {
		views[i] = RecordView{
			ActionID: rec.Action.ID(),
			Kind:     rec.Action.Kind(),
			Status:   rec.Status,
			Message:  rec.Message,
		}
	}
	return views
}

// Run drives the action queue to completion on the given executor and
// then tears the session down. It blocks until the session reaches a
// terminal status; the worker runs it on the session-execution path, not
// the heartbeat path. Every error becomes a status transition; Run never
// panics the process over remote or job failures.
func (s *Session) Run(ctx context.Context, executor *Executor) Status {
	s.mu.Lock()
	if s.status != StatusCreated {
		status := s.status
		s.mu.Unlock()
		return status
	}
	s.status = StatusRunning
	s.mu.Unlock()

	metrics.SessionsRunning.Inc()
	defer metrics.SessionsRunning.Dec()
	defer s.teardown()

	failed := false
	for i, rec := range s.records {
		aborted := failed || s.cancelRequested()
		if aborted && !rec.Action.AlwaysRuns() {
			s.mu.Lock()
			rec.Status = ActionCanceled
			rec.Message = "not attempted"
			s.mu.Unlock()
			continue
		}

		if err := s.start(ctx, i, executor); err != nil {
			// The pool is shutting down; nothing more can run.
			s.mu.Lock()
			rec.Status = ActionCanceled
			rec.Message = err.Error()
			s.mu.Unlock()
			failed = true
			continue
		}

		<-rec.done

		s.mu.Lock()
		status := rec.Status
		s.mu.Unlock()
		if status == ActionFailed || status == ActionCanceled {
			failed = true
		}
	}

	s.mu.Lock()
	switch {
	case s.canceling:
		s.status = StatusCanceled
	case failed:
		s.status = StatusFailed
	default:
		s.status = StatusSucceeded
		s.progress = 100
	}
	status := s.status
	s.mu.Unlock()

	metrics.SessionsTotal.WithLabelValues(string(status)).Inc()
	s.logger.Info().Str("status", string(status)).Msg("session finished")
	return status
}

// start transitions the action PENDING to RUNNING and dispatches it to
// the executor. It returns without waiting for the action to finish.
func (s *Session) start(ctx context.Context, idx int, executor *Executor) error {
	rec := s.records[idx]
	actionCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	rec.Status = ActionRunning
	rec.StartTime = time.Now()
	rec.cancel = cancel
	rec.done = make(chan struct{})
	s.currentIdx = idx
	s.started = true
	s.mu.Unlock()

	s.logger.Info().
		Str("action_id", rec.Action.ID()).
		Str("action", rec.Action.HumanReadable()).
		Msg("action started")

	env := s.envFor(idx)
	run := func() {
		defer cancel()
		timer := metrics.NewTimer()
		err := rec.Action.Run(actionCtx, env)
		timer.ObserveDuration(
			metrics.ActionDuration.WithLabelValues(string(rec.Action.Kind())),
		)
		s.finish(rec, err)
		close(rec.done)
	}

	if err := executor.Submit(run); err != nil {
		cancel()
		return err
	}
	return nil
}

// finish records the action's single terminal status.
func (s *Session) finish(rec *ActionRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Status.IsTerminal() {
		// Terminal status is set exactly once.
		return
	}

	rec.EndTime = time.Now()
	switch {
	case err == nil:
		rec.Status = ActionSuccess
	case s.canceling || errors.Is(err, context.Canceled):
		rec.Status = ActionCanceled
		rec.Message = err.Error()
	default:
		rec.Status = ActionFailed
		rec.Message = err.Error()
	}

	metrics.ActionsTotal.WithLabelValues(string(rec.Action.Kind()), string(rec.Status)).Inc()
	s.logger.Info().
		Str("action_id", rec.Action.ID()).
		Str("status", string(rec.Status)).
		Str("message", rec.Message).
		Msg("action finished")
}

// Cancel requests cooperative cancellation of the currently running
// action, with graceTime before the execution layer escalates. All
// failures surface as the one CancelationError kind.
func (s *Session) Cancel(graceTime time.Duration) error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()
		return &CancelationError{Message: "no action was run"}
	}

	rec := s.records[s.currentIdx]
	if rec.Status.IsTerminal() {
		actionID := rec.Action.ID()
		status := rec.Status
		s.mu.Unlock()
		return &CancelationError{
			ActionID: actionID,
			Message:  fmt.Sprintf("already completed as %s", status),
		}
	}

	s.canceling = true
	cancel := rec.cancel
	action := rec.Action
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := action.Cancel(graceTime); err != nil {
		return &CancelationError{
			ActionID: action.ID(),
			Message:  "execution layer failed during cancellation",
			Cause:    err,
		}
	}
	return nil
}

// cancelRequested reports whether Cancel has been accepted.
func (s *Session) cancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceling
}

// envFor builds the action execution environment for queue position idx.
// The action's sub-progress is normalized into the slice of the overall
// range this action covers.
func (s *Session) envFor(idx int) *Env {
	n := len(s.records)
	start := float64(idx) / float64(n) * 100
	end := float64(idx+1) / float64(n) * 100

	return &Env{
		SessionID:  s.id,
		WorkingDir: s.workingDir,
		User:       s.user,
		Logger:     s.logger,
		Progress: func(segment float64, message string) {
			overall := NormalizeProgress(start, end, segment)
			s.mu.Lock()
			s.progress = overall
			if message != "" {
				s.progressMsg = message
			}
			s.mu.Unlock()
		},
	}
}

// teardown releases session resources in reverse acquisition order.
func (s *Session) teardown() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
}

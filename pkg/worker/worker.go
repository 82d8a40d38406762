package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rangeworks/drover/pkg/capabilities"
	"github.com/rangeworks/drover/pkg/controlplane"
	"github.com/rangeworks/drover/pkg/credentials"
	"github.com/rangeworks/drover/pkg/health"
	"github.com/rangeworks/drover/pkg/log"
	"github.com/rangeworks/drover/pkg/metrics"
	"github.com/rangeworks/drover/pkg/osuser"
	"github.com/rangeworks/drover/pkg/session"
	"github.com/rangeworks/drover/pkg/storage"
	"github.com/rangeworks/drover/pkg/types"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultSessionWorkers    = 1
	defaultJournalKeep       = 100

	// How often the job user cache is swept for stale entries.
	cacheSweepInterval = 30 * time.Minute

	// Grace given to running actions when a shutdown deadline forces
	// cancellation before the execution layer escalates.
	drainGraceTime = 10 * time.Second
)

// Config holds worker configuration.
type Config struct {
	FleetID string
	DataDir string
	LogDir  string

	// Operator-configured capabilities, merged over the host-detected
	// baseline before registration.
	Capabilities *capabilities.Capabilities

	// External collaborators for session actions. Either may be nil;
	// the matching action kinds then degrade to no-ops.
	Syncer   session.AttachmentSyncer
	Notifier session.Notifier

	// OS logon backend for job user impersonation.
	Logon osuser.LogonAPI

	// LogSinks opens remote log delivery for sessions whose descriptor
	// mapped onto a supported driver. Nil keeps session logs local only.
	LogSinks LogSinkOpener

	// Host prerequisite checks run before the worker reports STARTED.
	// Defaults to a shell check plus free space on the data directory.
	Checks []health.Checker

	HeartbeatInterval time.Duration
	SessionWorkers    int
	JournalKeep       int
}

// LogSinkOpener opens the remote delivery writer for one session's log
// configuration. The returned release closes the sink; it runs during
// session teardown. A nil writer means logs stay local only.
type LogSinkOpener interface {
	Open(sessionID string, cfg *log.Configuration) (io.Writer, func(), error)
}

// Worker is the fleet agent: it registers with the control plane,
// heartbeats its session state, and executes assigned sessions.
type Worker struct {
	cfg    Config
	client *controlplane.Client
	store  storage.Store
	users  *credentials.JobUserResolver

	executor *session.Executor
	caps     *capabilities.Capabilities
	logger   zerolog.Logger

	registration types.Registration

	sessionsMu sync.Mutex
	sessions   map[string]*session.Session
	// Sessions that failed before an engine could be built still owe the
	// control plane exactly one terminal report.
	stillborn map[string]controlplane.SessionStateReport

	interval time.Duration

	// Sessions run under the worker's lifetime, not the heartbeat that
	// delivered them.
	runCtx    context.Context
	runCancel context.CancelFunc

	stopOnce sync.Once
	stopCh   chan struct{}
	loopWg   sync.WaitGroup
	workWg   sync.WaitGroup
}

// NewWorker creates a worker instance. The control-plane client, state
// store, and job user resolver are injected so their lifecycles stay
// with the caller.
func NewWorker(cfg Config, client *controlplane.Client, store storage.Store, users *credentials.JobUserResolver) *Worker {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.SessionWorkers <= 0 {
		cfg.SessionWorkers = defaultSessionWorkers
	}
	if cfg.JournalKeep <= 0 {
		cfg.JournalKeep = defaultJournalKeep
	}
	if cfg.Logon == nil {
		cfg.Logon = osuser.PosixAPI{}
	}
	if cfg.Checks == nil {
		cfg.Checks = []health.Checker{
			health.NewExecChecker("shell", []string{"/bin/sh", "-c", "true"}),
			health.NewDiskChecker(cfg.DataDir),
		}
	}

	caps := HostCapabilities()
	if cfg.Capabilities != nil {
		caps = caps.Merge(cfg.Capabilities)
	}

	return &Worker{
		cfg:       cfg,
		client:    client,
		store:     store,
		users:     users,
		executor:  session.NewExecutor(cfg.SessionWorkers),
		caps:      caps,
		logger:    log.WithComponent("worker"),
		sessions:  make(map[string]*session.Session),
		stillborn: make(map[string]controlplane.SessionStateReport),
		interval:  cfg.HeartbeatInterval,
		stopCh:    make(chan struct{}),
	}
}

// Start registers the worker and starts the heartbeat loop. It returns
// once the worker is registered and reporting.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.ensureRegistration(ctx); err != nil {
		return err
	}

	if failures := health.Gate(ctx, w.cfg.Checks); len(failures) > 0 {
		for _, f := range failures {
			w.logger.Error().
				Str("check", f.Name).
				Str("reason", f.Message).
				Msg("host prerequisite failed")
		}
		if _, err := w.client.UpdateWorker(ctx, &controlplane.UpdateWorkerInput{
			FleetID:  w.registration.FleetID,
			WorkerID: w.registration.WorkerID,
			Status:   types.WorkerStatusNotCompatible,
		}); err != nil {
			w.logger.Warn().Err(err).Msg("failed to report incompatibility")
		}
		return fmt.Errorf("host is not compatible: %s: %s", failures[0].Name, failures[0].Message)
	}
	w.runCtx, w.runCancel = context.WithCancel(context.Background())

	amounts, attributes := w.caps.ForRemote()
	_, err := w.client.UpdateWorker(ctx, &controlplane.UpdateWorkerInput{
		FleetID:    w.registration.FleetID,
		WorkerID:   w.registration.WorkerID,
		Status:     types.WorkerStatusStarted,
		Amounts:    amounts,
		Attributes: attributes,
	})
	if err != nil {
		return fmt.Errorf("failed to report worker started: %w", err)
	}

	metrics.UpdateComponent("executor", true, "")
	w.logger.Info().
		Str("fleet_id", w.registration.FleetID).
		Str("worker_id", w.registration.WorkerID).
		Msg("worker started")

	// The loop outlives the startup context and runs until Stop.
	w.loopWg.Add(1)
	go w.heartbeatLoop(w.runCtx)

	return nil
}

// Registration returns the fleet identity the worker runs under.
func (w *Worker) Registration() types.Registration {
	return w.registration
}

// ensureRegistration loads the persisted fleet identity or registers a
// new worker. The control-plane assigned worker ID survives restarts.
func (w *Worker) ensureRegistration(ctx context.Context) error {
	reg, err := w.store.GetRegistration()
	if err == nil {
		if reg.FleetID != w.cfg.FleetID {
			return fmt.Errorf("data directory belongs to fleet %s, not %s", reg.FleetID, w.cfg.FleetID)
		}
		w.registration = *reg
		w.logger.Info().Str("worker_id", reg.WorkerID).Msg("using persisted registration")
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load registration: %w", err)
	}

	out, err := w.client.CreateWorker(ctx, &controlplane.CreateWorkerInput{
		FleetID:        w.cfg.FleetID,
		ClientToken:    uuid.NewString(),
		HostProperties: HostProperties(),
	})
	if err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}

	w.registration = types.Registration{
		FleetID:      w.cfg.FleetID,
		WorkerID:     out.WorkerID,
		RegisteredAt: time.Now().UTC(),
	}
	if err := w.store.SaveRegistration(&w.registration); err != nil {
		return fmt.Errorf("failed to persist registration: %w", err)
	}

	w.logger.Info().Str("worker_id", out.WorkerID).Msg("registered new worker")
	return nil
}

// Stop drains the worker: the heartbeat loop stops, running sessions
// finish, and the control plane sees STOPPING then STOPPED.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.loopWg.Wait()

	if _, err := w.client.UpdateWorker(ctx, &controlplane.UpdateWorkerInput{
		FleetID:  w.registration.FleetID,
		WorkerID: w.registration.WorkerID,
		Status:   types.WorkerStatusStopping,
	}); err != nil {
		w.logger.Warn().Err(err).Msg("failed to report worker stopping")
	}

	w.drain(ctx)
	w.executor.Stop()
	if w.runCancel != nil {
		w.runCancel()
	}

	// The STOPPED report still goes out after a forced drain, even when
	// the shutdown context has already expired.
	reportCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		reportCtx, cancel = context.WithTimeout(context.Background(), w.interval*4)
		defer cancel()
	}

	if _, err := w.client.UpdateWorker(reportCtx, &controlplane.UpdateWorkerInput{
		FleetID:  w.registration.FleetID,
		WorkerID: w.registration.WorkerID,
		Status:   types.WorkerStatusStopped,
	}); err != nil {
		w.logger.Warn().Err(err).Msg("failed to report worker stopped")
	}

	if err := w.store.PruneSessions(w.cfg.JournalKeep); err != nil {
		w.logger.Warn().Err(err).Msg("failed to prune session journal")
	}

	w.logger.Info().Msg("worker stopped")
	return nil
}

// drain waits for running sessions to finish. When the shutdown context
// expires first, it escalates: every running session is canceled and the
// session contexts are torn down, so every action still reaches exactly
// one terminal status before drain returns.
func (w *Worker) drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		w.workWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	w.logger.Warn().Msg("shutdown deadline reached, canceling running sessions")

	w.sessionsMu.Lock()
	running := make([]*session.Session, 0, len(w.sessions))
	for _, sess := range w.sessions {
		running = append(running, sess)
	}
	w.sessionsMu.Unlock()

	for _, sess := range running {
		if err := sess.Cancel(drainGraceTime); err != nil {
			w.logger.Warn().Err(err).
				Str("session_id", sess.ID()).
				Msg("session cancellation during shutdown")
		}
	}
	if w.runCancel != nil {
		w.runCancel()
	}

	<-done
}

// heartbeatLoop reports session state to the control plane and applies
// the schedule it returns. The control plane can stretch or shrink the
// interval between beats.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	defer w.loopWg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	sweep := time.NewTicker(cacheSweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ticker.C:
			if next := w.beat(ctx); next > 0 && next != w.interval {
				w.interval = next
				ticker.Reset(next)
			}
		case <-sweep.C:
			if w.users != nil {
				w.users.PruneCache()
			}
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// beat performs one heartbeat and returns the interval the control plane
// asked for, if any.
func (w *Worker) beat(ctx context.Context) time.Duration {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.HeartbeatDuration)

	ctx, cancel := context.WithTimeout(ctx, w.interval*4)
	defer cancel()

	reports, terminal := w.collectReports()

	out, err := w.client.UpdateWorkerSchedule(ctx, &controlplane.UpdateWorkerScheduleInput{
		FleetID:  w.registration.FleetID,
		WorkerID: w.registration.WorkerID,
		Sessions: reports,
	})
	if err != nil {
		var notFound *controlplane.WorkerNotFoundError
		if errors.As(err, &notFound) {
			// The fleet no longer knows this worker. Keep beating; an
			// operator has to re-register, but local sessions still drain.
			w.logger.Error().Err(err).Msg("worker no longer known to control plane")
		} else {
			w.logger.Warn().Err(err).Msg("heartbeat failed")
		}
		metrics.UpdateComponent("controlplane", false, err.Error())
		return 0
	}
	metrics.UpdateComponent("controlplane", true, "")

	// Terminal sessions were reported exactly once; forget them now.
	w.forgetSessions(terminal)

	for _, assigned := range out.AssignedSessions {
		w.startSession(ctx, assigned)
	}
	for _, directive := range out.CancelDirectives {
		w.cancelSession(directive)
	}

	return out.UpdateInterval
}

// collectReports snapshots every tracked session plus any stillborn
// failures, and returns the IDs that are terminal in this report.
func (w *Worker) collectReports() ([]controlplane.SessionStateReport, []string) {
	w.sessionsMu.Lock()
	defer w.sessionsMu.Unlock()

	reports := make([]controlplane.SessionStateReport, 0, len(w.sessions)+len(w.stillborn))
	var terminal []string

	for id, sess := range w.sessions {
		snap := sess.Snapshot()
		reports = append(reports, controlplane.SessionStateReport{
			SessionID: snap.SessionID,
			ActionID:  snap.ActionID,
			Status:    string(snap.SessionStatus),
			Progress:  snap.Progress,
			Message:   snap.Message,
		})
		if snap.SessionStatus.IsTerminal() {
			terminal = append(terminal, id)
		}
	}
	for id, report := range w.stillborn {
		reports = append(reports, report)
		terminal = append(terminal, id)
	}
	return reports, terminal
}

// forgetSessions drops sessions whose terminal state has been delivered.
func (w *Worker) forgetSessions(ids []string) {
	w.sessionsMu.Lock()
	defer w.sessionsMu.Unlock()
	for _, id := range ids {
		if sess, ok := w.sessions[id]; ok && sess.Status().IsTerminal() {
			delete(w.sessions, id)
		}
		delete(w.stillborn, id)
	}
}

// cancelSession applies one cancel directive from the control plane.
func (w *Worker) cancelSession(directive types.CancelDirective) {
	w.sessionsMu.Lock()
	sess, ok := w.sessions[directive.SessionID]
	w.sessionsMu.Unlock()

	if !ok {
		w.logger.Warn().
			Str("session_id", directive.SessionID).
			Msg("cancel directive for unknown session")
		return
	}

	if err := sess.Cancel(directive.GraceTime); err != nil {
		// "no action was run" and "already completed" are races with the
		// session's own progress, not agent faults.
		w.logger.Warn().Err(err).
			Str("session_id", directive.SessionID).
			Msg("session cancellation did not take effect")
	}
}

package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rangeworks/drover/pkg/controlplane"
	"github.com/rangeworks/drover/pkg/log"
	"github.com/rangeworks/drover/pkg/osuser"
	"github.com/rangeworks/drover/pkg/session"
	"github.com/rangeworks/drover/pkg/types"
)

// startSession builds the execution engine for an assigned session and
// runs it in the background. Failures before the engine exists are
// recorded as stillborn: the session is reported FAILED once and never
// started.
func (w *Worker) startSession(ctx context.Context, assigned types.AssignedSession) {
	w.sessionsMu.Lock()
	_, running := w.sessions[assigned.SessionID]
	_, failed := w.stillborn[assigned.SessionID]
	w.sessionsMu.Unlock()
	if running || failed {
		// Assignments repeat until the control plane sees our report.
		return
	}

	sess, err := w.buildSession(ctx, assigned)
	if err != nil {
		w.logger.Error().Err(err).
			Str("session_id", assigned.SessionID).
			Msg("failed to build session")
		w.sessionsMu.Lock()
		w.stillborn[assigned.SessionID] = controlplane.SessionStateReport{
			SessionID: assigned.SessionID,
			Status:    string(session.StatusFailed),
			Message:   err.Error(),
		}
		w.sessionsMu.Unlock()
		w.journal(assigned, session.StatusFailed, time.Now().UTC(), nil, err.Error())
		return
	}

	w.sessionsMu.Lock()
	w.sessions[assigned.SessionID] = sess
	w.sessionsMu.Unlock()

	startedAt := time.Now().UTC()
	w.workWg.Add(1)
	go func() {
		defer w.workWg.Done()
		status := sess.Run(w.runCtx, w.executor)
		w.journal(assigned, status, startedAt, sess.Records(), "")
	}()
}

// buildSession assembles the action queue, the job user, the working
// directory, and the log sinks for one assigned session.
func (w *Worker) buildSession(ctx context.Context, assigned types.AssignedSession) (*session.Session, error) {
	// A descriptor carrying an upstream provisioning error vetoes the
	// session outright. A nil configuration keeps logs local only.
	logCfg, err := log.NewConfiguration(assigned.SessionID, assigned.Log)
	if err != nil {
		return nil, err
	}

	details, err := w.fetchJob(ctx, assigned.JobID)
	if err != nil {
		return nil, err
	}

	var releases []func()
	cleanup := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	var user *osuser.SessionUser
	if details.RunAsUser != nil {
		identity, err := w.users.Resolve(ctx, details.RunAsUser)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve job user: %w", err)
		}
		opened, release, err := osuser.Open(w.cfg.Logon, identity)
		if err != nil {
			return nil, fmt.Errorf("failed to open job user session: %w", err)
		}
		user = opened
		releases = append(releases, release)
	}

	workDir := filepath.Join(w.cfg.DataDir, "sessions", assigned.SessionID)
	if err := os.MkdirAll(workDir, 0700); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create session working directory: %w", err)
	}
	releases = append(releases, func() { _ = os.RemoveAll(workDir) })

	var remote io.Writer
	if logCfg != nil && w.cfg.LogSinks != nil {
		sink, closeSink, err := w.cfg.LogSinks.Open(assigned.SessionID, logCfg)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to open session log sink: %w", err)
		}
		if closeSink != nil {
			releases = append(releases, closeSink)
		}
		remote = sink
	}

	logPath := log.SessionLogPath(w.cfg.LogDir, assigned.SessionID)
	releaseLog, err := log.LogSession(logPath, remote, log.Root)
	if err != nil {
		cleanup()
		return nil, err
	}
	releases = append(releases, releaseLog)

	actions, err := session.BuildActions(assigned.Actions, session.ActionDeps{
		Syncer:   w.cfg.Syncer,
		Notifier: w.cfg.Notifier,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	return session.New(session.Config{
		ID:         assigned.SessionID,
		Actions:    actions,
		User:       user,
		WorkingDir: workDir,
		Logger:     log.WithSessionID(assigned.SessionID),
		LogConfig:  logCfg,
		Releases:   releases,
	}), nil
}

// fetchJob retrieves the job entity backing an assigned session.
func (w *Worker) fetchJob(ctx context.Context, jobID string) (*types.JobDetails, error) {
	out, err := w.client.BatchGetJobEntity(ctx, &controlplane.BatchGetJobEntityInput{
		FleetID:  w.registration.FleetID,
		WorkerID: w.registration.WorkerID,
		Identifiers: []controlplane.EntityIdentifier{
			{Kind: "jobDetails", JobID: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job %s: %w", jobID, err)
	}

	for i := range out.Errors {
		if out.Errors[i].Identifier == jobID {
			return nil, &out.Errors[i]
		}
	}
	for i := range out.Entities {
		if out.Entities[i].JobID == jobID {
			details := out.Entities[i]
			if details.SchemaError != "" {
				return nil, fmt.Errorf("job %s failed validation: %s", jobID, details.SchemaError)
			}
			return &details, nil
		}
	}
	return nil, fmt.Errorf("job %s missing from entity response", jobID)
}

// journal persists the session outcome in the local audit journal.
func (w *Worker) journal(assigned types.AssignedSession, status session.Status, startedAt time.Time, records []session.RecordView, message string) {
	rec := &types.SessionRecord{
		SessionID:  assigned.SessionID,
		QueueID:    assigned.QueueID,
		JobID:      assigned.JobID,
		Status:     string(status),
		Message:    message,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	for _, view := range records {
		rec.Actions = append(rec.Actions, types.ActionOutcome{
			ActionID: view.ActionID,
			Kind:     view.Kind,
			Status:   string(view.Status),
			Message:  view.Message,
		})
	}

	if err := w.store.RecordSession(rec); err != nil {
		w.logger.Warn().Err(err).
			Str("session_id", assigned.SessionID).
			Msg("failed to journal session outcome")
	}
}

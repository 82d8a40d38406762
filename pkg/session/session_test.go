package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangeworks/drover/pkg/log"
	"github.com/rangeworks/drover/pkg/types"
)

// fakeAction is a scriptable queue entry for driver tests.
type fakeAction struct {
	id         string
	kind       types.ActionKind
	alwaysRuns bool
	runFn      func(ctx context.Context, env *Env) error
	cancelErr  error

	mu          sync.Mutex
	ran         bool
	cancelCalls int
}

func (a *fakeAction) ID() string             { return a.id }
func (a *fakeAction) Kind() types.ActionKind { return a.kind }
func (a *fakeAction) HumanReadable() string  { return "fake " + a.id }
func (a *fakeAction) AlwaysRuns() bool       { return a.alwaysRuns }

func (a *fakeAction) Run(ctx context.Context, env *Env) error {
	a.mu.Lock()
	a.ran = true
	a.mu.Unlock()
	if a.runFn != nil {
		return a.runFn(ctx, env)
	}
	return nil
}

func (a *fakeAction) Cancel(graceTime time.Duration) error {
	a.mu.Lock()
	a.cancelCalls++
	a.mu.Unlock()
	return a.cancelErr
}

func (a *fakeAction) wasRun() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ran
}

func newTestSession(t *testing.T, actions ...Action) *Session {
	t.Helper()
	return New(Config{
		ID:      "session-test",
		Actions: actions,
		Logger:  zerolog.Nop(),
	})
}

func TestSessionRunsQueueInOrder(t *testing.T) {
	ex := NewExecutor(1)
	defer ex.Stop()

	var order []string
	var mu sync.Mutex
	record := func(id string) func(ctx context.Context, env *Env) error {
		return func(ctx context.Context, env *Env) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}

	s := newTestSession(t,
		&fakeAction{id: "a1", kind: types.ActionKindEnterEnvironment, runFn: record("a1")},
		&fakeAction{id: "a2", kind: types.ActionKindRunTask, runFn: record("a2")},
		&fakeAction{id: "a3", kind: types.ActionKindExitEnvironment, alwaysRuns: true, runFn: record("a3")},
	)

	status := s.Run(context.Background(), ex)

	assert.Equal(t, StatusSucceeded, status)
	assert.Equal(t, []string{"a1", "a2", "a3"}, order)
	for _, rec := range s.Records() {
		assert.Equal(t, ActionSuccess, rec.Status)
	}
	assert.Equal(t, float64(100), s.Snapshot().Progress)
}

func TestSessionSkipsNonCleanupAfterFailure(t *testing.T) {
	ex := NewExecutor(1)
	defer ex.Stop()

	boom := errors.New("task exploded")
	skipped := &fakeAction{id: "a3", kind: types.ActionKindRunTask}
	cleanup := &fakeAction{id: "a4", kind: types.ActionKindExitEnvironment, alwaysRuns: true}

	s := newTestSession(t,
		&fakeAction{id: "a1", kind: types.ActionKindEnterEnvironment},
		&fakeAction{id: "a2", kind: types.ActionKindRunTask, runFn: func(ctx context.Context, env *Env) error {
			return boom
		}},
		skipped,
		cleanup,
	)

	status := s.Run(context.Background(), ex)

	assert.Equal(t, StatusFailed, status)
	assert.False(t, skipped.wasRun())
	assert.True(t, cleanup.wasRun())

	records := s.Records()
	assert.Equal(t, ActionSuccess, records[0].Status)
	assert.Equal(t, ActionFailed, records[1].Status)
	assert.Contains(t, records[1].Message, "task exploded")
	assert.Equal(t, ActionCanceled, records[2].Status)
	assert.Equal(t, "not attempted", records[2].Message)
	assert.Equal(t, ActionSuccess, records[3].Status)
}

func TestSessionCancelBeforeAnyActionStarted(t *testing.T) {
	s := newTestSession(t, &fakeAction{id: "a1", kind: types.ActionKindRunTask})

	err := s.Cancel(time.Second)

	var cancelErr *CancelationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Contains(t, cancelErr.Error(), "no action was run")
}

func TestSessionCancelAfterCompletion(t *testing.T) {
	ex := NewExecutor(1)
	defer ex.Stop()

	s := newTestSession(t, &fakeAction{id: "a1", kind: types.ActionKindRunTask})
	require.Equal(t, StatusSucceeded, s.Run(context.Background(), ex))

	err := s.Cancel(time.Second)

	var cancelErr *CancelationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "a1", cancelErr.ActionID)
	assert.Contains(t, cancelErr.Error(), "already completed as SUCCESS")
}

func TestSessionCancelRunningAction(t *testing.T) {
	ex := NewExecutor(1)
	defer ex.Stop()

	started := make(chan struct{})
	blocking := &fakeAction{id: "a1", kind: types.ActionKindRunTask, runFn: func(ctx context.Context, env *Env) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	follower := &fakeAction{id: "a2", kind: types.ActionKindRunTask}

	s := newTestSession(t, blocking, follower)

	statusCh := make(chan Status, 1)
	go func() { statusCh <- s.Run(context.Background(), ex) }()

	<-started
	require.NoError(t, s.Cancel(time.Second))

	select {
	case status := <-statusCh:
		assert.Equal(t, StatusCanceled, status)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish after cancel")
	}

	records := s.Records()
	assert.Equal(t, ActionCanceled, records[0].Status)
	assert.Equal(t, ActionCanceled, records[1].Status)
	assert.False(t, follower.wasRun())
	blocking.mu.Lock()
	assert.Equal(t, 1, blocking.cancelCalls)
	blocking.mu.Unlock()
}

func TestSessionCancelWrapsExecutionLayerError(t *testing.T) {
	ex := NewExecutor(1)
	defer ex.Stop()

	cause := errors.New("signal refused")
	started := make(chan struct{})
	blocking := &fakeAction{id: "a1", kind: types.ActionKindRunTask, cancelErr: cause,
		runFn: func(ctx context.Context, env *Env) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}}

	s := newTestSession(t, blocking)
	done := make(chan struct{})
	go func() { s.Run(context.Background(), ex); close(done) }()

	<-started
	err := s.Cancel(time.Second)

	var cancelErr *CancelationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "a1", cancelErr.ActionID)
	assert.ErrorIs(t, err, cause)

	<-done
}

func TestSessionProgressMapsIntoActionRange(t *testing.T) {
	ex := NewExecutor(1)
	defer ex.Stop()

	firstReported := make(chan struct{})
	releaseFirst := make(chan struct{})

	first := &fakeAction{id: "a1", kind: types.ActionKindRunTask, runFn: func(ctx context.Context, env *Env) error {
		env.Progress(50, "halfway")
		close(firstReported)
		<-releaseFirst
		return nil
	}}
	second := &fakeAction{id: "a2", kind: types.ActionKindRunTask, runFn: func(ctx context.Context, env *Env) error {
		env.Progress(50, "")
		return errors.New("stop here so progress is not forced to 100")
	}}

	s := newTestSession(t, first, second)
	done := make(chan struct{})
	go func() { s.Run(context.Background(), ex); close(done) }()

	<-firstReported
	snap := s.Snapshot()
	assert.Equal(t, float64(25), snap.Progress)
	assert.Equal(t, "halfway", snap.Message)
	close(releaseFirst)
	<-done

	assert.Equal(t, float64(75), s.Snapshot().Progress)
}

func TestSessionTeardownRunsReleasesInReverse(t *testing.T) {
	ex := NewExecutor(1)
	defer ex.Stop()

	var order []string
	s := New(Config{
		ID:      "session-release",
		Actions: []Action{&fakeAction{id: "a1", kind: types.ActionKindRunTask}},
		Logger:  zerolog.Nop(),
		Releases: []func(){
			func() { order = append(order, "first") },
			func() { order = append(order, "second") },
		},
	})

	s.Run(context.Background(), ex)

	assert.Equal(t, []string{"second", "first"}, order)
}

func TestSessionRunIsNotReentrant(t *testing.T) {
	ex := NewExecutor(1)
	defer ex.Stop()

	action := &fakeAction{id: "a1", kind: types.ActionKindRunTask}
	s := newTestSession(t, action)

	require.Equal(t, StatusSucceeded, s.Run(context.Background(), ex))
	assert.Equal(t, StatusSucceeded, s.Run(context.Background(), ex))

	action.mu.Lock()
	defer action.mu.Unlock()
	assert.True(t, action.ran)
}

func TestSnapshotReflectsCurrentAction(t *testing.T) {
	ex := NewExecutor(1)
	defer ex.Stop()

	s := newTestSession(t,
		&fakeAction{id: "a1", kind: types.ActionKindRunTask},
		&fakeAction{id: "a2", kind: types.ActionKindRunTask},
	)

	snap := s.Snapshot()
	assert.Equal(t, StatusCreated, snap.SessionStatus)
	assert.Empty(t, snap.ActionID)

	s.Run(context.Background(), ex)

	snap = s.Snapshot()
	assert.Equal(t, StatusSucceeded, snap.SessionStatus)
	assert.Equal(t, "a2", snap.ActionID)
	assert.Equal(t, ActionSuccess, snap.ActionStatus)
}

func TestSessionHoldsLogConfiguration(t *testing.T) {
	cfg := &log.Configuration{
		Driver:  log.DriverAWSLogs,
		Options: map[string]string{log.OptionLogGroupName: "fleet-logs"},
	}
	s := New(Config{ID: "s1", Logger: zerolog.Nop(), LogConfig: cfg})

	assert.Same(t, cfg, s.LogConfiguration())

	assert.Nil(t, New(Config{ID: "s2", Logger: zerolog.Nop()}).LogConfiguration())
}

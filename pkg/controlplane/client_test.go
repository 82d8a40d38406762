package controlplane

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAPI returns one scripted result per call, in order, and counts
// calls per operation.
type scriptedAPI struct {
	calls  int
	errs   []error // errs[i] is returned on call i; nil means success
	lastIn any
}

func (s *scriptedAPI) next() error {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) {
		return s.errs[idx]
	}
	return nil
}

func (s *scriptedAPI) CreateWorker(ctx context.Context, in *CreateWorkerInput) (*CreateWorkerOutput, error) {
	s.lastIn = in
	if err := s.next(); err != nil {
		return nil, err
	}
	return &CreateWorkerOutput{WorkerID: "worker-1"}, nil
}

func (s *scriptedAPI) AssumeFleetRoleForWorker(ctx context.Context, in *AssumeFleetRoleInput) (*AssumeFleetRoleOutput, error) {
	s.lastIn = in
	if err := s.next(); err != nil {
		return nil, err
	}
	return &AssumeFleetRoleOutput{
		Credentials: RoleCredentials{
			AccessKeyID:     "AKID",
			SecretAccessKey: "SECRET",
			SessionToken:    "TOKEN",
			Expiration:      time.Now().Add(time.Hour),
		},
	}, nil
}

func (s *scriptedAPI) BatchGetJobEntity(ctx context.Context, in *BatchGetJobEntityInput) (*BatchGetJobEntityOutput, error) {
	s.lastIn = in
	if err := s.next(); err != nil {
		return nil, err
	}
	return &BatchGetJobEntityOutput{}, nil
}

func (s *scriptedAPI) UpdateWorker(ctx context.Context, in *UpdateWorkerInput) (*UpdateWorkerOutput, error) {
	s.lastIn = in
	if err := s.next(); err != nil {
		return nil, err
	}
	return &UpdateWorkerOutput{}, nil
}

func (s *scriptedAPI) UpdateWorkerSchedule(ctx context.Context, in *UpdateWorkerScheduleInput) (*UpdateWorkerScheduleOutput, error) {
	s.lastIn = in
	if err := s.next(); err != nil {
		return nil, err
	}
	return &UpdateWorkerScheduleOutput{UpdateInterval: 15 * time.Second}, nil
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code + " happened"}
}

func newTestClient(api API, sleeps *int) *Client {
	return NewClient(api,
		WithMaxAttempts(5),
		withSleep(func(ctx context.Context, d time.Duration) error {
			*sleeps++
			return nil
		}),
	)
}

// TestRetryThrottlingThenSuccess tests that a throttle is absorbed with
// exactly one sleep and one extra call.
func TestRetryThrottlingThenSuccess(t *testing.T) {
	sleeps := 0
	api := &scriptedAPI{errs: []error{apiError("ThrottlingException"), nil}}
	c := newTestClient(api, &sleeps)

	out, err := c.AssumeFleetRoleForWorker(context.Background(), &AssumeFleetRoleInput{
		FleetID: "fleet-1", WorkerID: "worker-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "AKID", out.Credentials.AccessKeyID)
	assert.Equal(t, 2, api.calls)
	assert.Equal(t, 1, sleeps)
}

// TestRetryInternalServerError tests the other retryable code
func TestRetryInternalServerError(t *testing.T) {
	sleeps := 0
	api := &scriptedAPI{errs: []error{apiError("InternalServerException"), nil}}
	c := newTestClient(api, &sleeps)

	_, err := c.UpdateWorkerSchedule(context.Background(), &UpdateWorkerScheduleInput{
		FleetID: "fleet-1", WorkerID: "worker-1",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
	assert.Equal(t, 1, sleeps)
}

// TestAccessDeniedIsUnrecoverable tests that a non-retryable code fails on
// the first call with the original cause attached.
func TestAccessDeniedIsUnrecoverable(t *testing.T) {
	sleeps := 0
	denied := apiError("AccessDeniedException")
	api := &scriptedAPI{errs: []error{denied}}
	c := newTestClient(api, &sleeps)

	_, err := c.UpdateWorker(context.Background(), &UpdateWorkerInput{
		FleetID: "fleet-1", WorkerID: "worker-1",
	})

	require.Error(t, err)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 0, sleeps)

	var unrec *UnrecoverableError
	require.ErrorAs(t, err, &unrec)
	assert.ErrorIs(t, err, denied)
}

// TestWorkerNotFound tests the distinguished not-found error on a
// worker-scoped call.
func TestWorkerNotFound(t *testing.T) {
	sleeps := 0
	api := &scriptedAPI{errs: []error{apiError("ResourceNotFoundException")}}
	c := newTestClient(api, &sleeps)

	_, err := c.UpdateWorkerSchedule(context.Background(), &UpdateWorkerScheduleInput{
		FleetID: "fleet-1", WorkerID: "worker-1",
	})

	require.Error(t, err)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 0, sleeps)

	var notFound *WorkerNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "worker-1", notFound.WorkerID)
	assert.Equal(t, "fleet-1", notFound.FleetID)
}

// TestNotFoundOnFleetScopedCall tests that not-found downgrades to
// unrecoverable when the call is not scoped to this worker's registration.
func TestNotFoundOnFleetScopedCall(t *testing.T) {
	sleeps := 0
	api := &scriptedAPI{errs: []error{apiError("ResourceNotFoundException")}}
	c := newTestClient(api, &sleeps)

	_, err := c.CreateWorker(context.Background(), &CreateWorkerInput{FleetID: "fleet-1"})

	require.Error(t, err)
	var unrec *UnrecoverableError
	assert.ErrorAs(t, err, &unrec)
	var notFound *WorkerNotFoundError
	assert.False(t, errors.As(err, &notFound))
}

// TestUnstructuredErrorIsUnrecoverable tests that plain errors never retry
func TestUnstructuredErrorIsUnrecoverable(t *testing.T) {
	sleeps := 0
	cause := errors.New("connection reset")
	api := &scriptedAPI{errs: []error{cause}}
	c := newTestClient(api, &sleeps)

	_, err := c.BatchGetJobEntity(context.Background(), &BatchGetJobEntityInput{
		FleetID: "fleet-1", WorkerID: "worker-1",
	})

	require.Error(t, err)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 0, sleeps)
	assert.ErrorIs(t, err, cause)
}

// TestRetriesExhausted tests behavior when every attempt throttles
func TestRetriesExhausted(t *testing.T) {
	sleeps := 0
	api := &scriptedAPI{errs: []error{
		apiError("ThrottlingException"),
		apiError("ThrottlingException"),
		apiError("ThrottlingException"),
		apiError("ThrottlingException"),
		apiError("ThrottlingException"),
	}}
	c := newTestClient(api, &sleeps)

	_, err := c.UpdateWorkerSchedule(context.Background(), &UpdateWorkerScheduleInput{
		FleetID: "fleet-1", WorkerID: "worker-1",
	})

	require.Error(t, err)
	assert.Equal(t, 5, api.calls)
	assert.Equal(t, 5, sleeps)

	var unrec *UnrecoverableError
	assert.ErrorAs(t, err, &unrec)
}

// TestSuccessPassesResponseThrough tests that the response is returned
// unreshaped.
func TestSuccessPassesResponseThrough(t *testing.T) {
	sleeps := 0
	api := &scriptedAPI{}
	c := newTestClient(api, &sleeps)

	out, err := c.UpdateWorkerSchedule(context.Background(), &UpdateWorkerScheduleInput{
		FleetID: "fleet-1", WorkerID: "worker-1",
	})

	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, out.UpdateInterval)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 0, sleeps)
}

// TestClassify tests the data-driven code mapping directly
func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		workerScoped bool
		want         errorClass
	}{
		{"throttling retries", apiError("ThrottlingException"), true, classRetry},
		{"internal error retries", apiError("InternalServerException"), true, classRetry},
		{"not found worker scoped", apiError("ResourceNotFoundException"), true, classNotFound},
		{"not found fleet scoped", apiError("ResourceNotFoundException"), false, classUnrecoverable},
		{"validation error", apiError("ValidationException"), true, classUnrecoverable},
		{"access denied", apiError("AccessDeniedException"), true, classUnrecoverable},
		{"plain error", errors.New("boom"), true, classUnrecoverable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err, tt.workerScoped))
		})
	}
}

package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rangeworks/drover/pkg/backoff"
	"github.com/rangeworks/drover/pkg/log"
	"github.com/rangeworks/drover/pkg/metrics"
)

const defaultMaxAttempts = 10

// sleeper pauses between retry attempts; injectable for tests.
type sleeper func(ctx context.Context, d time.Duration) error

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client wraps the control-plane API with a uniform retry loop: transient
// service faults are absorbed with full-jitter backoff, a vanished worker
// registration surfaces as WorkerNotFoundError, and everything else is
// wrapped unrecoverable. Successful responses pass through unchanged.
type Client struct {
	api         API
	policy      *backoff.Policy
	maxAttempts int
	sleep       sleeper
	logger      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBackoffPolicy replaces the default full-jitter policy.
func WithBackoffPolicy(p *backoff.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithMaxAttempts bounds the retry loop.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// withSleep replaces the inter-attempt sleep; tests use this to count
// sleeps without waiting.
func withSleep(s sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// NewClient creates a retrying control-plane client around a raw API.
func NewClient(api API, opts ...Option) *Client {
	c := &Client{
		api:         api,
		policy:      backoff.Full(),
		maxAttempts: defaultMaxAttempts,
		sleep:       ctxSleep,
		logger:      log.WithComponent("controlplane"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// withRetry runs fn up to maxAttempts times, sleeping per the backoff
// policy between retryable failures. Exactly one remote call is made per
// attempt.
func withRetry[T any](ctx context.Context, c *Client, op string, workerScoped bool, fleetID, workerID string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			metrics.ControlPlaneCalls.WithLabelValues(op, "success").Inc()
			return out, nil
		}
		lastErr = err

		switch classify(err, workerScoped) {
		case classRetry:
			metrics.ControlPlaneCalls.WithLabelValues(op, "retry").Inc()
			delay := c.policy.Delay(attempt)
			c.logger.Warn().
				Str("operation", op).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Err(err).
				Msg("retryable control-plane failure")
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				return zero, fmt.Errorf("%s interrupted during backoff: %w", op, sleepErr)
			}
		case classNotFound:
			metrics.ControlPlaneCalls.WithLabelValues(op, "not_found").Inc()
			return zero, &WorkerNotFoundError{FleetID: fleetID, WorkerID: workerID}
		default:
			metrics.ControlPlaneCalls.WithLabelValues(op, "unrecoverable").Inc()
			return zero, &UnrecoverableError{Operation: op, Cause: err}
		}
	}

	metrics.ControlPlaneCalls.WithLabelValues(op, "exhausted").Inc()
	return zero, &UnrecoverableError{
		Operation: op,
		Cause:     fmt.Errorf("retries exhausted after %d attempts: %w", c.maxAttempts, lastErr),
	}
}

// CreateWorker registers this host in the fleet. Fleet-scoped: a
// not-found here means the fleet itself is gone, which is unrecoverable.
func (c *Client) CreateWorker(ctx context.Context, in *CreateWorkerInput) (*CreateWorkerOutput, error) {
	return withRetry(ctx, c, "CreateWorker", false, in.FleetID, "", func(ctx context.Context) (*CreateWorkerOutput, error) {
		return c.api.CreateWorker(ctx, in)
	})
}

// AssumeFleetRoleForWorker fetches fresh rotatable worker credentials.
func (c *Client) AssumeFleetRoleForWorker(ctx context.Context, in *AssumeFleetRoleInput) (*AssumeFleetRoleOutput, error) {
	return withRetry(ctx, c, "AssumeFleetRoleForWorker", true, in.FleetID, in.WorkerID, func(ctx context.Context) (*AssumeFleetRoleOutput, error) {
		return c.api.AssumeFleetRoleForWorker(ctx, in)
	})
}

// BatchGetJobEntity fetches job entity documents for assigned work.
func (c *Client) BatchGetJobEntity(ctx context.Context, in *BatchGetJobEntityInput) (*BatchGetJobEntityOutput, error) {
	return withRetry(ctx, c, "BatchGetJobEntity", true, in.FleetID, in.WorkerID, func(ctx context.Context) (*BatchGetJobEntityOutput, error) {
		return c.api.BatchGetJobEntity(ctx, in)
	})
}

// UpdateWorker reports worker lifecycle status and capabilities.
func (c *Client) UpdateWorker(ctx context.Context, in *UpdateWorkerInput) (*UpdateWorkerOutput, error) {
	return withRetry(ctx, c, "UpdateWorker", true, in.FleetID, in.WorkerID, func(ctx context.Context) (*UpdateWorkerOutput, error) {
		return c.api.UpdateWorker(ctx, in)
	})
}

// UpdateWorkerSchedule heartbeats session state and receives assignments.
func (c *Client) UpdateWorkerSchedule(ctx context.Context, in *UpdateWorkerScheduleInput) (*UpdateWorkerScheduleOutput, error) {
	return withRetry(ctx, c, "UpdateWorkerSchedule", true, in.FleetID, in.WorkerID, func(ctx context.Context) (*UpdateWorkerScheduleOutput, error) {
		return c.api.UpdateWorkerSchedule(ctx, in)
	})
}

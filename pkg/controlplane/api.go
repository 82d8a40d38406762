package controlplane

import (
	"context"
	"time"

	"github.com/rangeworks/drover/pkg/capabilities"
	"github.com/rangeworks/drover/pkg/types"
)

// RoleCredentials is the rotatable credential set the control plane vends
// for the worker's fleet role.
type RoleCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// CreateWorkerInput registers a new worker in a fleet. ClientToken makes
// the registration idempotent across agent retries.
type CreateWorkerInput struct {
	FleetID        string
	ClientToken    string
	HostProperties map[string]string
}

// CreateWorkerOutput carries the control-plane-assigned worker ID.
type CreateWorkerOutput struct {
	WorkerID string
}

// AssumeFleetRoleInput requests fresh worker credentials.
type AssumeFleetRoleInput struct {
	FleetID  string
	WorkerID string
}

// AssumeFleetRoleOutput carries the vended credentials.
type AssumeFleetRoleOutput struct {
	Credentials RoleCredentials
}

// EntityIdentifier names one job entity to fetch in a batch.
type EntityIdentifier struct {
	Kind  string // "jobDetails" is the only kind this agent requests
	JobID string
}

// BatchGetJobEntityInput fetches entity documents for assigned work.
type BatchGetJobEntityInput struct {
	FleetID     string
	WorkerID    string
	Identifiers []EntityIdentifier
}

// BatchGetJobEntityOutput carries entity documents and per-identifier
// errors; an identifier appears in exactly one of the two lists.
type BatchGetJobEntityOutput struct {
	Entities []types.JobDetails
	Errors   []types.EntityError
}

// UpdateWorkerInput reports worker lifecycle status and capabilities.
type UpdateWorkerInput struct {
	FleetID    string
	WorkerID   string
	Status     types.WorkerStatus
	Amounts    []capabilities.AmountCapability
	Attributes []capabilities.AttributeCapability
}

// UpdateWorkerOutput carries the worker-level log descriptor, when the
// control plane provisions one.
type UpdateWorkerOutput struct {
	Log types.LogDescriptor
}

// SessionStateReport is the per-session progress slice of a heartbeat.
type SessionStateReport struct {
	SessionID string
	ActionID  string
	Status    string
	Progress  float64 // job-overall percentage, already normalized
	Message   string
}

// UpdateWorkerScheduleInput is the heartbeat: reported session state in,
// assigned work and cancellations out.
type UpdateWorkerScheduleInput struct {
	FleetID  string
	WorkerID string
	Sessions []SessionStateReport
}

// UpdateWorkerScheduleOutput carries newly assigned sessions, cancel
// directives, and the interval until the next heartbeat.
type UpdateWorkerScheduleOutput struct {
	AssignedSessions []types.AssignedSession
	CancelDirectives []types.CancelDirective
	UpdateInterval   time.Duration
}

// API is the consumed control-plane RPC boundary. Implementations perform
// one remote call per method invocation and surface the service's
// structured errors unchanged; retry and classification live in Client.
type API interface {
	CreateWorker(ctx context.Context, in *CreateWorkerInput) (*CreateWorkerOutput, error)
	AssumeFleetRoleForWorker(ctx context.Context, in *AssumeFleetRoleInput) (*AssumeFleetRoleOutput, error)
	BatchGetJobEntity(ctx context.Context, in *BatchGetJobEntityInput) (*BatchGetJobEntityOutput, error)
	UpdateWorker(ctx context.Context, in *UpdateWorkerInput) (*UpdateWorkerOutput, error)
	UpdateWorkerSchedule(ctx context.Context, in *UpdateWorkerScheduleInput) (*UpdateWorkerScheduleOutput, error)
}

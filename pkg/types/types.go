package types

import (
	"time"
)

// WorkerStatus represents the lifecycle state of the agent as reported
// to the control plane.
type WorkerStatus string

const (
	WorkerStatusStarted       WorkerStatus = "STARTED"
	WorkerStatusStopping      WorkerStatus = "STOPPING"
	WorkerStatusStopped       WorkerStatus = "STOPPED"
	WorkerStatusNotCompatible WorkerStatus = "NOT_COMPATIBLE"
)

// Registration is the persisted identity of this agent within a fleet.
// The worker ID is assigned by the control plane on first registration
// and must survive agent restarts.
type Registration struct {
	FleetID      string    `json:"fleet_id"`
	WorkerID     string    `json:"worker_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ActionKind identifies one kind of session action.
type ActionKind string

const (
	ActionKindSyncInputAttachments  ActionKind = "SYNC_INPUT_JOB_ATTACHMENTS"
	ActionKindEnterEnvironment      ActionKind = "ENV_ENTER"
	ActionKindRunTask               ActionKind = "TASK_RUN"
	ActionKindExitEnvironment       ActionKind = "ENV_EXIT"
	ActionKindSyncOutputAttachments ActionKind = "SYNC_OUTPUT_JOB_ATTACHMENTS"
	ActionKindNotify                ActionKind = "NOTIFY"
)

// ActionDescriptor is one scheduled action inside an assigned session,
// as delivered by the control plane.
type ActionDescriptor struct {
	ID            string
	Kind          ActionKind
	EnvironmentID string            // ENV_ENTER / ENV_EXIT
	StepID        string            // TASK_RUN
	TaskID        string            // TASK_RUN
	Parameters    map[string]string // task parameters, notify payload
}

// AssignedSession is one unit of scheduled work delivered by the control
// plane during a heartbeat: a job, an ordered action queue, and the log
// destination for the session.
type AssignedSession struct {
	SessionID string
	QueueID   string
	JobID     string
	Actions   []ActionDescriptor
	Log       LogDescriptor
}

// CancelDirective asks the agent to cancel the named action, optionally
// bounded by a grace period before escalation.
type CancelDirective struct {
	SessionID string
	ActionID  string
	GraceTime time.Duration
}

// LogDescriptor is the remote-provided description of where session logs
// should be delivered. An Error set by the control plane means log
// provisioning failed upstream and the session must not start.
type LogDescriptor struct {
	Driver  string
	Options map[string]string
	Error   string
}

// JobRunAsUser names the OS identity jobs must execute under, and the
// secret holding its login password.
type JobRunAsUser struct {
	User      string
	Group     string
	SecretRef string
}

// JobDetails is the job entity the agent fetches before building a
// session for it.
type JobDetails struct {
	JobID       string
	QueueID     string
	RunAsUser   *JobRunAsUser
	Parameters  map[string]string
	SchemaError string // non-empty when the entity failed shape validation
}

// SessionUser is a resolved OS login: the identity job processes are
// impersonated as. Password is short-lived and must never be logged.
type SessionUser struct {
	User     string
	Group    string
	Password string
}

// ActionOutcome is the persisted result of one action in a finished
// session.
type ActionOutcome struct {
	ActionID string     `json:"action_id"`
	Kind     ActionKind `json:"kind"`
	Status   string     `json:"status"`
	Message  string     `json:"message,omitempty"`
}

// SessionRecord is the journal entry persisted for every session the
// agent ran. The journal survives restarts so an operator can audit what
// a worker executed and how it ended.
type SessionRecord struct {
	SessionID  string          `json:"session_id"`
	QueueID    string          `json:"queue_id"`
	JobID      string          `json:"job_id"`
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Actions    []ActionOutcome `json:"actions,omitempty"`
}

// EntityError is a per-identifier failure from a batched entity fetch.
type EntityError struct {
	Identifier string
	Code       string
	Message    string
}

func (e *EntityError) Error() string {
	return e.Code + ": " + e.Message + " (" + e.Identifier + ")"
}

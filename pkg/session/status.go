package session

// ActionStatus is the lifecycle state of one action.
type ActionStatus string

const (
	ActionPending  ActionStatus = "PENDING"
	ActionRunning  ActionStatus = "RUNNING"
	ActionSuccess  ActionStatus = "SUCCESS"
	ActionFailed   ActionStatus = "FAILED"
	ActionCanceled ActionStatus = "CANCELED"
)

// IsTerminal reports whether the action status is final. Terminal
// statuses are set exactly once and never left.
func (s ActionStatus) IsTerminal() bool {
	switch s {
	case ActionSuccess, ActionFailed, ActionCanceled:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
)

// IsTerminal reports whether the session status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

package controlplane

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// errorClass is the retry disposition for one structured error code.
type errorClass int

const (
	classUnrecoverable errorClass = iota
	classRetry
	classNotFound
)

// codeClasses is the data-driven retry policy: structured error code to
// disposition. Codes absent from the map are unrecoverable.
var codeClasses = map[string]errorClass{
	"ThrottlingException":       classRetry,
	"InternalServerException":   classRetry,
	"ResourceNotFoundException": classNotFound,
}

// WorkerNotFoundError means the worker's own registration no longer exists
// on the control plane. Callers re-register instead of retrying.
type WorkerNotFoundError struct {
	FleetID  string
	WorkerID string
}

func (e *WorkerNotFoundError) Error() string {
	return fmt.Sprintf("worker %s is not registered in fleet %s", e.WorkerID, e.FleetID)
}

// UnrecoverableError wraps a remote failure that retrying cannot fix.
type UnrecoverableError struct {
	Operation string
	Cause     error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("%s failed unrecoverably: %v", e.Operation, e.Cause)
}

func (e *UnrecoverableError) Unwrap() error {
	return e.Cause
}

// classify maps a remote call failure to its retry disposition. Only the
// service's structured error type participates in classification; any
// other failure is unrecoverable. A not-found code downgrades to
// unrecoverable on calls that are not scoped to this worker's own
// registration.
func classify(err error, workerScoped bool) errorClass {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return classUnrecoverable
	}
	class, ok := codeClasses[apiErr.ErrorCode()]
	if !ok {
		return classUnrecoverable
	}
	if class == classNotFound && !workerScoped {
		return classUnrecoverable
	}
	return class
}

package health

import (
	"context"
	"time"
)

// CheckType represents the type of compatibility check
type CheckType string

const (
	CheckTypeExec CheckType = "exec"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeDisk CheckType = "disk"
)

// Result represents the outcome of a compatibility check
type Result struct {
	Compatible bool
	Message    string
	CheckedAt  time.Time
	Duration   time.Duration
}

// Checker is one host prerequisite the agent verifies before it reports
// itself as available for work.
type Checker interface {
	// Check performs the compatibility check and returns the result
	Check(ctx context.Context) Result

	// Name identifies the prerequisite in reports and logs
	Name() string

	// Type returns the type of compatibility check
	Type() CheckType
}

// Failure names one prerequisite that did not hold.
type Failure struct {
	Name    string
	Message string
}

// Gate runs every checker and collects the failures. An empty failure
// list means the host is compatible; anything else and the worker must
// report NOT_COMPATIBLE instead of starting.
func Gate(ctx context.Context, checkers []Checker) []Failure {
	var failures []Failure
	for _, c := range checkers {
		result := c.Check(ctx)
		if !result.Compatible {
			failures = append(failures, Failure{Name: c.Name(), Message: result.Message})
		}
	}
	return failures
}

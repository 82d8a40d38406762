package log

import (
	"fmt"

	"github.com/rangeworks/drover/pkg/types"
)

// Log drivers the agent can map a remote descriptor onto.
const (
	DriverAWSLogs = "awslogs"
	DriverLocal   = "local"
)

// Options required by the awslogs driver.
const (
	OptionLogGroupName  = "logGroupName"
	OptionLogStreamName = "logStreamName"
)

// ProvisioningError means the control plane reported that it failed to
// provision the session's log destination. Sessions must not start when
// construction yields one.
type ProvisioningError struct {
	SessionID string
	Message   string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("log provisioning failed for session %s: %s", e.SessionID, e.Message)
}

// Configuration is a validated session log destination.
type Configuration struct {
	Driver  string
	Options map[string]string
}

// NewConfiguration maps a remote log descriptor onto a supported driver.
//
// A descriptor carrying an explicit error always fails with a
// ProvisioningError. A descriptor naming no driver, an unsupported driver,
// or a supported driver with required options missing yields (nil, nil):
// the session runs without log streaming rather than failing.
func NewConfiguration(sessionID string, desc types.LogDescriptor) (*Configuration, error) {
	if desc.Error != "" {
		return nil, &ProvisioningError{SessionID: sessionID, Message: desc.Error}
	}

	switch desc.Driver {
	case DriverAWSLogs:
		if desc.Options[OptionLogGroupName] == "" || desc.Options[OptionLogStreamName] == "" {
			Logger.Warn().
				Str("session_id", sessionID).
				Str("driver", desc.Driver).
				Msg("log descriptor missing required options, session logs stay local only")
			return nil, nil
		}
	case DriverLocal:
		// no required options
	default:
		Logger.Warn().
			Str("session_id", sessionID).
			Str("driver", desc.Driver).
			Msg("unsupported log driver, session logs stay local only")
		return nil, nil
	}

	opts := make(map[string]string, len(desc.Options))
	for k, v := range desc.Options {
		opts[k] = v
	}
	return &Configuration{Driver: desc.Driver, Options: opts}, nil
}

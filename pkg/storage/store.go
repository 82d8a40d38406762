package storage

import (
	"errors"

	"github.com/rangeworks/drover/pkg/types"
)

// ErrNotFound is returned when the requested key has never been stored.
var ErrNotFound = errors.New("not found")

// Store defines the interface for persistent agent state.
// This is implemented by BoltDB-backed storage.
type Store interface {
	// Registration
	SaveRegistration(reg *types.Registration) error
	GetRegistration() (*types.Registration, error)
	DeleteRegistration() error

	// Session journal
	RecordSession(rec *types.SessionRecord) error
	GetSession(id string) (*types.SessionRecord, error)
	ListSessions() ([]*types.SessionRecord, error)
	PruneSessions(keep int) error

	// Utility
	Close() error
}

package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/rangeworks/drover/pkg/controlplane"
)

// Store holds the worker's own rotatable fleet-role credentials behind a
// mutex. Exactly one Store exists per agent process; every outbound
// signed request reads through Frozen. Only the refresher mutates it.
//
// A freshly constructed Store is already expired, which forces the first
// refresh before any signed call goes out.
type Store struct {
	mu    sync.Mutex
	creds aws.Credentials
	set   bool
}

// NewStore creates an empty, expired credentials store.
func NewStore() *Store {
	return &Store{}
}

// Set atomically replaces the held credentials.
func (s *Store) Set(creds aws.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.set = true
}

// SetFromRole replaces the held credentials from a control-plane vended
// credential set.
func (s *Store) SetFromRole(rc controlplane.RoleCredentials) {
	s.Set(aws.Credentials{
		AccessKeyID:     rc.AccessKeyID,
		SecretAccessKey: rc.SecretAccessKey,
		SessionToken:    rc.SessionToken,
		CanExpire:       true,
		Expires:         rc.Expiration,
		Source:          "AssumeFleetRoleForWorker",
	})
}

// Frozen returns an immutable snapshot safe to hand to a concurrent
// signer. Blocks only for lock acquisition.
func (s *Store) Frozen() aws.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// Expired reports whether the held credentials are unusable at the given
// time. A never-set store is always expired.
func (s *Store) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return true
	}
	if !s.creds.CanExpire {
		return false
	}
	return !now.Before(s.creds.Expires)
}

// Retrieve implements aws.CredentialsProvider so the store can sign AWS
// SDK clients (the secret-store client, the remote log sink) directly.
func (s *Store) Retrieve(ctx context.Context) (aws.Credentials, error) {
	return s.Frozen(), nil
}

package credentials

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangeworks/drover/pkg/controlplane"
)

// TestFreshStoreIsExpired tests that a never-set store forces a refresh
func TestFreshStoreIsExpired(t *testing.T) {
	s := NewStore()
	assert.True(t, s.Expired(time.Now()))
}

// TestSetAndFrozen tests the atomic replace and snapshot read
func TestSetAndFrozen(t *testing.T) {
	s := NewStore()
	expiry := time.Now().Add(time.Hour)

	s.SetFromRole(controlplane.RoleCredentials{
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		SessionToken:    "TOKEN",
		Expiration:      expiry,
	})

	frozen := s.Frozen()
	assert.Equal(t, "AKID", frozen.AccessKeyID)
	assert.Equal(t, "SECRET", frozen.SecretAccessKey)
	assert.Equal(t, "TOKEN", frozen.SessionToken)
	assert.True(t, frozen.CanExpire)
	assert.Equal(t, expiry, frozen.Expires)

	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(expiry))
	assert.True(t, s.Expired(expiry.Add(time.Minute)))
}

// TestFrozenIsSnapshot tests that a snapshot does not track later sets
func TestFrozenIsSnapshot(t *testing.T) {
	s := NewStore()
	s.Set(aws.Credentials{AccessKeyID: "FIRST"})

	frozen := s.Frozen()
	s.Set(aws.Credentials{AccessKeyID: "SECOND"})

	assert.Equal(t, "FIRST", frozen.AccessKeyID)
	assert.Equal(t, "SECOND", s.Frozen().AccessKeyID)
}

// TestStoresDoNotShareState tests that independently constructed stores
// are independent instances.
func TestStoresDoNotShareState(t *testing.T) {
	a := NewStore()
	b := NewStore()
	require.NotSame(t, a, b)

	a.Set(aws.Credentials{AccessKeyID: "A"})
	assert.True(t, b.Expired(time.Now()), "setting one store must not touch the other")
	assert.Empty(t, b.Frozen().AccessKeyID)
}

// TestRetrieveImplementsProvider tests the aws.CredentialsProvider shape
func TestRetrieveImplementsProvider(t *testing.T) {
	s := NewStore()
	s.Set(aws.Credentials{AccessKeyID: "AKID"})

	var provider aws.CredentialsProvider = s
	creds, err := provider.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
}

// TestStoreConcurrentAccess tests snapshot reads racing a writer
func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set(aws.Credentials{AccessKeyID: "AKID", CanExpire: true, Expires: time.Now()})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Frozen()
				_ = s.Expired(time.Now())
			}
		}()
	}
	wg.Wait()
}

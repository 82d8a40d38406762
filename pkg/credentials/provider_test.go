package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapProviderFallsBackWhenStoreEmpty(t *testing.T) {
	fallback := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{AccessKeyID: "HOST"}, nil
	})
	p := &BootstrapProvider{
		store:    NewStore(),
		fallback: fallback,
		now:      time.Now,
	}

	creds, err := p.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HOST", creds.AccessKeyID)
}

func TestBootstrapProviderPrefersLiveStore(t *testing.T) {
	store := NewStore()
	store.Set(aws.Credentials{
		AccessKeyID: "FLEET",
		CanExpire:   true,
		Expires:     time.Now().Add(time.Hour),
	})

	p := &BootstrapProvider{
		store: store,
		fallback: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			t.Fatal("fallback must not be consulted while the store is live")
			return aws.Credentials{}, nil
		}),
		now: time.Now,
	}

	creds, err := p.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "FLEET", creds.AccessKeyID)
}

func TestBootstrapProviderFallsBackAfterExpiry(t *testing.T) {
	store := NewStore()
	store.Set(aws.Credentials{
		AccessKeyID: "FLEET",
		CanExpire:   true,
		Expires:     time.Now().Add(-time.Minute),
	})

	p := &BootstrapProvider{
		store: store,
		fallback: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "HOST"}, nil
		}),
		now: time.Now,
	}

	creds, err := p.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HOST", creds.AccessKeyID)
}

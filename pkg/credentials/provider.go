package credentials

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// BootstrapProvider signs control-plane requests before and after the
// fleet role has been assumed. Until the store holds live credentials
// (first start, or after expiry with no refresh yet) the host-level
// fallback chain signs; once the store is populated it takes over.
type BootstrapProvider struct {
	store    *Store
	fallback aws.CredentialsProvider
	now      func() time.Time
}

// NewBootstrapProvider builds the provider from the worker store and the
// host's default AWS credential chain.
func NewBootstrapProvider(ctx context.Context, store *Store, region string) (*BootstrapProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &BootstrapProvider{
		store:    store,
		fallback: cfg.Credentials,
		now:      time.Now,
	}, nil
}

// Retrieve implements aws.CredentialsProvider.
func (p *BootstrapProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	if !p.store.Expired(p.now()) {
		return p.store.Retrieve(ctx)
	}
	return p.fallback.Retrieve(ctx)
}

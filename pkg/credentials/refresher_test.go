package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangeworks/drover/pkg/controlplane"
)

type fakeFleetAPI struct {
	calls int
	creds controlplane.RoleCredentials
	err   error
}

func (f *fakeFleetAPI) CreateWorker(ctx context.Context, in *controlplane.CreateWorkerInput) (*controlplane.CreateWorkerOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "ValidationException"}
}

func (f *fakeFleetAPI) AssumeFleetRoleForWorker(ctx context.Context, in *controlplane.AssumeFleetRoleInput) (*controlplane.AssumeFleetRoleOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &controlplane.AssumeFleetRoleOutput{Credentials: f.creds}, nil
}

func (f *fakeFleetAPI) BatchGetJobEntity(ctx context.Context, in *controlplane.BatchGetJobEntityInput) (*controlplane.BatchGetJobEntityOutput, error) {
	return &controlplane.BatchGetJobEntityOutput{}, nil
}

func (f *fakeFleetAPI) UpdateWorker(ctx context.Context, in *controlplane.UpdateWorkerInput) (*controlplane.UpdateWorkerOutput, error) {
	return &controlplane.UpdateWorkerOutput{}, nil
}

func (f *fakeFleetAPI) UpdateWorkerSchedule(ctx context.Context, in *controlplane.UpdateWorkerScheduleInput) (*controlplane.UpdateWorkerScheduleOutput, error) {
	return &controlplane.UpdateWorkerScheduleOutput{}, nil
}

// TestRefreshNowPopulatesStore tests one refresh round trip
func TestRefreshNowPopulatesStore(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	api := &fakeFleetAPI{creds: controlplane.RoleCredentials{
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		SessionToken:    "TOKEN",
		Expiration:      expiry,
	}}

	store := NewStore()
	require.True(t, store.Expired(time.Now()))

	r := NewRefresher(store, controlplane.NewClient(api), "fleet-1", "worker-1")
	err := r.RefreshNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, api.calls)
	assert.False(t, store.Expired(time.Now()))
	assert.Equal(t, "AKID", store.Frozen().AccessKeyID)
}

// TestRefreshNowFailureLeavesStore tests that a failed refresh does not
// clobber the previously held credentials.
func TestRefreshNowFailureLeavesStore(t *testing.T) {
	api := &fakeFleetAPI{err: &smithy.GenericAPIError{Code: "AccessDeniedException"}}

	store := NewStore()
	store.SetFromRole(controlplane.RoleCredentials{
		AccessKeyID: "OLD",
		Expiration:  time.Now().Add(time.Hour),
	})

	r := NewRefresher(store, controlplane.NewClient(api), "fleet-1", "worker-1")
	err := r.RefreshNow(context.Background())

	require.Error(t, err)
	assert.Equal(t, "OLD", store.Frozen().AccessKeyID)
}

// TestRefresherStartStop tests loop lifecycle
func TestRefresherStartStop(t *testing.T) {
	api := &fakeFleetAPI{creds: controlplane.RoleCredentials{
		Expiration: time.Now().Add(time.Hour),
	}}
	store := NewStore()

	r := NewRefresher(store, controlplane.NewClient(api), "fleet-1", "worker-1")
	r.Start(context.Background())
	r.Stop() // must not hang
}

package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rangeworks/drover/pkg/controlplane"
	"github.com/rangeworks/drover/pkg/log"
	"github.com/rangeworks/drover/pkg/metrics"
)

const (
	// refreshCheckInterval is how often the refresher re-evaluates expiry.
	refreshCheckInterval = 30 * time.Second

	// expiryWindow refreshes credentials this long before they expire so
	// in-flight requests never sign with dead credentials.
	expiryWindow = 5 * time.Minute
)

// Refresher keeps the worker credentials store populated by calling
// AssumeFleetRoleForWorker before the held credentials expire. The store
// lock is never held across the remote call.
type Refresher struct {
	store    *Store
	client   *controlplane.Client
	fleetID  string
	workerID string

	stopCh chan struct{}
	doneCh chan struct{}
	logger zerolog.Logger
}

// NewRefresher creates a refresher bound to one store and one worker
// registration.
func NewRefresher(store *Store, client *controlplane.Client, fleetID, workerID string) *Refresher {
	return &Refresher{
		store:    store,
		client:   client,
		fleetID:  fleetID,
		workerID: workerID,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   log.WithComponent("credentials"),
	}
}

// RefreshNow fetches fresh credentials unconditionally. Called once at
// startup before any signed request, and by the loop near expiry.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	out, err := r.client.AssumeFleetRoleForWorker(ctx, &controlplane.AssumeFleetRoleInput{
		FleetID:  r.fleetID,
		WorkerID: r.workerID,
	})
	if err != nil {
		metrics.CredentialRefreshes.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to refresh worker credentials: %w", err)
	}

	r.store.SetFromRole(out.Credentials)
	metrics.CredentialRefreshes.WithLabelValues("success").Inc()
	r.logger.Debug().
		Time("expires", out.Credentials.Expiration).
		Msg("worker credentials rotated")
	return nil
}

// Start begins the refresh loop.
func (r *Refresher) Start(ctx context.Context) {
	go r.loop(ctx)
}

// Stop stops the refresh loop and waits for it to exit.
func (r *Refresher) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(refreshCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !r.store.Expired(time.Now().Add(expiryWindow)) {
				continue
			}
			if err := r.RefreshNow(ctx); err != nil {
				metrics.UpdateComponent("credentials", false, err.Error())
				r.logger.Error().Err(err).Msg("credential refresh failed")
				continue
			}
			metrics.UpdateComponent("credentials", true, "")
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

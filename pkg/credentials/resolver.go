package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rangeworks/drover/pkg/log"
	"github.com/rangeworks/drover/pkg/metrics"
	"github.com/rangeworks/drover/pkg/types"
)

// RetentionWindow is how long a fetched job-user secret stays valid in the
// cache. Entries older than this are re-fetched even if hot: the secret
// may have been rotated or revoked upstream.
const RetentionWindow = 12 * time.Hour

// SecretStore fetches a login secret blob by reference. Implementations
// do not retry; the control-plane client underneath them already does.
type SecretStore interface {
	GetSecret(ctx context.Context, ref string) ([]byte, error)
}

// loginSecret is the expected shape of the secret blob.
type loginSecret struct {
	Password string `json:"password"`
}

type cacheEntry struct {
	user          types.SessionUser
	lastFetchedAt time.Time
	lastAccessed  time.Time
}

// JobUserResolver resolves (user, group, secret reference) triples into OS
// session users, caching results to minimize secret-store traffic. The
// cache is owned by the resolver instance; independent resolvers never
// share entries.
type JobUserResolver struct {
	secrets SecretStore

	mu    sync.Mutex
	cache map[string]*cacheEntry

	now    func() time.Time
	logger zerolog.Logger
}

// NewJobUserResolver creates a resolver over the given secret store.
func NewJobUserResolver(secrets SecretStore) *JobUserResolver {
	return &JobUserResolver{
		secrets: secrets,
		cache:   make(map[string]*cacheEntry),
		now:     time.Now,
		logger:  log.WithComponent("job-user"),
	}
}

// cacheKey is a stable composite of user identity and secret reference.
func cacheKey(runAs *types.JobRunAsUser) string {
	return runAs.User + "\x00" + runAs.SecretRef
}

// Resolve returns the OS session user for the given job identity. Cache
// hits within the retention window never contact the secret store. Secret
// store failures propagate to the caller unwrapped by any retry.
func (r *JobUserResolver) Resolve(ctx context.Context, runAs *types.JobRunAsUser) (types.SessionUser, error) {
	key := cacheKey(runAs)
	now := r.now()

	r.mu.Lock()
	entry, ok := r.cache[key]
	if ok && now.Sub(entry.lastFetchedAt) <= RetentionWindow {
		entry.lastAccessed = now
		user := entry.user
		r.mu.Unlock()
		metrics.JobUserCacheLookups.WithLabelValues("hit").Inc()
		return user, nil
	}
	r.mu.Unlock()

	if ok {
		metrics.JobUserCacheLookups.WithLabelValues("stale").Inc()
	} else {
		metrics.JobUserCacheLookups.WithLabelValues("miss").Inc()
	}

	// Fetch outside the lock; secret-store calls can block.
	blob, err := r.secrets.GetSecret(ctx, runAs.SecretRef)
	if err != nil {
		return types.SessionUser{}, err
	}

	var secret loginSecret
	if err := json.Unmarshal(blob, &secret); err != nil {
		return types.SessionUser{}, fmt.Errorf("malformed login secret %s: %w", runAs.SecretRef, err)
	}

	user := types.SessionUser{
		User:     runAs.User,
		Group:    runAs.Group,
		Password: secret.Password,
	}

	now = r.now()
	r.mu.Lock()
	r.cache[key] = &cacheEntry{
		user:          user,
		lastFetchedAt: now,
		lastAccessed:  now,
	}
	r.mu.Unlock()

	r.logger.Debug().Str("user", runAs.User).Msg("job user resolved from secret store")
	return user, nil
}

// PruneCache evicts every entry whose fetch age exceeds the retention
// window, regardless of how recently it was accessed. Returns the number
// of entries removed.
func (r *JobUserResolver) PruneCache() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, entry := range r.cache {
		if now.Sub(entry.lastFetchedAt) > RetentionWindow {
			delete(r.cache, key)
			removed++
		}
	}
	return removed
}

// CacheLen returns the number of live cache entries.
func (r *JobUserResolver) CacheLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

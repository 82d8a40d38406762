/*
Package credentials manages both credential lifecycles the agent depends
on: the worker's own rotatable fleet-role credentials, and the per-job OS
login secrets used for user impersonation.

# Worker credentials

	┌──────────────────── WORKER CREDENTIALS ───────────────────┐
	│                                                            │
	│  ┌──────────────┐   AssumeFleetRoleForWorker   ┌────────┐ │
	│  │  Refresher   │ ────────────────────────────►│ control│ │
	│  │  (loop)      │ ◄──── rotatable credentials ─│ plane  │ │
	│  └──────┬───────┘                              └────────┘ │
	│         │ Set (under lock)                                 │
	│  ┌──────▼───────┐                                          │
	│  │    Store     │── Frozen() ──► immutable snapshot for    │
	│  │ (one per     │                concurrent signers        │
	│  │  process)    │── Retrieve() ─► aws.CredentialsProvider  │
	│  └──────────────┘                                          │
	│                                                            │
	└────────────────────────────────────────────────────────────┘

The Store starts expired, so the first signed request cannot go out until
the Refresher has run once. Expiry is consulted before every use; the
lock is never held across the remote refresh call.

# Job-user credentials

JobUserResolver turns (user, group, secret reference) into an OS session
user, fetching the login password from a pluggable SecretStore (the
shipped implementation reads SSM SecureString parameters signed by the
worker's Store). Results are cached per (user, secret reference) pair for
12 hours by fetch age; PruneCache enforces that window regardless of
access recency, because a hot entry can still be backed by a rotated or
revoked secret.
*/
package credentials

/*
Package controlplane wraps the remote job-scheduling service behind a
retrying client with data-driven error classification.

The API interface is the consumed RPC boundary: one method per remote
operation, one remote call per invocation, structured errors surfaced
unchanged. Client decorates every call with the same retry loop.

# Error classification

Classification is by structured error code, not error type: a map from
code to disposition keeps the policy testable without constructing real
service exceptions.

	┌───────────────────── RETRY LOOP ──────────────────────────┐
	│                                                            │
	│   call ──► success ──────────────► return raw response     │
	│     │                                                      │
	│     └─► smithy.APIError?                                   │
	│            │                                               │
	│            ├─ ThrottlingException      ─► sleep(backoff),  │
	│            │  InternalServerException     retry (bounded)  │
	│            │                                               │
	│            ├─ ResourceNotFoundException                    │
	│            │  (worker-scoped call)     ─► WorkerNotFound   │
	│            │                                               │
	│            └─ anything else            ─► Unrecoverable    │
	│                                           (cause wrapped)  │
	│                                                            │
	│   non-structured failure               ─► Unrecoverable    │
	│                                                            │
	└────────────────────────────────────────────────────────────┘

WorkerNotFoundError tells callers to re-register rather than retry
forever; UnrecoverableError carries the original cause for errors.Is/As.
Backoff delays come from pkg/backoff's full-jitter policy, and the
inter-attempt sleep honors context cancellation.
*/
package controlplane

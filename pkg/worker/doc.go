// Package worker implements the fleet agent: registration, heartbeat
// scheduling, and session lifecycle management.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                           Worker                             │
//	│                                                              │
//	│  ensureRegistration ──> bolt store (worker ID survives       │
//	│                          restarts)                           │
//	│                                                              │
//	│  heartbeatLoop ──> UpdateWorkerSchedule                      │
//	│       │                 │                                    │
//	│       │    reports out  │  assignments / cancels in          │
//	│       ▼                 ▼                                    │
//	│  session snapshots   startSession ──> session.Run            │
//	│                          │               (executor pool)     │
//	│                          ├── BatchGetJobEntity               │
//	│                          ├── job user resolve + OS logon     │
//	│                          ├── working directory               │
//	│                          └── log sink attach                 │
//	└──────────────────────────────────────────────────────────────┘
//
// The heartbeat is the only channel between agent and control plane:
// session state flows up, assigned sessions and cancel directives flow
// down, and the control plane may adjust the beat interval.
//
// A session that cannot be built (upstream log provisioning error,
// missing job entity, unknown action kind, user resolution failure) is
// stillborn: it is reported FAILED exactly once and journaled, but never
// executed. Terminal sessions are dropped from tracking only after their
// final state has been delivered.
package worker

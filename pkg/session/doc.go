// Package session implements the execution engine that turns a scheduled
// session into an ordered run of cancelable actions.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                          Session                            │
//	│                                                             │
//	│  CREATED ──> RUNNING ──> SUCCEEDED │ FAILED │ CANCELED      │
//	│                                                             │
//	│  ┌─────────────────── action queue ─────────────────────┐   │
//	│  │ SYNC_INPUT │ ENV_ENTER │ TASK_RUN │ ENV_EXIT │ ...    │   │
//	│  └───────────────┬───────────────────────────────────────┘   │
//	│                  │ Submit                                   │
//	│                  ▼                                          │
//	│           ┌──────────────┐      ┌───────────────────┐       │
//	│           │   Executor   │ ───> │  Action.Run(ctx)  │       │
//	│           │ (worker pool)│      │  subprocess under │       │
//	│           └──────────────┘      │  the session user │       │
//	│                                 └───────────────────┘       │
//	└─────────────────────────────────────────────────────────────┘
//
// The session dispatches exactly one action at a time and records exactly
// one terminal status per started action. After a failure only cleanup
// kinds (environment exit, output attachment sync, notify) are still
// attempted; everything else is marked CANCELED without running.
//
// Cancellation is two-level: the per-action context is canceled for
// cooperative shutdown, and Action.Cancel escalates at the execution
// layer (SIGTERM, then SIGKILL after the grace period for task
// processes). Session teardown releases acquired resources, log sinks
// and the OS user profile among them, in reverse order on every exit
// path.
package session

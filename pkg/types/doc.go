// Package types defines the domain types shared across the agent: the
// worker lifecycle statuses, the persisted fleet registration, the wire
// descriptors for assigned sessions and their actions, and the job
// entity shapes fetched from the control plane.
package types

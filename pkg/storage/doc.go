// Package storage provides persistent local state for the agent, backed
// by BoltDB.
//
// Two buckets are kept:
//
//	agent:     the fleet registration (the control-plane assigned
//	           worker ID must survive restarts)
//	sessions:  a bounded journal of finished sessions for auditing
//
// All values are stored as JSON. The database lives in the agent data
// directory as drover.db and is safe for concurrent use through BoltDB's
// single-writer transaction model.
package storage

// Package health verifies host prerequisites before the agent reports
// itself available for work.
//
// The worker runs the configured checkers as a gate at startup:
//
//	exec:  a required command (the shell) runs successfully
//	tcp:   a network dependency (the control plane host) is reachable
//	disk:  the data directory has enough free space
//
// Any failure makes the worker report NOT_COMPATIBLE to the control
// plane instead of STARTED, so the scheduler never assigns sessions to a
// host that cannot run them.
package health

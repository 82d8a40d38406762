/*
Package metrics exposes Prometheus metrics and health endpoints for the
Drover agent.

Collectors are package-level and registered at init, the standard
client_golang pattern: control-plane call outcomes, credential refreshes,
job-user cache hit rates, session and action terminal counts, and
heartbeat latency. StartServer serves /metrics, /health and /ready on the
configured address.

Health tracking is component-based: long-lived components (controlplane,
credentials, executor) register themselves and update their status as they
run. /health reports liveness of everything registered; /ready gates on
the critical set the agent needs before accepting work.
*/
package metrics

/*
Package log provides structured logging for Drover using zerolog, plus
session-scoped log streaming.

The package wraps zerolog the same way for every component: a global
logger initialized via log.Init(), child loggers carrying worker, session
and action identifiers, and configurable level and format. What is
specific to Drover is that every logger writes through a sink Router, so
a running session can attach its own log destinations without touching
the loggers.

# Architecture

	┌───────────────────── LOGGING SYSTEM ─────────────────────┐
	│                                                           │
	│  ┌───────────────────────────────────────────┐           │
	│  │            Global Logger                   │           │
	│  │  - zerolog instance                        │           │
	│  │  - WithComponent / WithSessionID children  │           │
	│  └──────────────────┬────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼────────────────────────┐           │
	│  │             Sink Router                    │           │
	│  │  - fixed base sink (stdout / console)      │           │
	│  │  - mutable attached sinks, mutex guarded   │           │
	│  │  - sink failures never fail the write      │           │
	│  └─────────┬─────────────────┬───────────────┘           │
	│            │                 │                            │
	│  ┌─────────▼────────┐ ┌──────▼─────────────┐             │
	│  │  Session file    │ │  Remote sink       │             │
	│  │  sink (fixed     │ │  (awslogs driver,  │             │
	│  │  time/level/msg  │ │  raw structured    │             │
	│  │  layout)         │ │  records)          │             │
	│  └──────────────────┘ └────────────────────┘             │
	│                                                           │
	└───────────────────────────────────────────────────────────┘

# Session log streaming

LogSession is a scoped acquisition: it opens the session's local log file,
attaches the file sink (and the remote sink, if the session's log
configuration provided one) to every router given, and returns a release
function. Callers defer the release so every attached sink is detached on
every exit path, including failures during session setup.

# Log configuration

NewConfiguration maps the control plane's log descriptor onto a supported
driver. Three outcomes:

  - descriptor carries an explicit error: ProvisioningError, the session
    must not start;
  - unsupported or missing driver, or required options missing: no
    configuration (nil, nil), the session runs with local logs only;
  - supported driver with its options present: a Configuration.
*/
package log

package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// sessionTimeFormat is the fixed timestamp layout for session log files.
const sessionTimeFormat = "2006/01/02 15:04:05"

// LogSession attaches a session-scoped file sink, and optionally a remote
// sink, to every router given. It returns a release function that detaches
// everything it attached and closes the file; callers defer it so the
// sinks are removed on every exit path, success or failure.
//
// The file sink renders each record with a fixed timestamp/level/message
// layout. The remote sink, when present, receives the raw structured
// records so the driver can batch them however it needs.
func LogSession(logPath string, remote io.Writer, routers ...*Router) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log file: %w", err)
	}

	// Attached by pointer: routers match sinks by interface comparison on
	// Detach, and ConsoleWriter is not a comparable type.
	fileSink := &zerolog.ConsoleWriter{
		Out:        f,
		NoColor:    true,
		TimeFormat: sessionTimeFormat,
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.MessageFieldName,
		},
	}

	sinks := []io.Writer{fileSink}
	if remote != nil {
		sinks = append(sinks, remote)
	}

	for _, r := range routers {
		if r == nil {
			continue
		}
		for _, s := range sinks {
			r.Attach(s)
		}
	}

	release := func() {
		for _, r := range routers {
			if r == nil {
				continue
			}
			for _, s := range sinks {
				r.Detach(s)
			}
		}
		_ = f.Close()
	}
	return release, nil
}

// SessionLogPath returns the local log file path for a session under the
// agent's log directory.
func SessionLogPath(logDir, sessionID string) string {
	return filepath.Join(logDir, time.Now().UTC().Format("2006-01-02"), sessionID+".log")
}

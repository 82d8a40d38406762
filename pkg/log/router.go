package log

import (
	"io"
	"sync"
)

// Router is a fan-out io.Writer with a fixed base sink and a mutable set
// of attached sinks. Loggers write through a Router so that session log
// sinks can come and go for the lifetime of a session without rebuilding
// the loggers themselves.
//
// A sink write failure never fails the overall write; a session log
// destination going away must not take down agent logging.
type Router struct {
	base io.Writer

	mu    sync.Mutex
	sinks []io.Writer
}

// NewRouter returns a router that always writes to base.
func NewRouter(base io.Writer) *Router {
	return &Router{base: base}
}

// Attach adds a sink. The same sink value must later be passed to Detach.
// Sinks are matched by interface comparison, so writers with
// non-comparable fields must be attached as pointers.
func (r *Router) Attach(sink io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

// Detach removes a previously attached sink. Detaching a sink that is not
// attached is a no-op.
func (r *Router) Detach(sink io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.sinks {
		if s == sink {
			r.sinks = append(r.sinks[:i], r.sinks[i+1:]...)
			return
		}
	}
}

// Attached reports whether the sink is currently attached.
func (r *Router) Attached(sink io.Writer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sinks {
		if s == sink {
			return true
		}
	}
	return false
}

// Write writes to the base sink and then to every attached sink.
func (r *Router) Write(p []byte) (int, error) {
	r.mu.Lock()
	sinks := make([]io.Writer, len(r.sinks))
	copy(sinks, r.sinks)
	r.mu.Unlock()

	n, err := r.base.Write(p)
	for _, s := range sinks {
		_, _ = s.Write(p)
	}
	return n, err
}

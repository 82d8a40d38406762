package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker verifies that a network dependency is reachable, typically
// the control plane endpoint host.
type TCPChecker struct {
	// CheckName identifies the prerequisite (e.g. "control-plane")
	CheckName string

	// Address is the TCP address to connect to (e.g. "scheduler.example.com:443")
	Address string

	// Timeout is the connection timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewTCPChecker creates a new TCP compatibility checker
func NewTCPChecker(name, address string) *TCPChecker {
	return &TCPChecker{
		CheckName: name,
		Address:   address,
		Timeout:   5 * time.Second,
	}
}

// Check performs the TCP compatibility check
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{
		Timeout: t.Timeout,
	}

	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Result{
			Compatible: false,
			Message:    fmt.Sprintf("connection to %s failed: %v", t.Address, err),
			CheckedAt:  start,
			Duration:   time.Since(start),
		}
	}
	defer conn.Close()

	return Result{
		Compatible: true,
		Message:    fmt.Sprintf("TCP connection to %s successful", t.Address),
		CheckedAt:  start,
		Duration:   time.Since(start),
	}
}

// Name identifies the prerequisite
func (t *TCPChecker) Name() string {
	return t.CheckName
}

// Type returns the compatibility check type
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}

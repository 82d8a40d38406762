package health

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// DiskChecker verifies that the agent data directory has enough free
// space for session working directories and logs.
type DiskChecker struct {
	// Path is the directory whose filesystem is checked
	Path string

	// MinFreeBytes is the required free space (default: 1 GiB)
	MinFreeBytes uint64
}

// NewDiskChecker creates a new disk space compatibility checker
func NewDiskChecker(path string) *DiskChecker {
	return &DiskChecker{
		Path:         path,
		MinFreeBytes: 1 << 30,
	}
}

// Check performs the disk space compatibility check
func (d *DiskChecker) Check(ctx context.Context) Result {
	start := time.Now()

	var stat unix.Statfs_t
	if err := unix.Statfs(d.Path, &stat); err != nil {
		return Result{
			Compatible: false,
			Message:    fmt.Sprintf("failed to stat filesystem at %s: %v", d.Path, err),
			CheckedAt:  start,
			Duration:   time.Since(start),
		}
	}

	free := stat.Bavail * uint64(stat.Bsize)
	if free < d.MinFreeBytes {
		return Result{
			Compatible: false,
			Message:    fmt.Sprintf("%s has %d bytes free, need %d", d.Path, free, d.MinFreeBytes),
			CheckedAt:  start,
			Duration:   time.Since(start),
		}
	}

	return Result{
		Compatible: true,
		Message:    fmt.Sprintf("%s has %d bytes free", d.Path, free),
		CheckedAt:  start,
		Duration:   time.Since(start),
	}
}

// Name identifies the prerequisite
func (d *DiskChecker) Name() string {
	return "disk"
}

// Type returns the compatibility check type
func (d *DiskChecker) Type() CheckType {
	return CheckTypeDisk
}

// WithMinFree sets the required free space
func (d *DiskChecker) WithMinFree(bytes uint64) *DiskChecker {
	d.MinFreeBytes = bytes
	return d
}

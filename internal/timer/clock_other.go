//go:build !linux

package timer

import "time"

var processStart = time.Now()

// rawMonotonicNS falls back to time.Since, which the Go runtime guarantees
// is monotonic regardless of wall-clock adjustments.
func rawMonotonicNS() int64 {
	return time.Since(processStart).Nanoseconds()
}

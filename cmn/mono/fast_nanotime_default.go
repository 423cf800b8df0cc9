//go:build !mono

// Package mono provides a monotonic nanosecond clock for deadlines and timer re-arming.
package mono

import "time"

var start = time.Now()

// NanoTime returns a process-monotonic nanosecond counter. It is not wall-clock
// time and must never be persisted or compared across processes.
func NanoTime() int64 { return time.Since(start).Nanoseconds() }

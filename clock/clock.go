// File: clock/clock.go
// Author: momentics <momentics@gmail.com>
//
// Nanosecond wall-clock access for latency measurement and diagnostics.

package clock

import "time"

// Nanos is a wall-clock instant or duration in nanoseconds.
type Nanos = int64

const (
	NanosToMicros  Nanos = 1000
	MicrosToMillis Nanos = 1000
	MillisToSecs   Nanos = 1000
	NanosToMillis        = NanosToMicros * MicrosToMillis
	NanosToSecs          = NanosToMillis * MillisToSecs
)

// Now returns nanoseconds since the Unix epoch. It reads the same realtime
// clock the kernel uses for SO_TIMESTAMP, so the two are comparable.
func Now() Nanos {
	return time.Now().UnixNano()
}

// FormatNow renders the current local time in ctime layout, e.g.
// "Mon Jan  2 15:04:05 2006".
func FormatNow() string {
	return time.Now().Format(time.ANSIC)
}

// FromTimeval converts a {seconds, microseconds} pair to nanoseconds.
func FromTimeval(sec, usec int64) Nanos {
	return sec*NanosToSecs + usec*NanosToMicros
}

// Package times abstracts wall-clock access so waiting code is testable.
package times

import "time"

// Clock is the minimal clock surface the poll loop and retry policy need.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Real returns the wall clock.
func Real() Clock { return realClock{} }

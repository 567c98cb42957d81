// Package clock abstracts the time operations the recorder depends on so the
// sampling window and interval pacing can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package used by the recording loop.
type Clock interface {
	Now() time.Time
	// After delivers the current time once d has elapsed. If d <= 0 the
	// channel fires immediately.
	After(d time.Duration) <-chan time.Time
}

// Since reports the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

package syncer

import "time"

// Clock abstracts time for the state machine so the backoff schedule can be
// tested without real sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NewRealClock returns a Clock backed by the time package.
func NewRealClock() Clock { return realClock{} }

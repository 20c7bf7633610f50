package common

import "github.com/jonboulle/clockwork"

// for time mock
type Clock = clockwork.Clock

func NewDefaultClock() Clock {
	return clockwork.NewRealClock()
}

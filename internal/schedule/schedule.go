// Package schedule provides a replaceable clock for deferred callbacks.
//
// The topic cache, the aggregator and the HTTP layer all arm timers that
// are re-armed or cancelled on later events. They take a Scheduler so tests
// can fire those timers deterministically with Fake.
package schedule

import "time"

// Timer is a pending callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call prevented the
	// callback from running.
	Stop() bool
}

// Scheduler arms callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Real schedules callbacks with time.AfterFunc.
type Real struct{}

// AfterFunc runs f in its own goroutine after d.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

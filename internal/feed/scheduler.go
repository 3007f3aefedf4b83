package feed

import "time"

// Timer is a cancellable pending task.
type Timer interface {
	// Stop prevents the task from firing. It reports whether the call
	// stopped the task before it ran.
	Stop() bool
}

// Scheduler schedules delayed tasks. Connectors take it as a dependency so
// tests can drive reconnect and delivery timing with a virtual clock
// instead of wall-clock waits.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemScheduler returns a Scheduler backed by the runtime timers.
func SystemScheduler() Scheduler {
	return systemScheduler{}
}

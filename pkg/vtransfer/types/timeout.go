package types

import "time"

// Driver that fires round timeouts for registered modules.
// The protocol only decides what to do when a timeout fires,
// scheduling belongs to the host.
type TimeoutDriver interface {
	// Register the module under the given name, returning
	// the channel its timeouts fire on. Registration does
	// not arm the timer.
	Register(module string, duration time.Duration) <-chan time.Time

	// Arm or re arm the timer for the module.
	Reset(module string)

	// Disarm the timer for the module.
	Cancel(module string)
}

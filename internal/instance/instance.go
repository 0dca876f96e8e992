// Package instance guards against a second running agent.
package instance

import "errors"

// Name identifies the picheck lock on every platform.
const Name = "PiCheckApplication"

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

package task

import "errors"

var (
	// ErrNoConnection is returned when a session has no connection whose
	// sources are currently enabled to carry a task or management request.
	ErrNoConnection = errors.New("session has no active connection")
)

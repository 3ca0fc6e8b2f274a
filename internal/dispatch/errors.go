package dispatch

import "errors"

// Dispatch error taxonomy. Handlers map these onto HTTP statuses; nothing
// here ever means the external post happened twice.
var (
	ErrTaskNotFound       = errors.New("response task not found")
	ErrAlreadySent        = errors.New("response task already sent")
	ErrAlreadyDispatching = errors.New("response task dispatch already in progress")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoActiveSession    = errors.New("no active session available")
)

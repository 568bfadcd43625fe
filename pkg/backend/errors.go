package backend

import "errors"

// Protocol violations. Execute wraps one of these when it abandons a frame.
var (
	ErrUnknownCommand  = errors.New("backend: unknown command tag")
	ErrTruncatedStream = errors.New("backend: truncated command stream")
	ErrNoContext       = errors.New("backend: no render context")
	ErrBadView         = errors.New("backend: bad view index")
)

package sessions

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrResultExists      = errors.New("result already written")
	ErrResultNotReady    = errors.New("result not ready")
	ErrForbidden         = errors.New("session belongs to another user")
)

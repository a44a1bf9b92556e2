package web

import "errors"

var (
	ErrAlreadyRunning = errors.New("web: already running")
	ErrInvalidConfig  = errors.New("web: invalid configuration")
	ErrBadHeader      = errors.New("web: malformed object header")
)

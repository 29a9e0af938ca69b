package domain

import "errors"

var (
	ErrCapacityReached = errors.New("client capacity reached")
	ErrSessionNotFound = errors.New("session not found")
	ErrLinkClosed      = errors.New("link closed")
	ErrProcessExited   = errors.New("media process exited")
	ErrProcessStart    = errors.New("media process failed to start")
	ErrAlreadyStopped  = errors.New("already stopped")
)

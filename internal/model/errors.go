package model

import "errors"

var (
	ErrClosed        = errors.New("store is closed")
	ErrWorkerStopped = errors.New("persistence worker stopped")
	ErrDrainTimeout  = errors.New("persistence worker did not stop in time")
)

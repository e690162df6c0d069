package akv

import "github.com/horockey/akv/internal/model"

var (
	ErrClosed        = model.ErrClosed
	ErrWorkerStopped = model.ErrWorkerStopped
	ErrDrainTimeout  = model.ErrDrainTimeout
)

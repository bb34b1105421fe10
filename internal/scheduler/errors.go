package scheduler

import "errors"

// ErrLoopClosed is returned when submitting work to a closed loop.
var ErrLoopClosed = errors.New("scheduler: loop closed")

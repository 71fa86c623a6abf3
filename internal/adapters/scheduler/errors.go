package scheduler

import "errors"

var (
	// ErrInvalidSchedule is returned for a cron spec that does not parse.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrBackpressure is returned when the queue refuses a discovered batch.
	ErrBackpressure = errors.New("queue rejected batch")
)

package worker

import (
	"context"
	"errors"
)

type Job func(ctx context.Context) error

var (
	ErrQueueFull  = errors.New("job queue is full")
	ErrPoolClosed = errors.New("working pool is closed")
)

// Submitter is the part of the pool that request handlers depend on.
type Submitter interface {
	SubmitJob(job Job) error
}

// Package async serializes pipeline runs behind a bounded worker queue.
package async

import (
	"context"
	"time"
)

// Job asks for one pipeline run over InputPath.
type Job struct {
	InputPath   string
	Payer       string
	SubmittedAt time.Time
	TraceID     string // becomes the run ID

	// Done, when set, receives the run's result. It must be buffered.
	// Jobs with a Done channel are never dropped as duplicates.
	Done chan<- error
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Package poll turns a fire-and-forget generation job plus a polled status
// endpoint into a single awaitable result: the finished artifact, a typed
// generation failure, or a timeout.
package poll

import (
	"context"
	"errors"
	"time"
)

// State is the backend-reported phase of a job.
type State string

const (
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// Status is one polled observation of a job. Artifact is non-nil only for a
// genuinely finished job; a finished state without an artifact is treated
// as still running and never terminates the poll on its own.
type Status[T any] struct {
	State    State
	Artifact *T
	Reason   string
}

// ErrTimeout is returned when a poll exhausts its attempts without the job
// reaching a terminal state. The message is fixed and user-facing.
var ErrTimeout = errors.New("generation timed out, please try again")

// GenerationError is a terminal failure reported by the backend. Reason is
// the server-supplied message, surfaced verbatim.
type GenerationError struct {
	Reason string
}

func (e *GenerationError) Error() string {
	return e.Reason
}

// StatusFunc fetches the current status of a job. Failures here are
// infrastructure errors and propagate out of Poll unchanged.
type StatusFunc[T any] func(ctx context.Context, jobID string) (Status[T], error)

// SleepFunc is the injected delay capability, so the loop is
// deterministically testable without real timers.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc: a timer that aborts on context
// cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll drives a job to completion with bounded attempts and a fixed delay
// between them. One invocation is one independent poll session; the poller
// holds no state across calls, so concurrent polls for different jobs do
// not interfere.
//
// No sleep is ever issued after the final attempt: an all-running job sees
// exactly maxAttempts status fetches and maxAttempts-1 sleeps before
// ErrTimeout.
func Poll[T any](ctx context.Context, jobID string, maxAttempts int, wait time.Duration, getStatus StatusFunc[T], sleep SleepFunc) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		status, err := getStatus(ctx, jobID)
		if err != nil {
			return zero, err
		}

		switch {
		case status.State == StateFinished && status.Artifact != nil:
			return *status.Artifact, nil
		case status.State == StateFailed:
			reason := status.Reason
			if reason == "" {
				reason = "generation failed"
			}
			return zero, &GenerationError{Reason: reason}
		}

		if attempt < maxAttempts-1 {
			if err := sleep(ctx, wait); err != nil {
				return zero, err
			}
		}
	}

	return zero, ErrTimeout
}

package scheduler

import (
	"context"
	"strings"
	"time"

	"go-image-moderation/pkg/models"
)

// Priority orders pending tasks. High always wins the next free slot.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps free-form input to a Priority, defaulting to normal
func ParsePriority(s string) Priority {
	if strings.EqualFold(strings.TrimSpace(s), string(PriorityHigh)) {
		return PriorityHigh
	}
	return PriorityNormal
}

// EnqueueOptions tunes a single submission
type EnqueueOptions struct {
	Priority Priority
	// Mode forces the analysis depth; empty lets the scheduler decide
	Mode models.AnalysisMode
}

type task struct {
	id         string
	payload    []byte
	priority   Priority
	mode       models.AnalysisMode
	attempts   int
	enqueuedAt time.Time
	seq        uint64
	future     *Future
}

// before reports whether t was enqueued earlier than other
func (t *task) before(other *task) bool {
	if !t.enqueuedAt.Equal(other.enqueuedAt) {
		return t.enqueuedAt.Before(other.enqueuedAt)
	}
	return t.seq < other.seq
}

// Future is the handle returned by Enqueue. It settles exactly once, after
// the task succeeds or exhausts its retries.
type Future struct {
	done   chan struct{}
	result *models.AnalysisResult
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done is closed once the result is available
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task settles or ctx ends. Giving up on the wait
// does not cancel the task.
func (f *Future) Wait(ctx context.Context) (*models.AnalysisResult, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) settle(result *models.AnalysisResult, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

package microorm

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TraceLog describes one execution to a Tracer
type TraceLog struct {
	// SessionID is shared by the before and after calls of an execution
	SessionID  uuid.UUID
	Key        string
	Statement  string
	Parameters map[string]interface{}
	StartTime  time.Time
	// set before AfterExecution
	Elapsed      time.Duration
	RowsAffected int64
	Result       interface{}
	Err          error

	cancelled bool
	throw     bool
}

// Cancel skips the execution; with throw the operation fails with ErrCancelledExecution
func (t *TraceLog) Cancel(throw bool) {
	t.cancelled, t.throw = true, throw
}

// Cancelled reports whether Cancel was called
func (t *TraceLog) Cancelled() bool {
	return t.cancelled
}

// Tracer observes executions. BeforeExecution may cancel the execution;
// AfterExecution is not called for cancelled ones.
type Tracer interface {
	BeforeExecution(ctx context.Context, log *TraceLog)
	AfterExecution(ctx context.Context, log *TraceLog)
}

// TracerFuncs adapts functions to a Tracer, nil functions are skipped
type TracerFuncs struct {
	Before func(ctx context.Context, log *TraceLog)
	After  func(ctx context.Context, log *TraceLog)
}

func (t TracerFuncs) BeforeExecution(ctx context.Context, log *TraceLog) {
	if t.Before != nil {
		t.Before(ctx, log)
	}
}

func (t TracerFuncs) AfterExecution(ctx context.Context, log *TraceLog) {
	if t.After != nil {
		t.After(ctx, log)
	}
}

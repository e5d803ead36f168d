// Package audit emits governance records for every mutating store call.
// Audit is best-effort: a missed record is a compliance gap, never a reason
// to fail the business mutation that produced it.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/odontosync/backend/pkg/queue"
)

type ctxKey int

const actorKey ctxKey = 0

// WithActor returns a context carrying the acting user for audit records.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom extracts the acting user from ctx, defaulting to "Admin" when
// the caller did not establish one.
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok && v != "" {
		return v
	}
	return "Admin"
}

// Event is one governance record.
type Event struct {
	Actor    string
	Action   string
	EntityID string
	At       time.Time
}

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// QueueRecorder enqueues events onto the Redis audit queue; the worker drains
// them into the durable log. Keeps the mutating call path fast.
type QueueRecorder struct {
	queue  *queue.Queue
	logger *zap.Logger
}

// NewQueueRecorder creates a queue-backed audit recorder.
func NewQueueRecorder(q *queue.Queue, logger *zap.Logger) *QueueRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueRecorder{queue: q, logger: logger}
}

// Record enqueues the event.
func (r *QueueRecorder) Record(ctx context.Context, ev Event) error {
	return r.queue.EnqueueAudit(ctx, queue.AuditPayload{
		Actor:    ev.Actor,
		Action:   ev.Action,
		EntityID: ev.EntityID,
		At:       ev.At,
	})
}

// NopRecorder discards events (tests, audit disabled).
type NopRecorder struct{}

// Record discards the event.
func (NopRecorder) Record(context.Context, Event) error { return nil }

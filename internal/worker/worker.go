package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/odontosync/backend/internal/audit"
	"github.com/odontosync/backend/pkg/queue"
)

// AuditProcessor drains governance audit jobs from Redis into the durable
// Postgres audit log. Audit persistence is async so a slow or down database
// never blocks a dashboard mutation.
type AuditProcessor struct {
	auditRepo *audit.Repository
	queue     *queue.Queue
	logger    *zap.Logger
}

// NewAuditProcessor creates an audit drain processor.
func NewAuditProcessor(auditRepo *audit.Repository, q *queue.Queue, logger *zap.Logger) *AuditProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditProcessor{auditRepo: auditRepo, queue: q, logger: logger}
}

// Process executes one audit job.
func (p *AuditProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAudit {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AuditPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	event := audit.Event{
		Actor:    payload.Actor,
		Action:   payload.Action,
		EntityID: payload.EntityID,
		At:       payload.At,
	}
	if err := p.auditRepo.Insert(ctx, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	p.logger.Debug("audit event persisted",
		zap.String("actor", payload.Actor),
		zap.String("action", payload.Action),
		zap.String("entity_id", payload.EntityID),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *AuditProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("audit worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/convene-app/backend/internal/sessionlog"
	"github.com/convene-app/backend/pkg/queue"
)

// EventProcessor persists session transition events and, when a session
// completes, generates its digest from the accumulated log.
type EventProcessor struct {
	logRepo *sessionlog.Repository
	queue   *queue.Queue
	logger  *zap.Logger
}

// NewEventProcessor creates a session event processor.
func NewEventProcessor(logRepo *sessionlog.Repository, q *queue.Queue, logger *zap.Logger) *EventProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventProcessor{logRepo: logRepo, queue: q, logger: logger}
}

// Process executes one session event job.
func (p *EventProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeSessionEvent {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.SessionEventPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	row := sessionlog.EventRow{
		SessionID:     payload.SessionID,
		Event:         payload.Event,
		Status:        payload.Status,
		StageIndex:    payload.StageIndex,
		SubstageIndex: payload.SubstageIndex,
		RoomCount:     payload.RoomCount,
		Participants:  payload.Participants,
		OccurredAt:    payload.OccurredAt,
	}
	if err := p.logRepo.Insert(ctx, &row); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if payload.Event == "session_completed" {
		if err := p.generateSummary(ctx, payload); err != nil {
			// log retention succeeded; the digest can be regenerated later
			p.logger.Warn("summary generation failed",
				zap.String("session_id", payload.SessionID.String()), zap.Error(err))
		}
	}

	p.logger.Debug("session event persisted",
		zap.String("session_id", payload.SessionID.String()), zap.String("event", payload.Event))
	return nil
}

// generateSummary builds the post-session digest from the transition log.
// TODO: call the summarization service once its API is stable; until then
// the digest is a plain transition recap.
func (p *EventProcessor) generateSummary(ctx context.Context, payload queue.SessionEventPayload) error {
	events, err := p.logRepo.ListBySession(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	var b strings.Builder
	transitions := 0
	maxRooms := 0
	var startedAt, completedAt time.Time
	for _, ev := range events {
		transitions++
		if ev.RoomCount > maxRooms {
			maxRooms = ev.RoomCount
		}
		if ev.Event == "session_started" {
			startedAt = ev.OccurredAt
		}
		if ev.Event == "session_completed" {
			completedAt = ev.OccurredAt
		}
	}
	fmt.Fprintf(&b, "Session ran %d transitions across up to %d rooms with %d participants.",
		transitions, maxRooms, payload.Participants)
	if !startedAt.IsZero() && !completedAt.IsZero() && completedAt.After(startedAt) {
		fmt.Fprintf(&b, " Total duration %s.", completedAt.Sub(startedAt).Round(time.Second))
	}

	return p.logRepo.SaveSummary(ctx, payload.SessionID, b.String())
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EventProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("event worker stopping")
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

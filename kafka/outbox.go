package kafka

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"roadassist/domain"
)

// EventPublisher delivers one outbox event to the broker.
type EventPublisher interface {
	PublishOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error
}

// OutboxProcessor polls the outbox collection and publishes pending
// lifecycle events to Kafka, marking each one processed after delivery.
type OutboxProcessor struct {
	repo     domain.OutboxRepository
	producer EventPublisher
	logger   *slog.Logger
	interval time.Duration
}

// NewOutboxProcessor creates an OutboxProcessor polling at the given interval.
func NewOutboxProcessor(repo domain.OutboxRepository, producer EventPublisher, logger *slog.Logger, interval time.Duration) *OutboxProcessor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxProcessor{
		repo:     repo,
		producer: producer,
		logger:   logger,
		interval: interval,
	}
}

// Start polls until the context is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	_, span := otel.Tracer("roadassist").Start(ctx, "OutboxProcessorStart")
	defer span.End()

	p.logger.Info("Outbox processor started", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stopping outbox processor")
			return ctx.Err()
		case <-ticker.C:
			if err := p.processOutboxEvents(ctx); err != nil {
				p.logger.Error("Failed to process outbox events", "error", err)
			}
		}
	}
}

// processOutboxEvents retrieves and publishes unprocessed outbox events.
func (p *OutboxProcessor) processOutboxEvents(ctx context.Context) error {
	ctx, span := otel.Tracer("roadassist").Start(ctx, "ProcessOutboxEvents")
	defer span.End()

	events, err := p.repo.GetUnprocessedOutboxEvents(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get unprocessed outbox events")
		return err
	}
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if err := p.producer.PublishOutboxEvent(ctx, event); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to publish outbox event")
			p.logger.Error("Failed to publish outbox event", "eventID", event.ID, "error", err)
			continue
		}

		if err := p.repo.MarkOutboxEventProcessed(ctx, event.ID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to mark outbox event as processed")
			p.logger.Error("Failed to mark outbox event as processed", "eventID", event.ID, "error", err)
			continue
		}
		p.logger.Info("Processed outbox event", "eventID", event.ID, "eventType", event.EventType)
	}

	span.SetAttributes(attribute.Int("processedEventCount", len(events)))
	return nil
}

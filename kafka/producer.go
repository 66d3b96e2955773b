// Package kafka publishes request lifecycle events from the outbox to a
// Kafka topic, Avro-encoded in the Confluent wire format.
package kafka

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/hamba/avro/v2"
	"github.com/riferrei/srclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"roadassist/domain"
)

// RequestEvent mirrors the Avro schema in request_event.avsc.
type RequestEvent struct {
	RequestID   string  `avro:"request_id"`
	CustomerID  string  `avro:"customer_id"`
	MechanicID  string  `avro:"mechanic_id"`
	EventType   string  `avro:"event_type"`
	ProblemType string  `avro:"problem_type"`
	Status      string  `avro:"status"`
	FinalCost   float64 `avro:"final_cost"`
	Longitude   float64 `avro:"longitude"`
	Latitude    float64 `avro:"latitude"`
	OccurredAt  int64   `avro:"occurred_at"`
}

// Producer writes lifecycle events to the request-events topic.
type Producer struct {
	kafkaProducer *kafka.Producer
	srClient      *srclient.SchemaRegistryClient
	schema        avro.Schema
	SchemaID      int
	topic         string
	logger        *slog.Logger
	tracer        trace.Tracer
}

// NewProducer creates a Kafka producer, registers the event schema with the
// schema registry and keeps its ID for message framing.
func NewProducer(bootstrapServers, schemaRegistryURL, topic, schemaPath string, logger *slog.Logger) (*Producer, error) {
	config := &kafka.ConfigMap{
		"bootstrap.servers": bootstrapServers,
		"compression.type":  "snappy",
	}
	p, err := kafka.NewProducer(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	srClient := srclient.CreateSchemaRegistryClient(schemaRegistryURL)

	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	schemaStr := string(schemaBytes)
	schema, err := avro.Parse(schemaStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	schemaObj, err := srClient.CreateSchema(topic+"-value", schemaStr, srclient.Avro)
	if err != nil {
		return nil, fmt.Errorf("failed to register schema: %w", err)
	}
	logger.Info("Schema registered", "schemaID", schemaObj.ID(), "topic", topic)

	return &Producer{
		kafkaProducer: p,
		srClient:      srClient,
		schema:        schema,
		SchemaID:      schemaObj.ID(),
		topic:         topic,
		logger:        logger,
		tracer:        otel.Tracer("roadassist"),
	}, nil
}

// PublishOutboxEvent encodes an outbox event as Avro and publishes it,
// waiting on the delivery report so the caller can safely mark the event
// processed.
func (p *Producer) PublishOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error {
	_, span := p.tracer.Start(ctx, "PublishOutboxEvent")
	defer span.End()

	var payload domain.RequestEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to decode outbox payload")
		return fmt.Errorf("failed to decode outbox payload: %w", err)
	}

	record := RequestEvent{
		RequestID:   payload.RequestID,
		CustomerID:  payload.CustomerID,
		MechanicID:  payload.MechanicID,
		EventType:   event.EventType,
		ProblemType: payload.ProblemType,
		Status:      payload.Status,
		FinalCost:   payload.FinalCost,
		Longitude:   payload.Longitude,
		Latitude:    payload.Latitude,
		OccurredAt:  payload.OccurredAt.UnixMilli(),
	}
	encoded, err := avro.Marshal(p.schema, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to encode event")
		return fmt.Errorf("failed to encode event: %w", err)
	}

	// Confluent wire format: magic byte, big-endian schema ID, Avro body.
	value := make([]byte, 0, len(encoded)+5)
	value = append(value, 0)
	value = binary.BigEndian.AppendUint32(value, uint32(p.SchemaID))
	value = append(value, encoded...)

	deliveryChan := make(chan kafka.Event)
	err = p.kafkaProducer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(payload.RequestID),
		Value:          value,
	}, deliveryChan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to produce message")
		p.logger.Error("Failed to produce message", "eventID", event.ID, "error", err)
		return fmt.Errorf("failed to produce message: %w", err)
	}

	e := <-deliveryChan
	m := e.(*kafka.Message)
	if m.TopicPartition.Error != nil {
		span.RecordError(m.TopicPartition.Error)
		span.SetStatus(codes.Error, "Delivery failed")
		p.logger.Error("Delivery failed", "eventID", event.ID, "error", m.TopicPartition.Error)
		return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
	}
	p.logger.Info("Published lifecycle event",
		"eventID", event.ID,
		"eventType", event.EventType,
		"topic", *m.TopicPartition.Topic,
		"partition", m.TopicPartition.Partition,
		"offset", m.TopicPartition.Offset)
	span.SetAttributes(
		attribute.String("eventID", event.ID),
		attribute.String("eventType", event.EventType),
		attribute.Int("partition", int(m.TopicPartition.Partition)),
		attribute.Int64("offset", int64(m.TopicPartition.Offset)),
	)

	close(deliveryChan)
	return nil
}

// Close shuts down the Kafka producer.
func (p *Producer) Close() {
	p.logger.Info("Closing Kafka producer")
	p.kafkaProducer.Close()
}

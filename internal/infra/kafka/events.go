package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, prefixed with kafka.topic_prefix to form topic names.
const (
	EventUserRegistered = "user.registered"
	EventLoginAttempted = "login.attempted"
	EventConfigChanged  = "config.changed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
	now      func() time.Time
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger, now: time.Now}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Subject   string           `json:"subject,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

// publish wraps payload in the envelope; subject doubles as the partition key.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, subject string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = p.now()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Subject:   subject,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("event_id"), Value: []byte(id)},
		},
	}
	if subject != "" {
		message.Key = sarama.StringEncoder(subject)
	}

	if err := p.producer.Send(ctx, message); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// PublishUserRegistered publishes gateway.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Username     string    `json:"username"`
		Email        *string   `json:"email,omitempty"`
		RegisteredAt time.Time `json:"registered_at"`
		IPAddress    string    `json:"ip_address,omitempty"`
	}{
		UserID:       event.UserID,
		Username:     event.Username,
		Email:        event.Email,
		RegisteredAt: event.RegisteredAt.UTC(),
		IPAddress:    event.IPAddress,
	}

	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishLoginAttempted publishes gateway.login.attempted events.
func (p *EventPublisher) PublishLoginAttempted(ctx context.Context, event domain.LoginAttemptedEvent) error {
	payload := struct {
		UserID        *string   `json:"user_id,omitempty"`
		Username      string    `json:"username"`
		IPAddress     string    `json:"ip_address,omitempty"`
		Outcome       string    `json:"outcome"`
		FailureReason string    `json:"failure_reason,omitempty"`
		AttemptedAt   time.Time `json:"attempted_at"`
	}{
		UserID:        event.UserID,
		Username:      event.Username,
		IPAddress:     event.IPAddress,
		Outcome:       string(event.Outcome),
		FailureReason: event.FailureReason,
		AttemptedAt:   event.AttemptedAt.UTC(),
	}

	subject := event.Username
	if event.UserID != nil {
		subject = *event.UserID
	}

	return p.publish(ctx, event.EventID, EventLoginAttempted, subject, event.AttemptedAt, payload)
}

// PublishConfigChanged publishes gateway.config.changed events.
func (p *EventPublisher) PublishConfigChanged(ctx context.Context, event domain.ConfigChangedEvent) error {
	payload := struct {
		Key       string    `json:"key"`
		Value     string    `json:"value"`
		Action    string    `json:"action"`
		ChangedBy string    `json:"changed_by,omitempty"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		Key:       event.Key,
		Value:     event.Value,
		Action:    event.Action,
		ChangedBy: event.ChangedBy,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventConfigChanged, event.Key, event.ChangedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)

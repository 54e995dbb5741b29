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

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
	"github.com/SKB-CADDep/authentication-service/internal/core/port"
	"github.com/SKB-CADDep/authentication-service/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Username  string           `json:"username,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, username string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
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
		Username:  username,
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
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishIdentityCreated publishes auth.identity.created events.
func (p *EventPublisher) PublishIdentityCreated(ctx context.Context, event domain.IdentityCreatedEvent) error {
	payload := struct {
		Username  string         `json:"username"`
		Email     *string        `json:"email,omitempty"`
		Groups    []string       `json:"groups,omitempty"`
		CreatedAt time.Time      `json:"created_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		Username:  event.Username,
		Email:     event.Email,
		Groups:    event.Groups,
		CreatedAt: event.CreatedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.identity.created", event.Username, event.CreatedAt, payload)
}

// PublishIdentitySynced publishes auth.identity.synced events.
func (p *EventPublisher) PublishIdentitySynced(ctx context.Context, event domain.IdentitySyncedEvent) error {
	payload := struct {
		Username string         `json:"username"`
		Groups   []string       `json:"groups,omitempty"`
		SyncedAt time.Time      `json:"synced_at"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{
		Username: event.Username,
		Groups:   event.Groups,
		SyncedAt: event.SyncedAt.UTC(),
		Metadata: event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.identity.synced", event.Username, event.SyncedAt, payload)
}

// PublishLoginSucceeded publishes auth.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		Username  string         `json:"username"`
		IP        *string        `json:"ip,omitempty"`
		UserAgent *string        `json:"user_agent,omitempty"`
		LoggedAt  time.Time      `json:"logged_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		Username:  event.Username,
		IP:        event.IP,
		UserAgent: event.UserAgent,
		LoggedAt:  event.LoggedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.login.succeeded", event.Username, event.LoggedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)

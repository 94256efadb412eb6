package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tapcards/tap/internal/config"
)

const (
	TopicProfileEvents = "profile.events"
)

type ProfileEventType string

const (
	ProfileEventTypeCreated        ProfileEventType = "profile.created"
	ProfileEventTypeUpdated        ProfileEventType = "profile.updated"
	ProfileEventTypeAvatarUploaded ProfileEventType = "avatar.uploaded"
)

type ProfileEventPayload struct {
	EventID    string           `json:"event_id"`
	EventType  ProfileEventType `json:"event_type"`
	Username   string           `json:"username"`
	AssetURL   string           `json:"asset_url,omitempty"`
	PublicID   string           `json:"public_id,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducerClient struct {
	ProfileEventsWriter messageWriter
}

func NewKafkaProducerClient(cfg config.Config) (*KafkaProducerClient, error) {
	brokers := cfg.Kafka.Brokers
	if len(brokers) == 0 {
		return nil, fmt.Errorf("config Kafka brokers not found")
	}

	// writer 'profile.events'
	profileWriter := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  TopicProfileEvents,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}

	return &KafkaProducerClient{
		ProfileEventsWriter: profileWriter,
	}, nil
}

// PublishProfileEvent keys messages by username so one user's events stay ordered.
func (c *KafkaProducerClient) PublishProfileEvent(ctx context.Context, payload ProfileEventPayload) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal profile event: %w", err)
	}
	err = c.ProfileEventsWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(payload.Username),
		Value: value,
		Time:  payload.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("write profile event to kafka: %w", err)
	}
	return nil
}

func (c *KafkaProducerClient) Close() {
	if c.ProfileEventsWriter != nil {
		c.ProfileEventsWriter.Close()
	}
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishProfileEvent(context.Context, ProfileEventPayload) error { return nil }

func DecodeProfileEvent(msg kafka.Message) (ProfileEventPayload, error) {
	var payload ProfileEventPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return payload, fmt.Errorf("unmarshal profile event: %w", err)
	}
	return payload, nil
}

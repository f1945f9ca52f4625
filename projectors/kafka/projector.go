// Package kafka publishes committed bookswap lifecycle events to a Kafka topic.
// Messages are keyed by subject id so every event of one match or exchange
// lands on the same partition in order.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bookswap/core"
	jsoniter "github.com/json-iterator/go"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	ProjectorName     = "kafka"
	HeaderEventName   = "bookswap-event"
	HeaderSubjectType = "bookswap-subject-type"
)

type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// MessageWriter is the subset of *kafkago.Writer the projector uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

func NewWriter(cfg Config) (*kafkago.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		RequiredAcks: kafkago.RequireAll,
		Async:        false,
		BatchTimeout: batchTimeout,
	}, nil
}

// Envelope is the wire form of a lifecycle event.
type Envelope struct {
	EventID     string         `json:"event_id"`
	Name        string         `json:"name"`
	SubjectType string         `json:"subject_type"`
	SubjectID   string         `json:"subject_id"`
	ActorID     int64          `json:"actor_id,omitempty"`
	Source      string         `json:"source"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Payload     map[string]any `json:"payload,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewEnvelope(event core.LifecycleEvent) Envelope {
	return Envelope{
		EventID:     event.ID,
		Name:        event.Name,
		SubjectType: event.SubjectType,
		SubjectID:   event.SubjectID,
		ActorID:     event.ActorID,
		Source:      event.Source,
		OccurredAt:  event.OccurredAt.UTC(),
		Payload:     event.Payload,
		Metadata:    publicMetadata(event.Metadata),
	}
}

func Encode(event core.LifecycleEvent) ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(NewEnvelope(event))
}

func Decode(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := jsoniter.ConfigFastest.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("kafka: decode envelope: %w", err)
	}
	return envelope, nil
}

// Projector implements core.LifecycleEventHandler.
type Projector struct {
	writer MessageWriter
}

func NewProjector(writer MessageWriter) (*Projector, error) {
	if writer == nil {
		return nil, fmt.Errorf("kafka: message writer is required")
	}
	return &Projector{writer: writer}, nil
}

func (p *Projector) Handle(ctx context.Context, event core.LifecycleEvent) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("kafka: projector is not configured")
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.SubjectID) == "" {
		return fmt.Errorf("kafka: event id and subject id are required")
	}
	value, err := Encode(event)
	if err != nil {
		return fmt.Errorf("kafka: encode event %s: %w", event.ID, err)
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.SubjectType + ":" + event.SubjectID),
		Value: value,
		Time:  event.OccurredAt.UTC(),
		Headers: []kafkago.Header{
			{Key: HeaderEventName, Value: []byte(event.Name)},
			{Key: HeaderSubjectType, Value: []byte(event.SubjectType)},
		},
	})
}

func (p *Projector) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Register adds the projector to registry under ProjectorName.
func (p *Projector) Register(registry core.ProjectorRegistry) error {
	if registry == nil {
		return fmt.Errorf("kafka: projector registry is required")
	}
	registry.Register(ProjectorName, p)
	return nil
}

// publicMetadata drops dispatcher bookkeeping keys, which start with "_".
func publicMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if strings.HasPrefix(key, "_") {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var (
	_ core.LifecycleEventHandler = (*Projector)(nil)
	_ MessageWriter              = (*kafkago.Writer)(nil)
)

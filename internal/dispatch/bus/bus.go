// Package bus delivers dispatch events to websocket clients, either inside
// one process or across instances through a Kafka topic.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"medilink/internal/dispatch/events"
	"medilink/internal/dispatch/registry"
	"medilink/pkg/kafka"
	"medilink/pkg/logger"
	"medilink/pkg/middleware"
)

const (
	AudienceDrivers = "drivers"
	AudienceUser    = "user"

	eventTypeFanout = "dispatch.fanout"
)

// Event is the Kafka record carrying an already encoded websocket frame.
type Event struct {
	Audience string          `json:"audience"`
	UserID   string          `json:"userId,omitempty"`
	Event    string          `json:"event"`
	Frame    json.RawMessage `json:"frame"`
}

// LocalNotifier delivers to the connections held by this process only.
type LocalNotifier struct {
	registry *registry.Registry
	log      *logger.Logger
}

func NewLocalNotifier(reg *registry.Registry, log *logger.Logger) *LocalNotifier {
	return &LocalNotifier{registry: reg, log: log}
}

func (n *LocalNotifier) ToDrivers(_ context.Context, event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		n.log.Error("Failed to encode driver broadcast", "event", event, "error", err)
		return
	}
	n.deliver(Event{Audience: AudienceDrivers, Event: event, Frame: frame})
}

func (n *LocalNotifier) ToUser(_ context.Context, userID, event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		n.log.Error("Failed to encode user message", "event", event, "user_id", userID, "error", err)
		return
	}
	n.deliver(Event{Audience: AudienceUser, UserID: userID, Event: event, Frame: frame})
}

func (n *LocalNotifier) deliver(e Event) {
	switch e.Audience {
	case AudienceDrivers:
		delivered := n.registry.SendToDrivers(e.Frame)
		n.log.Debug("Broadcast to drivers", "event", e.Event, "delivered", delivered)
	case AudienceUser:
		if !n.registry.SendToUser(e.UserID, e.Frame) {
			n.log.Debug("User not connected here", "event", e.Event, "user_id", e.UserID)
		}
	default:
		n.log.Warn("Unknown audience", "audience", e.Audience, "event", e.Event)
	}
}

// Publisher is the part of kafka.Producer the bus needs.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaNotifier delivers locally and publishes the same frame so every other
// instance can deliver it to the connections it holds.
type KafkaNotifier struct {
	local      *LocalNotifier
	publisher  Publisher
	instanceID string
	log        *logger.Logger
}

func NewKafkaNotifier(local *LocalNotifier, publisher Publisher, instanceID string, log *logger.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		local:      local,
		publisher:  publisher,
		instanceID: instanceID,
		log:        log,
	}
}

func (n *KafkaNotifier) ToDrivers(ctx context.Context, event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		n.log.Error("Failed to encode driver broadcast", "event", event, "error", err)
		return
	}
	e := Event{Audience: AudienceDrivers, Event: event, Frame: frame}
	n.local.deliver(e)
	n.publish(ctx, AudienceDrivers, e)
}

func (n *KafkaNotifier) ToUser(ctx context.Context, userID, event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		n.log.Error("Failed to encode user message", "event", event, "user_id", userID, "error", err)
		return
	}
	e := Event{Audience: AudienceUser, UserID: userID, Event: event, Frame: frame}
	n.local.deliver(e)
	n.publish(ctx, userID, e)
}

func (n *KafkaNotifier) publish(ctx context.Context, key string, e Event) {
	msg, err := kafka.NewMessage().
		WithKey(key).
		WithValue(e).
		WithEventType(eventTypeFanout).
		WithSource(n.instanceID).
		WithCorrelationID(middleware.RequestIDFrom(ctx)).
		Build()
	if err != nil {
		n.log.Error("Failed to build fan-out message", "event", e.Event, "error", err)
		return
	}
	if err := n.publisher.Publish(ctx, msg); err != nil {
		n.log.Error("Failed to publish fan-out message", "event", e.Event, "audience", e.Audience, "error", err)
	}
}

// Handler consumes fan-out records from other instances. Records published
// by this instance were already delivered locally and are skipped.
func Handler(local *LocalNotifier, instanceID string) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if msg.GetSource() == instanceID {
			return nil
		}

		var e Event
		if err := msg.DecodeValue(&e); err != nil {
			return kafka.NewPermanentError("decode fan-out event", err)
		}
		if len(e.Frame) == 0 {
			return kafka.NewPermanentError("fan-out event without frame", kafka.ErrInvalidMessage)
		}

		local.deliver(e)
		return nil
	}
}

// GroupID gives every instance its own consumer group so each one sees every
// record on the topic.
func GroupID(prefix, instanceID string) string {
	return fmt.Sprintf("%s-%s", prefix, instanceID)
}

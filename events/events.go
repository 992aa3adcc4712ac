// Package events exports readings and issued commands to Kafka.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeReadingRecorded Type = "reading.recorded"
	TypeCommandIssued   Type = "command.issued"
)

// Event is the JSON envelope written to the export topic.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	RoomID     uint      `json:"roomId"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

func New(t Type, roomID uint, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		RoomID:     roomID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// CommandData is the payload of a command.issued event.
type CommandData struct {
	Actuator string `json:"actuator"`
	Topic    string `json:"topic"`
	Payload  string `json:"payload"`
	Desired  bool   `json:"desired"`
}

// Publisher must not block the caller on broker I/O.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

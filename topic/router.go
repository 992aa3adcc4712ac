package topic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedTopic is returned for topics under a known prefix that cannot
// be routed.
var ErrMalformedTopic = errors.New("malformed topic")

type Kind int

const (
	KindIgnored Kind = iota
	KindTelemetry
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindTelemetry:
		return "telemetry"
	case KindStatus:
		return "status"
	default:
		return "ignored"
	}
}

type Channel string

const (
	ChannelTemperature Channel = "temperature"
	ChannelHumidity    Channel = "humidity"
	ChannelPresence    Channel = "presence"
	ChannelStatus      Channel = "status"
)

const (
	roomPrefix    = "room"
	devicePrefix  = "esp32"
	statusSegment = "status"
)

// Route is the result of classifying an inbound topic.
type Route struct {
	Kind    Kind
	RoomID  uint
	Channel Channel
}

// telemetryChannels maps the last segment of room/{id}/... onto a channel.
// Devices publish presence as "pir"; "presence" is accepted as an alias.
var telemetryChannels = map[string]Channel{
	"temperature": ChannelTemperature,
	"humidity":    ChannelHumidity,
	"pir":         ChannelPresence,
	"presence":    ChannelPresence,
}

// Parse classifies a topic. Unknown prefixes yield KindIgnored and a nil
// error.
func Parse(topic string) (Route, error) {
	parts := strings.Split(topic, "/")

	switch {
	case parts[0] == roomPrefix:
		if len(parts) != 3 {
			return Route{}, fmt.Errorf("%w: %q: expected room/{id}/{channel}", ErrMalformedTopic, topic)
		}
		id, err := parseRoomID(parts[1])
		if err != nil {
			return Route{}, fmt.Errorf("%w: %q: %v", ErrMalformedTopic, topic, err)
		}
		ch, ok := telemetryChannels[parts[2]]
		if !ok {
			return Route{}, fmt.Errorf("%w: %q: unknown channel %q", ErrMalformedTopic, topic, parts[2])
		}
		return Route{Kind: KindTelemetry, RoomID: id, Channel: ch}, nil

	case parts[0] == devicePrefix && len(parts) > 1 && parts[1] == statusSegment:
		if len(parts) != 3 {
			return Route{}, fmt.Errorf("%w: %q: expected esp32/status/{id}", ErrMalformedTopic, topic)
		}
		id, err := parseRoomID(parts[2])
		if err != nil {
			return Route{}, fmt.Errorf("%w: %q: %v", ErrMalformedTopic, topic, err)
		}
		return Route{Kind: KindStatus, RoomID: id, Channel: ChannelStatus}, nil
	}

	return Route{Kind: KindIgnored}, nil
}

func parseRoomID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("room id %q is not a positive integer", s)
	}
	if n == 0 {
		return 0, errors.New("room id must be positive")
	}
	return uint(n), nil
}

func TelemetryTopic(roomID uint, ch Channel) string {
	segment := string(ch)
	if ch == ChannelPresence {
		segment = "pir"
	}
	return fmt.Sprintf("%s/%d/%s", roomPrefix, roomID, segment)
}

// TelemetryTopics returns the three telemetry topics of a room.
func TelemetryTopics(roomID uint) []string {
	return []string{
		TelemetryTopic(roomID, ChannelTemperature),
		TelemetryTopic(roomID, ChannelHumidity),
		TelemetryTopic(roomID, ChannelPresence),
	}
}

func StatusTopic(roomID uint) string {
	return fmt.Sprintf("%s/%s/%d", devicePrefix, statusSegment, roomID)
}

// RoomTopics is every topic a room must be subscribed to.
func RoomTopics(roomID uint) []string {
	return append(TelemetryTopics(roomID), StatusTopic(roomID))
}

func ValveCommandTopic(roomID uint) string {
	return fmt.Sprintf("%s/stepper/control/%d", devicePrefix, roomID)
}

func FanCommandTopic(roomID uint) string {
	return fmt.Sprintf("%s/fan/control/%d", devicePrefix, roomID)
}

// Command payloads understood by the room controllers.
const (
	ValveOpen  = "CCW"
	ValveClose = "CW"
	FanOn      = "ON"
	FanOff     = "OFF"
)

// ValvePayload returns the stepper direction for the desired valve state.
func ValvePayload(open bool) string {
	if open {
		return ValveOpen
	}
	return ValveClose
}

func FanPayload(on bool) string {
	if on {
		return FanOn
	}
	return FanOff
}

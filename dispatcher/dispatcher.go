// Package dispatcher issues idempotent actuator commands.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ecoheat/devicestate"
	"ecoheat/events"
	"ecoheat/metrics"
	"ecoheat/topic"
	"ecoheat/transport"
)

var (
	// ErrNotConnected means nothing was published because the broker
	// session is down.
	ErrNotConnected = errors.New("mqtt not connected, command not sent")
	// ErrPublishFailed means the publish was attempted and not acknowledged.
	ErrPublishFailed = errors.New("command publish failed")
)

type Actuator string

const (
	Valve Actuator = "valve"
	Fan   Actuator = "fan"
)

// Outcome labels for the command counter.
const (
	resultUnchanged     = "unchanged"
	resultSent          = "sent"
	resultNotConnected  = "not_connected"
	resultPublishFailed = "publish_failed"
	resultPersistFailed = "persist_failed"
)

// StateTransitioner runs a compare-and-update inside a room's critical section.
type StateTransitioner interface {
	Transition(ctx context.Context, roomID uint, fn func(devicestate.DeviceState) (devicestate.Patch, error)) (devicestate.DeviceState, error)
}

type Dispatcher struct {
	store     StateTransitioner
	transport transport.Publisher
	events    events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(store StateTransitioner, tr transport.Publisher, ev events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if ev == nil {
		ev = events.Nop{}
	}
	return &Dispatcher{
		store:     store,
		transport: tr,
		events:    ev,
		metrics:   m,
		logger:    logger.With("component", "dispatcher"),
	}
}

// SetValve drives the room's valve to open. A nil error means the valve was
// already in that state or the command was acknowledged and recorded.
func (d *Dispatcher) SetValve(ctx context.Context, roomID uint, open bool) error {
	return d.set(ctx, roomID, Valve, open)
}

// SetFan drives the room's fan to on.
func (d *Dispatcher) SetFan(ctx context.Context, roomID uint, on bool) error {
	return d.set(ctx, roomID, Fan, on)
}

func (d *Dispatcher) set(ctx context.Context, roomID uint, act Actuator, desired bool) error {
	logger := d.logger.With("room_id", roomID, "actuator", act, "desired", desired)

	var (
		result   string
		cmdTopic string
		payload  string
	)
	_, err := d.store.Transition(ctx, roomID, func(cur devicestate.DeviceState) (devicestate.Patch, error) {
		current := cur.ValveOn
		if act == Fan {
			current = cur.FanOn
		}
		if current == desired {
			result = resultUnchanged
			return devicestate.Patch{}, nil
		}

		if !d.transport.IsConnected() {
			result = resultNotConnected
			return devicestate.Patch{}, fmt.Errorf("%w: room %d %s", ErrNotConnected, roomID, act)
		}

		var p devicestate.Patch
		switch act {
		case Valve:
			cmdTopic, payload = topic.ValveCommandTopic(roomID), topic.ValvePayload(desired)
			p.ValveOn = devicestate.Bool(desired)
		default:
			cmdTopic, payload = topic.FanCommandTopic(roomID), topic.FanPayload(desired)
			p.FanOn = devicestate.Bool(desired)
		}

		if err := d.transport.Send(ctx, cmdTopic, []byte(payload)); err != nil {
			if errors.Is(err, transport.ErrNotConnected) {
				result = resultNotConnected
				return devicestate.Patch{}, fmt.Errorf("%w: room %d %s", ErrNotConnected, roomID, act)
			}
			result = resultPublishFailed
			return devicestate.Patch{}, fmt.Errorf("%w: room %d %s: %w", ErrPublishFailed, roomID, act, err)
		}
		result = resultSent
		return p, nil
	})

	switch {
	case err != nil && result == resultSent:
		// acknowledged by the broker but not recorded; the next cycle re-issues
		result = resultPersistFailed
		logger.Error("Command sent but state not persisted", "topic", cmdTopic, slog.Any("error", err))
	case err != nil && result == "":
		logger.Error("Failed to load device state", slog.Any("error", err))
	case err != nil:
		logger.Warn("Command not applied", "result", result, slog.Any("error", err))
	case result == resultSent:
		logger.Info("Command sent", "topic", cmdTopic, "payload", payload)
		ev := events.New(events.TypeCommandIssued, roomID, events.CommandData{
			Actuator: string(act), Topic: cmdTopic, Payload: payload, Desired: desired,
		})
		if perr := d.events.Publish(ctx, ev); perr != nil {
			logger.Warn("Failed to export command event", slog.Any("error", perr))
		}
	default:
		logger.Debug("Actuator already in desired state")
	}

	if result != "" {
		d.metrics.CommandsTotal.WithLabelValues(string(act), result).Inc()
	}
	return err
}

// Package ingest routes inbound MQTT messages to the telemetry aggregator and
// the status parser.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ecoheat/metrics"
	"ecoheat/topic"
)

// messageTimeout bounds the storage work one inbound message may trigger.
const messageTimeout = 10 * time.Second

type TelemetryIngester interface {
	Ingest(ctx context.Context, roomID uint, ch topic.Channel, payload []byte) error
}

type StatusApplier interface {
	Apply(ctx context.Context, roomID uint, payload string) error
}

type Handler struct {
	telemetry TelemetryIngester
	status    StatusApplier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewHandler(telemetry TelemetryIngester, status StatusApplier, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		telemetry: telemetry,
		status:    status,
		metrics:   m,
		logger:    logger.With("component", "ingest"),
	}
}

// Handle processes one message. Errors are logged here; the returned error is
// for callers that want to observe the outcome.
func (h *Handler) Handle(ctx context.Context, topicName string, payload []byte) error {
	route, err := topic.Parse(topicName)
	if err != nil {
		h.metrics.FragmentsDropped.WithLabelValues("malformed_topic").Inc()
		h.logger.Warn("Dropping message on malformed topic", "topic", topicName, slog.Any("error", err))
		return err
	}

	switch route.Kind {
	case topic.KindTelemetry:
		// the aggregator logs its own failures
		return h.telemetry.Ingest(ctx, route.RoomID, route.Channel, payload)
	case topic.KindStatus:
		if err := h.status.Apply(ctx, route.RoomID, string(payload)); err != nil {
			h.logger.Error("Failed to apply status message", "room_id", route.RoomID, slog.Any("error", err))
			return err
		}
		return nil
	default:
		h.logger.Debug("Ignoring message", "topic", topicName)
		return nil
	}
}

// MessageHandler adapts Handle to the MQTT client callback. Each message gets
// its own deadline derived from ctx.
func (h *Handler) MessageHandler(ctx context.Context) func(topic string, payload []byte) {
	return func(topicName string, payload []byte) {
		msgCtx, cancel := context.WithTimeout(ctx, messageTimeout)
		defer cancel()
		if err := h.Handle(msgCtx, topicName, payload); errors.Is(err, context.DeadlineExceeded) {
			h.logger.Warn("Message processing timed out", "topic", topicName, "timeout", messageTimeout.String())
		}
	}
}

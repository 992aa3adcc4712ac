// Package telemetry assembles per-channel sensor fragments into complete
// readings.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"ecoheat/metrics"
	"ecoheat/models"
	"ecoheat/topic"
)

var ErrInvalidPayload = errors.New("invalid telemetry payload")

// ReadingSink persists complete readings.
type ReadingSink interface {
	RecordReading(ctx context.Context, reading *models.SensorReading) error
}

// partial holds the fragments of one room received so far.
type partial struct {
	receivedAt  time.Time
	temperature *float64
	humidity    *float64
	presence    *bool
}

func (p *partial) complete() bool {
	return p.temperature != nil && p.humidity != nil
}

// value is a parsed fragment. Exactly one field is set.
type value struct {
	number   float64
	presence bool
}

// Aggregator merges fragments per room and flushes a reading once both
// temperature and humidity are known. Presence is optional and defaults to
// false.
type Aggregator struct {
	sink       ReadingSink
	staleAfter time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	partials map[uint]*partial
}

func NewAggregator(sink ReadingSink, staleAfter time.Duration, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		sink:       sink,
		staleAfter: staleAfter,
		metrics:    m,
		logger:     logger.With("component", "telemetry"),
		now:        time.Now,
		partials:   make(map[uint]*partial),
	}
}

func parseValue(ch topic.Channel, payload []byte) (value, error) {
	text := strings.TrimSpace(string(payload))
	switch ch {
	case topic.ChannelTemperature, topic.ChannelHumidity:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return value{}, fmt.Errorf("%w: %s %q is not a number", ErrInvalidPayload, ch, text)
		}
		return value{number: f}, nil
	case topic.ChannelPresence:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return value{}, fmt.Errorf("%w: presence %q is not a boolean", ErrInvalidPayload, text)
		}
		return value{presence: b}, nil
	default:
		return value{}, fmt.Errorf("%w: channel %q carries no telemetry", ErrInvalidPayload, ch)
	}
}

// Ingest merges one fragment. Invalid payloads are rejected before any
// partial state is touched.
func (a *Aggregator) Ingest(ctx context.Context, roomID uint, ch topic.Channel, payload []byte) error {
	v, err := parseValue(ch, payload)
	if err != nil {
		a.metrics.FragmentsDropped.WithLabelValues("invalid_payload").Inc()
		a.logger.Warn("Dropping telemetry fragment", "room_id", roomID, "channel", ch, slog.Any("error", err))
		return err
	}

	reading := a.merge(roomID, ch, v)
	if reading == nil {
		return nil
	}

	if err := a.sink.RecordReading(ctx, reading); err != nil {
		a.logger.Error("Failed to record reading", "room_id", roomID, slog.Any("error", err))
		return fmt.Errorf("record reading for room %d: %w", roomID, err)
	}
	a.metrics.ReadingsTotal.Inc()
	a.logger.Info("Reading recorded", "room_id", roomID,
		"temperature", reading.Temperature, "humidity", reading.Humidity, "presence", reading.Presence)
	return nil
}

// merge returns the completed reading, if this fragment completed one. The
// partial is removed from the map before returning.
func (a *Aggregator) merge(roomID uint, ch topic.Channel, v value) *models.SensorReading {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.sweepLocked(now)

	p, ok := a.partials[roomID]
	if !ok {
		p = &partial{receivedAt: now}
		a.partials[roomID] = p
	}
	switch ch {
	case topic.ChannelTemperature:
		p.temperature = &v.number
	case topic.ChannelHumidity:
		p.humidity = &v.number
	case topic.ChannelPresence:
		p.presence = &v.presence
	}

	if !p.complete() {
		return nil
	}
	delete(a.partials, roomID)

	reading := &models.SensorReading{
		RoomID:      roomID,
		Temperature: *p.temperature,
		Humidity:    *p.humidity,
		Timestamp:   now,
	}
	if p.presence != nil {
		reading.Presence = *p.presence
	}
	return reading
}

// Sweep discards partials older than the staleness window and returns how
// many were dropped.
func (a *Aggregator) Sweep(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sweepLocked(now)
}

func (a *Aggregator) sweepLocked(now time.Time) int {
	dropped := 0
	for roomID, p := range a.partials {
		if now.Sub(p.receivedAt) <= a.staleAfter {
			continue
		}
		delete(a.partials, roomID)
		dropped++
		a.metrics.PartialsDiscarded.Inc()
		a.logger.Warn("Discarding incomplete sample", "room_id", roomID,
			"age", now.Sub(p.receivedAt).String(),
			"has_temperature", p.temperature != nil, "has_humidity", p.humidity != nil)
	}
	return dropped
}

// Pending returns the number of rooms with an incomplete sample.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.partials)
}

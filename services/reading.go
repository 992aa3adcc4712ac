package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ecoheat/events"
	"ecoheat/models"
	"ecoheat/redis"
	"ecoheat/repositories/base"
	"ecoheat/repositories/interfaces"
)

// ReadingCache keeps the most recent reading of each room.
type ReadingCache interface {
	SaveLatestReading(ctx context.Context, reading *models.SensorReading) error
	GetLatestReading(ctx context.Context, roomID uint) (*models.SensorReading, error)
}

type RoomProvisioner interface {
	EnsureRoom(ctx context.Context, roomID uint) error
}

// ReadingService persists completed telemetry samples and serves them back.
type ReadingService struct {
	rooms  RoomProvisioner
	repo   interfaces.ReadingRepositoryInterface
	cache  ReadingCache
	events events.Publisher
	logger *slog.Logger
}

// NewReadingService creates a ReadingService. cache and ev may be nil.
func NewReadingService(
	rooms RoomProvisioner,
	repo interfaces.ReadingRepositoryInterface,
	cache ReadingCache,
	ev events.Publisher,
	logger *slog.Logger,
) *ReadingService {
	if ev == nil {
		ev = events.Nop{}
	}
	return &ReadingService{
		rooms:  rooms,
		repo:   repo,
		cache:  cache,
		events: ev,
		logger: logger.With("service", "reading_service"),
	}
}

// RecordReading stores a complete sample. The database row is the only part
// that can fail the call; cache and event export failures are logged.
func (s *ReadingService) RecordReading(ctx context.Context, reading *models.SensorReading) error {
	if err := s.rooms.EnsureRoom(ctx, reading.RoomID); err != nil {
		return err
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}
	if err := s.repo.CreateReading(ctx, reading); err != nil {
		return fmt.Errorf("failed to store reading for room %d: %w", reading.RoomID, err)
	}

	if s.cache != nil {
		if err := s.cache.SaveLatestReading(ctx, reading); err != nil {
			s.logger.Warn("Failed to cache latest reading", "room_id", reading.RoomID, slog.Any("error", err))
		}
	}
	if err := s.events.Publish(ctx, events.New(events.TypeReadingRecorded, reading.RoomID, reading)); err != nil {
		s.logger.Warn("Failed to export reading event", "room_id", reading.RoomID, slog.Any("error", err))
	}
	return nil
}

// LatestReading returns the most recent reading of a room, served from the
// cache when possible.
func (s *ReadingService) LatestReading(ctx context.Context, roomID uint) (*models.SensorReading, bool, error) {
	if s.cache != nil {
		reading, err := s.cache.GetLatestReading(ctx, roomID)
		if err == nil {
			return reading, true, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("Reading cache unavailable, using database", "room_id", roomID, slog.Any("error", err))
		}
	}

	reading, err := s.repo.GetLatestReading(ctx, roomID)
	if base.IsEntityNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load latest reading for room %d: %w", roomID, err)
	}

	if s.cache != nil {
		if err := s.cache.SaveLatestReading(ctx, reading); err != nil {
			s.logger.Debug("Failed to warm reading cache", "room_id", roomID, slog.Any("error", err))
		}
	}
	return reading, true, nil
}

// History returns readings in [start, end], most recent first.
func (s *ReadingService) History(ctx context.Context, roomID uint, start, end time.Time, limit int) ([]models.SensorReading, error) {
	if end.Before(start) {
		return nil, base.NewValidationError("end", end.Format(time.RFC3339), "end must not be before start")
	}
	return s.repo.ListReadings(ctx, roomID, start, end, limit)
}

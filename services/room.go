package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ecoheat/database"
	"ecoheat/models"
	"ecoheat/repositories"
	"ecoheat/repositories/base"
	"ecoheat/repositories/interfaces"

	"gorm.io/gorm"
)

// ErrNoOwner is returned when a room must be provisioned but no user can own it.
var ErrNoOwner = errors.New("no owner available for auto-provisioned room")

// RoomService resolves rooms and creates the ones devices report for before
// anyone registered them.
type RoomService struct {
	rooms  interfaces.RoomRepositoryInterface
	uow    database.UnitOfWorkInterface
	txRepo func(tx *gorm.DB) interfaces.RoomRepositoryInterface
	owner  string
	logger *slog.Logger

	mu    sync.Mutex
	known map[uint]struct{}
}

// NewRoomService creates a RoomService. owner is the username that owns
// auto-provisioned rooms; empty means the first admin.
func NewRoomService(
	rooms interfaces.RoomRepositoryInterface,
	uow database.UnitOfWorkInterface,
	owner string,
	logger *slog.Logger,
) *RoomService {
	return &RoomService{
		rooms:  rooms,
		uow:    uow,
		txRepo: repositories.NewRoomRepository,
		owner:  owner,
		logger: logger.With("service", "room_service"),
		known:  make(map[uint]struct{}),
	}
}

func (rs *RoomService) ListRoomIDs(ctx context.Context) ([]uint, error) {
	return rs.rooms.ListRoomIDs(ctx)
}

func (rs *RoomService) GetRoom(ctx context.Context, roomID uint) (*models.Room, error) {
	return rs.rooms.GetRoom(ctx, roomID)
}

// EnsureRoom creates room roomID named "Room {id}" if it does not exist yet.
// Existence is remembered, so the database is hit once per room per process.
func (rs *RoomService) EnsureRoom(ctx context.Context, roomID uint) error {
	if roomID == 0 {
		return base.NewValidationError("room_id", "0", "room id must be positive")
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.known[roomID]; ok {
		return nil
	}

	var created *models.Room
	err := rs.uow.Do(ctx, func(tx *gorm.DB) error {
		repo := rs.txRepo(tx)
		exists, err := repo.RoomExists(ctx, roomID)
		if err != nil || exists {
			return err
		}

		owner, err := rs.resolveOwner(ctx, repo)
		if err != nil {
			return err
		}
		room := &models.Room{ID: roomID, Name: fmt.Sprintf("Room %d", roomID), OwnerID: owner.ID}
		if err := repo.CreateRoom(ctx, room); err != nil {
			return err
		}
		created = room
		return nil
	})
	if err != nil {
		rs.logger.Error("Failed to provision room", "room_id", roomID, slog.Any("error", err))
		return fmt.Errorf("failed to provision room %d: %w", roomID, err)
	}

	rs.known[roomID] = struct{}{}
	if created != nil {
		rs.logger.Info("Room auto-provisioned", "room_id", roomID, "name", created.Name, "owner_id", created.OwnerID)
	}
	return nil
}

func (rs *RoomService) resolveOwner(ctx context.Context, repo interfaces.RoomRepositoryInterface) (*models.User, error) {
	if rs.owner != "" {
		user, err := repo.FindUserByUsername(ctx, rs.owner)
		if err == nil {
			return user, nil
		}
		if !base.IsEntityNotFound(err) {
			return nil, err
		}
		rs.logger.Warn("Configured room owner not found, falling back to first admin", "username", rs.owner)
	}

	admin, err := repo.FirstAdmin(ctx)
	if base.IsEntityNotFound(err) {
		return nil, ErrNoOwner
	}
	return admin, err
}

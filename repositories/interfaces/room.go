package interfaces

import (
	"context"

	"ecoheat/models"
)

// RoomRepositoryInterface defines the contract for room and owner lookups.
type RoomRepositoryInterface interface {
	// ListRoomIDs returns every known room id in ascending order.
	ListRoomIDs(ctx context.Context) ([]uint, error)

	// GetRoom retrieves a room by id.
	GetRoom(ctx context.Context, roomID uint) (*models.Room, error)

	// RoomExists reports whether a room row exists.
	RoomExists(ctx context.Context, roomID uint) (bool, error)

	// CreateRoom inserts a room with an explicit id.
	CreateRoom(ctx context.Context, room *models.Room) error

	// FindUserByUsername retrieves a user by username.
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)

	// FirstAdmin retrieves the admin user with the lowest id.
	FirstAdmin(ctx context.Context) (*models.User, error)
}

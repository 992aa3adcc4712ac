package repositories

import (
	"context"
	"fmt"

	"ecoheat/models"
	"ecoheat/repositories/base"
	"ecoheat/repositories/interfaces"

	"gorm.io/gorm"
)

// RoomRepository implements RoomRepositoryInterface.
type RoomRepository struct {
	rooms *base.CRUDRepository[models.Room]
	users *base.CRUDRepository[models.User]
}

func NewRoomRepository(db *gorm.DB) interfaces.RoomRepositoryInterface {
	return &RoomRepository{
		rooms: base.NewCRUDRepository[models.Room](db, "rooms"),
		users: base.NewCRUDRepository[models.User](db, "users"),
	}
}

func (r *RoomRepository) ListRoomIDs(ctx context.Context) ([]uint, error) {
	return r.rooms.PluckIDs(ctx)
}

func (r *RoomRepository) GetRoom(ctx context.Context, roomID uint) (*models.Room, error) {
	return r.rooms.GetByID(ctx, roomID)
}

func (r *RoomRepository) RoomExists(ctx context.Context, roomID uint) (bool, error) {
	return r.rooms.Exists(ctx, roomID)
}

func (r *RoomRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == 0 {
		return base.NewValidationError("id", "0", "room id must be positive")
	}
	if room.OwnerID == 0 {
		return base.NewValidationError("owner_id", "0", "room needs an owner")
	}
	return r.rooms.Create(ctx, room)
}

func (r *RoomRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.users.FirstWhere(ctx, "", fmt.Sprintf("username %s", username), "username = ?", username)
}

func (r *RoomRepository) FirstAdmin(ctx context.Context) (*models.User, error) {
	return r.users.FirstWhere(ctx, "id asc", "is_admin true", "is_admin = ?", true)
}

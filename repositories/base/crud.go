package base

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// CRUDRepository provides the lookups every table repository shares.
type CRUDRepository[T any] struct {
	db        *gorm.DB
	tableName string
}

func NewCRUDRepository[T any](db *gorm.DB, tableName string) *CRUDRepository[T] {
	return &CRUDRepository[T]{
		db:        db,
		tableName: tableName,
	}
}

// DB exposes the handle for table-specific queries.
func (r *CRUDRepository[T]) DB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *CRUDRepository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.DB(ctx).Create(entity).Error; err != nil {
		return WrapDBError("create", r.tableName, err)
	}
	return nil
}

func (r *CRUDRepository[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	var entity T
	if err := r.DB(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, HandleDBError("get", r.tableName, fmt.Sprintf("ID %d", id), err)
	}
	return &entity, nil
}

func (r *CRUDRepository[T]) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(new(T)).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, WrapDBError("check existence", r.tableName, err)
	}
	return count > 0, nil
}

// FirstWhere returns the first row matching query in the given order.
func (r *CRUDRepository[T]) FirstWhere(ctx context.Context, order, identifier string, query interface{}, args ...interface{}) (*T, error) {
	var entity T
	q := r.DB(ctx).Where(query, args...)
	if order != "" {
		q = q.Order(order)
	}
	if err := q.First(&entity).Error; err != nil {
		return nil, HandleDBError("get", r.tableName, identifier, err)
	}
	return &entity, nil
}

// PluckIDs returns all primary keys in ascending order.
func (r *CRUDRepository[T]) PluckIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.DB(ctx).Model(new(T)).Order("id asc").Pluck("id", &ids).Error; err != nil {
		return nil, WrapDBError("list", r.tableName, err)
	}
	return ids, nil
}

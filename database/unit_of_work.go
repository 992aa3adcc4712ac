package database

import (
	"context"

	"gorm.io/gorm"
)

// UnitOfWorkInterface abstracts transaction handling from the service layer.
type UnitOfWorkInterface interface {
	Begin(ctx context.Context) *gorm.DB
	Commit(tx *gorm.DB) error
	Rollback(tx *gorm.DB)
	// Do runs fn in a transaction, committing on nil and rolling back otherwise.
	Do(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type unitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWorkInterface {
	return &unitOfWork{db: db}
}

func (uow *unitOfWork) Begin(ctx context.Context) *gorm.DB {
	return uow.db.WithContext(ctx).Begin()
}

func (uow *unitOfWork) Commit(tx *gorm.DB) error {
	return tx.Commit().Error
}

func (uow *unitOfWork) Rollback(tx *gorm.DB) {
	// Only roll back if the transaction hasn't been committed or already rolled back.
	if tx.Error == nil {
		tx.Rollback()
	}
}

func (uow *unitOfWork) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := uow.Begin(ctx)
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			uow.Rollback(tx)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		uow.Rollback(tx)
		return err
	}
	return uow.Commit(tx)
}

package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/shop/backend/internal/domain/order"
	"github.com/shop/backend/internal/domain/payment"
)

// GormUnitOfWork binds repositories to a single database transaction
// Row locks taken through the bound repositories are held until commit
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a unit of work over the given connection
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs fn inside a transaction with transaction-bound repositories
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(payments payment.Repository, orders order.Repository) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormPaymentRepository(tx), NewGormOrderRepository(tx))
	})
}

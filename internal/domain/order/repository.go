package order

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists order aggregates
type Repository interface {
	// Save persists a new order
	Save(ctx context.Context, o *Order) error

	// SaveWithLock persists an existing order using optimistic locking
	// Returns shared.ErrConcurrencyConflict if the version does not match
	SaveWithLock(ctx context.Context, o *Order) error

	// FindByID retrieves an order by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDForUpdate retrieves an order by ID with a row lock
	// Must be called within a transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByOrderNumber retrieves an order by its order number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindByCustomer retrieves orders for a customer, newest first
	FindByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*Order, error)
}

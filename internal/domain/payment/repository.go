package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists payment aggregates
type Repository interface {
	// Save persists a new payment
	Save(ctx context.Context, p *Payment) error

	// SaveWithLock persists an existing payment using optimistic locking
	// Returns shared.ErrConcurrencyConflict if the version does not match
	SaveWithLock(ctx context.Context, p *Payment) error

	// FindByID retrieves a payment by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByTransactionID retrieves a payment by its provider transaction reference
	FindByTransactionID(ctx context.Context, transactionID string) (*Payment, error)

	// FindByTransactionIDForUpdate retrieves a payment by transaction reference
	// with a row lock, must be called within a transaction
	FindByTransactionIDForUpdate(ctx context.Context, transactionID string) (*Payment, error)

	// FindByOrder retrieves all payments for an order, newest first
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*Payment, error)
}

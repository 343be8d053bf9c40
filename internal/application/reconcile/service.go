package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/order"
	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/domain/shared"
)

// UnitOfWork runs a function with repositories bound to one database
// transaction so row locks taken inside are held until commit
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(payments payment.Repository, orders order.Repository) error) error
}

// Outcome classifies what a webhook delivery did
type Outcome string

const (
	OutcomeProcessed          Outcome = "processed"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeIgnored            Outcome = "ignored"
	OutcomeStale              Outcome = "stale"
	OutcomeUnknownTransaction Outcome = "unknown_transaction"
)

// Result is the outcome of processing a webhook delivery
type Result struct {
	Outcome       Outcome `json:"outcome"`
	EventID       string  `json:"event_id,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
}

// Service reconciles provider webhook notifications against local
// payment and order state
type Service struct {
	gateways    map[string]payment.Gateway
	uow         UnitOfWork
	idempotency shared.IdempotencyStore
	ttl         time.Duration
	eventBus    shared.EventPublisher
	logger      *zap.Logger
}

// NewService creates a reconciliation service
func NewService(
	gateways []payment.Gateway,
	uow UnitOfWork,
	idempotency shared.IdempotencyStore,
	idempotencyTTL time.Duration,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *Service {
	byProvider := make(map[string]payment.Gateway, len(gateways))
	for _, gw := range gateways {
		byProvider[gw.Provider()] = gw
	}
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &Service{
		gateways:    byProvider,
		uow:         uow,
		idempotency: idempotency,
		ttl:         idempotencyTTL,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// ProcessWebhook verifies, deduplicates and applies one webhook delivery.
// Redeliveries of an already processed event and events for transactions
// we do not know are acknowledged without touching any state.
func (s *Service) ProcessWebhook(ctx context.Context, provider string, payload []byte, header http.Header) (*Result, error) {
	gw, ok := s.gateways[provider]
	if !ok {
		return nil, shared.NewDomainError("UNKNOWN_PROVIDER",
			fmt.Sprintf("No gateway registered for provider %q", provider))
	}

	event, err := gw.VerifyWebhook(payload, header)
	if err != nil {
		return nil, err
	}

	if event.Kind == payment.EventKindIgnored {
		s.logger.Debug("ignoring webhook event",
			zap.String("provider", provider),
			zap.String("event_id", event.EventID))
		return &Result{Outcome: OutcomeIgnored, EventID: event.EventID}, nil
	}

	// Deduplicate on the provider event ID, a redelivery settles here
	// Providers that omit event IDs fall back to transaction and kind
	dedupeKey := provider + ":" + event.EventID
	if event.EventID == "" {
		dedupeKey = provider + ":" + event.TransactionID + ":" + string(event.Kind)
	}
	fresh, err := s.idempotency.MarkProcessed(ctx, dedupeKey, s.ttl)
	if err != nil {
		return nil, err
	}
	if !fresh {
		s.logger.Info("duplicate webhook event",
			zap.String("provider", provider),
			zap.String("event_id", event.EventID))
		return &Result{Outcome: OutcomeDuplicate, EventID: event.EventID}, nil
	}

	result, err := s.apply(ctx, provider, event)
	if err != nil {
		// Release the mark so the provider's retry can be processed
		if relErr := s.idempotency.Release(ctx, dedupeKey); relErr != nil {
			s.logger.Error("failed to release idempotency mark",
				zap.String("event_id", event.EventID),
				zap.Error(relErr))
		}
		return nil, err
	}
	return result, nil
}

// apply updates the payment and its order inside one transaction
func (s *Service) apply(ctx context.Context, provider string, event *payment.GatewayEvent) (*Result, error) {
	var (
		unknown bool
		stale   bool
		events  []shared.DomainEvent
	)

	err := s.uow.Execute(ctx, func(payments payment.Repository, orders order.Repository) error {
		p, err := payments.FindByTransactionIDForUpdate(ctx, event.TransactionID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				unknown = true
				return nil
			}
			return err
		}

		// Statuses only move forward, an event that conflicts with a
		// terminal state is stale and must be acknowledged, not retried
		if !applicable(p.Status, event.Kind) {
			stale = true
			return nil
		}

		o, err := orders.FindByIDForUpdate(ctx, p.OrderID)
		if err != nil {
			return err
		}

		switch event.Kind {
		case payment.EventKindSucceeded:
			if err := p.Complete(); err != nil {
				return err
			}
			if err := o.MarkPaid(); err != nil {
				return err
			}
		case payment.EventKindFailed:
			if err := p.Fail("reported failed by provider"); err != nil {
				return err
			}
			// Another attempt may have settled the order first, the
			// failure then concerns this payment only
			if o.PaymentStatus == order.PaymentStatusUnpaid {
				if err := o.MarkPaymentFailed(); err != nil {
					return err
				}
			}
		case payment.EventKindRefunded:
			if err := p.Refund(); err != nil {
				return err
			}
			if err := o.MarkRefunded(); err != nil {
				return err
			}
		}

		p.IncrementVersion()
		if err := payments.SaveWithLock(ctx, p); err != nil {
			return err
		}
		o.IncrementVersion()
		if err := orders.SaveWithLock(ctx, o); err != nil {
			return err
		}

		events = append(events, p.GetDomainEvents()...)
		events = append(events, o.GetDomainEvents()...)
		p.ClearDomainEvents()
		o.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stale {
		s.logger.Warn("stale webhook event for settled payment",
			zap.String("provider", provider),
			zap.String("event_id", event.EventID),
			zap.String("transaction_id", event.TransactionID),
			zap.String("kind", string(event.Kind)))
		return &Result{
			Outcome:       OutcomeStale,
			EventID:       event.EventID,
			TransactionID: event.TransactionID,
		}, nil
	}

	if unknown {
		// Acknowledge so the provider stops retrying, the operator
		// investigates from the log
		s.logger.Warn("webhook for unknown transaction",
			zap.String("provider", provider),
			zap.String("event_id", event.EventID),
			zap.String("transaction_id", event.TransactionID))
		return &Result{
			Outcome:       OutcomeUnknownTransaction,
			EventID:       event.EventID,
			TransactionID: event.TransactionID,
		}, nil
	}

	if len(events) > 0 {
		if err := s.eventBus.Publish(ctx, events...); err != nil {
			s.logger.Error("failed to publish reconciliation events", zap.Error(err))
		}
	}

	s.logger.Info("webhook reconciled",
		zap.String("provider", provider),
		zap.String("event_id", event.EventID),
		zap.String("transaction_id", event.TransactionID),
		zap.String("kind", string(event.Kind)))

	return &Result{
		Outcome:       OutcomeProcessed,
		EventID:       event.EventID,
		TransactionID: event.TransactionID,
	}, nil
}

// applicable reports whether the event can still move the payment forward
func applicable(status payment.Status, kind payment.EventKind) bool {
	switch kind {
	case payment.EventKindSucceeded:
		return status.CanTransitionTo(payment.StatusCompleted)
	case payment.EventKindFailed:
		return status.CanTransitionTo(payment.StatusFailed)
	case payment.EventKindRefunded:
		return status.CanTransitionTo(payment.StatusRefunded)
	}
	return false
}

package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/order"
	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/domain/shared"
)

// Service orchestrates payment initiation against the provider gateways
type Service struct {
	orders   order.Repository
	payments payment.Repository
	gateways map[payment.Method]payment.Gateway
	eventBus shared.EventPublisher
	logger   *zap.Logger
}

// NewService creates a checkout service
// Each gateway is registered for every method it declares
func NewService(
	orders order.Repository,
	payments payment.Repository,
	gateways []payment.Gateway,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *Service {
	byMethod := make(map[payment.Method]payment.Gateway, len(gateways))
	for _, gw := range gateways {
		for _, m := range gw.Methods() {
			byMethod[m] = gw
		}
	}
	return &Service{
		orders:   orders,
		payments: payments,
		gateways: byMethod,
		eventBus: eventBus,
		logger:   logger,
	}
}

// InitiatePayment creates a payment attempt for an order and hands it to
// the provider. The order itself is never advanced here, settlement is
// confirmed asynchronously by webhook reconciliation.
func (s *Service) InitiatePayment(ctx context.Context, cmd InitiatePaymentCommand) (*PaymentResult, error) {
	if !cmd.Method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD",
			fmt.Sprintf("Unsupported payment method %q", cmd.Method))
	}
	gw, ok := s.gateways[cmd.Method]
	if !ok {
		return nil, shared.NewDomainError("METHOD_NOT_CONFIGURED",
			fmt.Sprintf("No gateway configured for method %q", cmd.Method))
	}

	o, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != cmd.CustomerID {
		return nil, shared.ErrForbidden
	}
	if !o.IsPayable() {
		return nil, shared.NewDomainError("ORDER_NOT_PAYABLE",
			fmt.Sprintf("Order %s cannot accept a payment in status %s/%s",
				o.OrderNumber, o.Status, o.PaymentStatus))
	}

	p, err := payment.NewPayment(o.ID, o.CustomerID, cmd.Method, o.Total())
	if err != nil {
		return nil, err
	}
	// Persisted as processing before the provider is called, a crash
	// mid-charge leaves an auditable record for reconciliation
	if err := p.MarkProcessing(); err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("initiating payment",
		zap.String("payment_id", p.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.String("method", string(cmd.Method)))

	result, err := gw.CreateCharge(ctx, payment.ChargeRequest{
		PaymentID:   p.ID,
		OrderNumber: o.OrderNumber,
		Amount:      o.Total(),
		Method:      cmd.Method,
		CustomerID:  o.CustomerID,
		Description: fmt.Sprintf("Order %s", o.OrderNumber),
		Extra:       cmd.Extra,
	})
	if err != nil {
		return s.handleChargeError(ctx, p, err)
	}

	p.AttachTransaction(result.TransactionID)
	p.AnnotateData(result.Data)

	// Keep the latest gateway reference on the order for support lookups
	// The payment record stays the authoritative trail, so a failure here
	// does not abort the initiation
	o.RecordPaymentAttempt(string(cmd.Method), result.TransactionID)
	o.IncrementVersion()
	if err := s.orders.SaveWithLock(ctx, o); err != nil {
		s.logger.Warn("failed to record payment attempt on order",
			zap.String("order_number", o.OrderNumber), zap.Error(err))
	}

	switch result.Status {
	case payment.StatusCompleted:
		// Synchronous settlement still waits for the provider webhook
		// before the order advances
		if err := p.Complete(); err != nil {
			return nil, err
		}
	case payment.StatusFailed:
		if err := p.Fail("declined by provider"); err != nil {
			return nil, err
		}
	default:
		if err := p.MarkProcessing(); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx, p); err != nil {
		return nil, err
	}
	return newPaymentResult(p), nil
}

// WalletCapturer is implemented by gateways whose wallet flow needs an
// explicit capture call after the buyer approves at the provider
type WalletCapturer interface {
	CaptureOrder(ctx context.Context, orderID, payerID string) (payment.Status, error)
}

// CaptureWalletPayment captures an approved wallet payment when the buyer
// returns from the provider. The order still advances only on the
// provider's webhook.
func (s *Service) CaptureWalletPayment(ctx context.Context, paymentID, customerID uuid.UUID, payerID string) (*PaymentResult, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.CustomerID != customerID {
		return nil, shared.ErrForbidden
	}
	if p.Method != payment.MethodWallet {
		return nil, shared.NewDomainError("INVALID_METHOD",
			fmt.Sprintf("Payments by %s do not need a capture step", p.Method))
	}
	if p.Status != payment.StatusProcessing {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Payment cannot be captured in status %s", p.Status))
	}

	capturer, ok := s.gateways[payment.MethodWallet].(WalletCapturer)
	if !ok {
		return nil, shared.NewDomainError("METHOD_NOT_CONFIGURED",
			"The wallet gateway does not support capture")
	}

	s.logger.Info("capturing wallet payment",
		zap.String("payment_id", p.ID.String()),
		zap.String("transaction_id", p.TransactionID))

	status, err := capturer.CaptureOrder(ctx, p.TransactionID, payerID)
	if err != nil {
		return s.handleChargeError(ctx, p, err)
	}

	switch status {
	case payment.StatusCompleted:
		if err := p.Complete(); err != nil {
			return nil, err
		}
	case payment.StatusFailed:
		if err := p.Fail("capture declined by provider"); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx, p); err != nil {
		return nil, err
	}
	return newPaymentResult(p), nil
}

// GetPayment returns a payment visible to the requesting customer
func (s *Service) GetPayment(ctx context.Context, paymentID, customerID uuid.UUID) (*PaymentResult, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.CustomerID != customerID {
		return nil, shared.ErrForbidden
	}
	return newPaymentResult(p), nil
}

// ListOrderPayments returns the payment attempts for an order, newest first
func (s *Service) ListOrderPayments(ctx context.Context, orderID, customerID uuid.UUID) ([]*PaymentResult, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, shared.ErrForbidden
	}

	payments, err := s.payments.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	results := make([]*PaymentResult, 0, len(payments))
	for _, p := range payments {
		results = append(results, newPaymentResult(p))
	}
	return results, nil
}

// handleChargeError records the outcome of a failed provider call
// Timeouts leave the payment processing because the provider may have
// accepted the charge, the truth arrives later by webhook or status poll
func (s *Service) handleChargeError(ctx context.Context, p *payment.Payment, chargeErr error) (*PaymentResult, error) {
	var gwErr *payment.GatewayError
	if !errors.As(chargeErr, &gwErr) {
		return nil, chargeErr
	}

	s.logger.Warn("charge failed at provider",
		zap.String("payment_id", p.ID.String()),
		zap.String("provider", gwErr.Provider),
		zap.String("code", string(gwErr.Code)),
		zap.Error(chargeErr))

	switch gwErr.Code {
	case payment.GatewayErrTimeout:
		if err := p.MarkProcessing(); err != nil {
			return nil, err
		}
	default:
		if err := p.Fail(string(gwErr.Code)); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx, p); err != nil {
		return nil, err
	}
	return nil, chargeErr
}

func (s *Service) persist(ctx context.Context, p *payment.Payment) error {
	p.IncrementVersion()
	if err := s.payments.SaveWithLock(ctx, p); err != nil {
		return err
	}
	events := p.GetDomainEvents()
	p.ClearDomainEvents()
	if len(events) > 0 {
		if err := s.eventBus.Publish(ctx, events...); err != nil {
			s.logger.Error("failed to publish payment events", zap.Error(err))
		}
	}
	return nil
}

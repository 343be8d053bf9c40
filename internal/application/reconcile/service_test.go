package reconcile

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/order"
	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/shared/valueobject"
	"github.com/shop/backend/internal/infrastructure/cache"
)

type memoryOrderRepo struct {
	orders map[uuid.UUID]*order.Order
}

func (r *memoryOrderRepo) Save(_ context.Context, o *order.Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *memoryOrderRepo) SaveWithLock(_ context.Context, o *order.Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *memoryOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *memoryOrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memoryOrderRepo) FindByOrderNumber(_ context.Context, orderNumber string) (*order.Order, error) {
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryOrderRepo) FindByCustomer(_ context.Context, customerID uuid.UUID, _, _ int) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

type memoryPaymentRepo struct {
	payments map[uuid.UUID]*payment.Payment
}

func (r *memoryPaymentRepo) Save(_ context.Context, p *payment.Payment) error {
	r.payments[p.ID] = p
	return nil
}

func (r *memoryPaymentRepo) SaveWithLock(_ context.Context, p *payment.Payment) error {
	r.payments[p.ID] = p
	return nil
}

func (r *memoryPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryPaymentRepo) FindByTransactionID(_ context.Context, transactionID string) (*payment.Payment, error) {
	for _, p := range r.payments {
		if p.TransactionID == transactionID {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryPaymentRepo) FindByTransactionIDForUpdate(ctx context.Context, transactionID string) (*payment.Payment, error) {
	return r.FindByTransactionID(ctx, transactionID)
}

func (r *memoryPaymentRepo) FindByOrder(_ context.Context, orderID uuid.UUID) ([]*payment.Payment, error) {
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

// memoryUnitOfWork hands the in-memory repositories to the callback
// An optional failure is injected once to exercise the retry path
type memoryUnitOfWork struct {
	payments *memoryPaymentRepo
	orders   *memoryOrderRepo
	failOnce error
}

func (u *memoryUnitOfWork) Execute(_ context.Context, fn func(payments payment.Repository, orders order.Repository) error) error {
	if u.failOnce != nil {
		err := u.failOnce
		u.failOnce = nil
		return err
	}
	return fn(u.payments, u.orders)
}

type stubGateway struct {
	provider string
	event    *payment.GatewayEvent
	err      error
}

func (g *stubGateway) Provider() string          { return g.provider }
func (g *stubGateway) Methods() []payment.Method { return []payment.Method{payment.MethodCard} }

func (g *stubGateway) CreateCharge(_ context.Context, _ payment.ChargeRequest) (*payment.ChargeResult, error) {
	return nil, errors.New("not implemented")
}

func (g *stubGateway) Refund(_ context.Context, _ payment.RefundRequest) (*payment.RefundResult, error) {
	return nil, errors.New("not implemented")
}

func (g *stubGateway) CheckStatus(_ context.Context, _ string) (payment.Status, error) {
	return payment.StatusProcessing, nil
}

func (g *stubGateway) VerifyWebhook(_ []byte, _ http.Header) (*payment.GatewayEvent, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.event, nil
}

type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

type reconcileFixture struct {
	service     *Service
	uow         *memoryUnitOfWork
	idempotency *cache.MemoryIdempotencyStore
	bus         *recordingPublisher
}

func newReconcileFixture(t *testing.T, gw payment.Gateway) *reconcileFixture {
	t.Helper()
	uow := &memoryUnitOfWork{
		payments: &memoryPaymentRepo{payments: make(map[uuid.UUID]*payment.Payment)},
		orders:   &memoryOrderRepo{orders: make(map[uuid.UUID]*order.Order)},
	}
	store := cache.NewMemoryIdempotencyStore()
	t.Cleanup(func() { store.Close() })
	bus := &recordingPublisher{}
	return &reconcileFixture{
		service:     NewService([]payment.Gateway{gw}, uow, store, time.Hour, bus, zap.NewNop()),
		uow:         uow,
		idempotency: store,
		bus:         bus,
	}
}

// seedProcessing stores a pending order with a processing payment
// attached to the given transaction reference
func (f *reconcileFixture) seedProcessing(t *testing.T, transactionID string) (*order.Order, *payment.Payment) {
	t.Helper()
	o, err := order.NewOrder(uuid.New(), "ORD-20260831-0002", "BRL", []order.Item{
		{ProductID: uuid.New(), ProductName: "USB Cable", Quantity: 2, UnitPrice: decimal.NewFromFloat(25.00)},
	})
	require.NoError(t, err)
	o.ClearDomainEvents()
	f.uow.orders.orders[o.ID] = o

	amount, err := valueobject.NewMoney(decimal.NewFromFloat(50.00), "BRL")
	require.NoError(t, err)
	p, err := payment.NewPayment(o.ID, o.CustomerID, payment.MethodCard, amount)
	require.NoError(t, err)
	require.NoError(t, p.MarkProcessing())
	p.AttachTransaction(transactionID)
	f.uow.payments.payments[p.ID] = p
	return o, p
}

func succeededEvent(eventID, transactionID string) *payment.GatewayEvent {
	return &payment.GatewayEvent{
		Kind:          payment.EventKindSucceeded,
		EventID:       eventID,
		TransactionID: transactionID,
		OccurredAt:    time.Now(),
	}
}

func TestProcessWebhookSucceeded(t *testing.T) {
	gw := &stubGateway{provider: "stripe", event: succeededEvent("evt_1", "pi_1")}
	f := newReconcileFixture(t, gw)
	o, p := f.seedProcessing(t, "pi_1")

	result, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, result.Outcome)
	assert.Equal(t, "evt_1", result.EventID)
	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Equal(t, order.PaymentStatusPaid, o.PaymentStatus)

	types := make([]string, 0, len(f.bus.events))
	for _, e := range f.bus.events {
		types = append(types, e.EventType())
	}
	assert.Contains(t, types, payment.EventPaymentCompleted)
	assert.Contains(t, types, order.EventOrderPaid)
}

func TestProcessWebhookDuplicate(t *testing.T) {
	gw := &stubGateway{provider: "stripe", event: succeededEvent("evt_1", "pi_1")}
	f := newReconcileFixture(t, gw)
	f.seedProcessing(t, "pi_1")

	first, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, first.Outcome)

	published := len(f.bus.events)

	second, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Len(t, f.bus.events, published)
}

func TestProcessWebhookInvalidSignature(t *testing.T) {
	gw := &stubGateway{
		provider: "stripe",
		err:      payment.NewGatewayError("stripe", payment.GatewayErrInvalidResponse, "invalid signature", nil),
	}
	f := newReconcileFixture(t, gw)
	o, p := f.seedProcessing(t, "pi_1")

	_, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.Error(t, err)

	assert.Equal(t, payment.StatusProcessing, p.Status)
	assert.Equal(t, order.PaymentStatusUnpaid, o.PaymentStatus)
	assert.Empty(t, f.bus.events)
}

func TestProcessWebhookFailed(t *testing.T) {
	gw := &stubGateway{provider: "stripe", event: &payment.GatewayEvent{
		Kind:          payment.EventKindFailed,
		EventID:       "evt_2",
		TransactionID: "pi_1",
	}}
	f := newReconcileFixture(t, gw)
	o, p := f.seedProcessing(t, "pi_1")

	result, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, result.Outcome)
	assert.Equal(t, payment.StatusFailed, p.Status)

	// The order stays open so the customer can try again
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentStatusUnpaid, o.PaymentStatus)
	assert.True(t, o.IsPayable())
}

func TestProcessWebhookRefunded(t *testing.T) {
	gw := &stubGateway{provider: "stripe", event: &payment.GatewayEvent{
		Kind:          payment.EventKindRefunded,
		EventID:       "evt_3",
		TransactionID: "pi_1",
	}}
	f := newReconcileFixture(t, gw)
	o, p := f.seedProcessing(t, "pi_1")
	require.NoError(t, p.Complete())
	require.NoError(t, o.MarkPaid())
	p.ClearDomainEvents()
	o.ClearDomainEvents()

	result, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, result.Outcome)
	assert.Equal(t, payment.StatusRefunded, p.Status)
	assert.Equal(t, order.StatusRefunded, o.Status)
	assert.Equal(t, order.PaymentStatusRefunded, o.PaymentStatus)
}

func TestProcessWebhookUnknownTransaction(t *testing.T) {
	gw := &stubGateway{provider: "stripe", event: succeededEvent("evt_4", "pi_missing")}
	f := newReconcileFixture(t, gw)

	result, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnknownTransaction, result.Outcome)
	assert.Equal(t, "pi_missing", result.TransactionID)
	assert.Empty(t, f.bus.events)
}

func TestProcessWebhookStaleEvent(t *testing.T) {
	gw := &stubGateway{provider: "stripe", event: &payment.GatewayEvent{
		Kind:          payment.EventKindFailed,
		EventID:       "evt_5",
		TransactionID: "pi_1",
	}}
	f := newReconcileFixture(t, gw)
	o, p := f.seedProcessing(t, "pi_1")
	require.NoError(t, p.Complete())
	require.NoError(t, o.MarkPaid())
	p.ClearDomainEvents()
	o.ClearDomainEvents()

	result, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeStale, result.Outcome)
	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Equal(t, order.PaymentStatusPaid, o.PaymentStatus)
	assert.Empty(t, f.bus.events)
}

func TestProcessWebhookFailedAfterOrderSettled(t *testing.T) {
	// A timeout left attempt pi_a processing, a second attempt pi_b paid
	// the order. The late failure for pi_a must settle that payment
	// without touching the paid order.
	gw := &stubGateway{provider: "stripe", event: &payment.GatewayEvent{
		Kind:          payment.EventKindFailed,
		EventID:       "evt_10",
		TransactionID: "pi_a",
	}}
	f := newReconcileFixture(t, gw)
	o, p := f.seedProcessing(t, "pi_a")
	require.NoError(t, o.MarkPaid())
	o.ClearDomainEvents()

	result, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, result.Outcome)
	assert.Equal(t, payment.StatusFailed, p.Status)
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Equal(t, order.PaymentStatusPaid, o.PaymentStatus)
}

func TestProcessWebhookIgnoredEvent(t *testing.T) {
	gw := &stubGateway{provider: "stripe", event: &payment.GatewayEvent{
		Kind:    payment.EventKindIgnored,
		EventID: "evt_6",
	}}
	f := newReconcileFixture(t, gw)

	result, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)

	// Ignored events must not consume the idempotency key
	marked, err := f.idempotency.IsProcessed(context.Background(), "stripe:evt_6")
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestProcessWebhookUnknownProvider(t *testing.T) {
	gw := &stubGateway{provider: "stripe", event: succeededEvent("evt_7", "pi_1")}
	f := newReconcileFixture(t, gw)

	_, err := f.service.ProcessWebhook(context.Background(), "paypal", []byte("{}"), http.Header{})
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNKNOWN_PROVIDER", domainErr.Code)
}

func TestProcessWebhookReleasesMarkOnFailure(t *testing.T) {
	gw := &stubGateway{provider: "stripe", event: succeededEvent("evt_8", "pi_1")}
	f := newReconcileFixture(t, gw)
	o, p := f.seedProcessing(t, "pi_1")

	f.uow.failOnce = errors.New("deadlock detected")

	_, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.Error(t, err)

	marked, err := f.idempotency.IsProcessed(context.Background(), "stripe:evt_8")
	require.NoError(t, err)
	assert.False(t, marked, "failed processing must release the idempotency mark")

	// The provider's redelivery now settles the payment
	result, err := f.service.ProcessWebhook(context.Background(), "stripe", []byte("{}"), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, result.Outcome)
	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Equal(t, order.PaymentStatusPaid, o.PaymentStatus)
}

package order

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/shared/valueobject"
)

// Status represents the fulfillment status of an order
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// CanTransitionTo checks whether a status transition is allowed
func (s Status) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
		StatusShipped:    {StatusDelivered, StatusRefunded},
		StatusDelivered:  {StatusRefunded},
		StatusCancelled:  {},
		StatusRefunded:   {},
	}
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// PaymentStatus represents the settlement status of an order
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Item is a line item within an order
type Item struct {
	shared.BaseEntity
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName string          `gorm:"size:255;not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

// Subtotal returns quantity times unit price
func (i *Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the aggregate root for a customer order
type Order struct {
	shared.BaseAggregateRoot
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderNumber   string          `gorm:"size:32;uniqueIndex;not null"`
	Status        Status          `gorm:"size:20;not null;default:'pending'"`
	PaymentStatus PaymentStatus   `gorm:"size:20;not null;default:'unpaid'"`
	Currency      string          `gorm:"size:3;not null"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Items         []Item          `gorm:"foreignKey:OrderID"`
	// PaymentMethod and GatewayIntentID track the most recent payment
	// attempt so support staff can find the charge at the provider
	PaymentMethod   string `gorm:"size:20"`
	GatewayIntentID string `gorm:"size:255"`
	Active          bool   `gorm:"not null;default:true"`
}

// TableName returns the database table name
func (Order) TableName() string {
	return "orders"
}

// TableName returns the database table name
func (Item) TableName() string {
	return "order_items"
}

// NewOrder creates a new pending order with the given items
func NewOrder(customerID uuid.UUID, orderNumber, currency string, items []Item) (*Order, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID is required")
	}
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number is required")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("EMPTY_ORDER", "Order must have at least one item")
	}

	total := decimal.Zero
	for i := range items {
		if items[i].Quantity <= 0 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Item quantity must be positive")
		}
		if items[i].UnitPrice.IsNegative() {
			return nil, shared.NewDomainError("INVALID_PRICE", "Item price cannot be negative")
		}
		total = total.Add(items[i].Subtotal())
	}

	money, err := valueobject.NewMoney(total, currency)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_CURRENCY", err.Error())
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		OrderNumber:       orderNumber,
		Status:            StatusPending,
		PaymentStatus:     PaymentStatusUnpaid,
		Currency:          money.Currency,
		TotalAmount:       money.Amount,
		Items:             items,
		Active:            true,
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	o.AddDomainEvent(NewOrderCreatedEvent(o))
	return o, nil
}

// Total returns the order total as a money value
func (o *Order) Total() valueobject.Money {
	return valueobject.Money{Amount: o.TotalAmount, Currency: o.Currency}
}

// IsPayable reports whether a payment may be initiated for this order
func (o *Order) IsPayable() bool {
	return o.Active && o.Status == StatusPending && o.PaymentStatus == PaymentStatusUnpaid
}

// RecordPaymentAttempt stores the method and gateway reference of the
// latest payment attempt
func (o *Order) RecordPaymentAttempt(method, gatewayIntentID string) {
	o.PaymentMethod = method
	o.GatewayIntentID = gatewayIntentID
}

// MarkPaid records a confirmed settlement and moves the order to processing
func (o *Order) MarkPaid() error {
	if o.PaymentStatus == PaymentStatusPaid {
		return nil
	}
	if o.PaymentStatus != PaymentStatusUnpaid {
		return shared.NewDomainError("INVALID_PAYMENT_STATUS",
			fmt.Sprintf("Cannot mark order paid from payment status %s", o.PaymentStatus))
	}
	if !o.Status.CanTransitionTo(StatusProcessing) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot move order from %s to %s", o.Status, StatusProcessing))
	}
	o.Status = StatusProcessing
	o.PaymentStatus = PaymentStatusPaid
	o.AddDomainEvent(NewOrderPaidEvent(o))
	return nil
}

// MarkPaymentFailed records a failed settlement attempt
// The order stays pending and unpaid so the customer can retry
func (o *Order) MarkPaymentFailed() error {
	if o.PaymentStatus != PaymentStatusUnpaid {
		return shared.NewDomainError("INVALID_PAYMENT_STATUS",
			fmt.Sprintf("Cannot record payment failure with payment status %s", o.PaymentStatus))
	}
	o.AddDomainEvent(NewOrderPaymentFailedEvent(o))
	return nil
}

// MarkRefunded records a confirmed refund of a paid order
func (o *Order) MarkRefunded() error {
	if o.PaymentStatus == PaymentStatusRefunded {
		return nil
	}
	if o.PaymentStatus != PaymentStatusPaid {
		return shared.NewDomainError("INVALID_PAYMENT_STATUS",
			fmt.Sprintf("Cannot refund order with payment status %s", o.PaymentStatus))
	}
	if !o.Status.CanTransitionTo(StatusRefunded) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot move order from %s to %s", o.Status, StatusRefunded))
	}
	o.Status = StatusRefunded
	o.PaymentStatus = PaymentStatusRefunded
	o.AddDomainEvent(NewOrderRefundedEvent(o))
	return nil
}

// Ship moves a paid order from processing to shipped
func (o *Order) Ship() error {
	if o.PaymentStatus != PaymentStatusPaid {
		return shared.NewDomainError("ORDER_NOT_PAID", "Cannot ship an unpaid order")
	}
	if !o.Status.CanTransitionTo(StatusShipped) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot move order from %s to %s", o.Status, StatusShipped))
	}
	o.Status = StatusShipped
	return nil
}

// Deliver moves a shipped order to delivered
func (o *Order) Deliver() error {
	if !o.Status.CanTransitionTo(StatusDelivered) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot move order from %s to %s", o.Status, StatusDelivered))
	}
	o.Status = StatusDelivered
	return nil
}

// Cancel cancels an order before it ships
func (o *Order) Cancel() error {
	if o.PaymentStatus == PaymentStatusPaid && o.Status != StatusProcessing {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION", "Cannot cancel a shipped order")
	}
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot move order from %s to %s", o.Status, StatusCancelled))
	}
	o.Status = StatusCancelled
	return nil
}

// Deactivate soft-deletes the order
func (o *Order) Deactivate() {
	o.Active = false
}

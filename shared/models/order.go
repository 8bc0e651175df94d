package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCOD        PaymentMethod = "cash_on_delivery"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodNetbanking PaymentMethod = "netbanking"
	PaymentMethodWallet     PaymentMethod = "wallet"
	PaymentMethodGatewayB   PaymentMethod = "gateway_b"
)

// Gateway names as recorded on orders and used for webhook dispatch.
const (
	GatewayIntent = "intent"
	GatewayOrder  = "order"
)

// GatewayForMethod maps a payment method to the gateway that serves it.
// Cash on delivery needs no gateway and maps to the empty string.
func GatewayForMethod(m PaymentMethod) string {
	switch m {
	case PaymentMethodCard:
		return GatewayIntent
	case PaymentMethodUPI, PaymentMethodNetbanking, PaymentMethodWallet, PaymentMethodGatewayB:
		return GatewayOrder
	default:
		return ""
	}
}

// GuestContact identifies a guest purchaser.
type GuestContact struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone" json:"phone"`
}

// Owner is a tagged variant: exactly one of UserID or Guest is set.
// Use NewUserOwner / NewGuestOwner instead of building it by hand.
type Owner struct {
	UserID string        `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Guest  *GuestContact `bson:"guest,omitempty" json:"guest,omitempty"`
}

func NewUserOwner(userID string) Owner {
	return Owner{UserID: userID}
}

func NewGuestOwner(contact GuestContact) Owner {
	return Owner{Guest: &contact}
}

func (o Owner) Validate() error {
	if o.UserID != "" && o.Guest != nil {
		return &ValidationError{Msg: "owner must be either a user or a guest, not both"}
	}
	if o.UserID == "" && o.Guest == nil {
		return &ValidationError{Msg: "owner is required"}
	}
	if o.Guest != nil && (o.Guest.Name == "" || o.Guest.Email == "") {
		return &ValidationError{Msg: "guest contact requires name and email"}
	}
	return nil
}

// Key returns the identifier used for cart ownership and order listing.
func (o Owner) Key() string {
	if o.UserID != "" {
		return o.UserID
	}
	if o.Guest != nil {
		return o.Guest.Email
	}
	return ""
}

type Address struct {
	Line1      string `bson:"line1" json:"line1"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state" json:"state"`
	PostalCode string `bson:"postal_code" json:"postal_code"`
	Country    string `bson:"country" json:"country"`
}

func (a Address) Validate() error {
	if a.Line1 == "" || a.City == "" || a.State == "" || a.PostalCode == "" || a.Country == "" {
		return &ValidationError{Msg: "shipping address requires line1, city, state, postal code and country"}
	}
	return nil
}

// OrderItem is a line item with product details frozen at order time.
type OrderItem struct {
	ProductID     string `bson:"product_id" json:"product_id"`
	NameSnapshot  string `bson:"name_snapshot" json:"name_snapshot"`
	ImageSnapshot string `bson:"image_snapshot,omitempty" json:"image_snapshot,omitempty"`
	UnitPrice     int64  `bson:"unit_price" json:"unit_price"`
	Quantity      int64  `bson:"quantity" json:"quantity"`
	Variant       string `bson:"variant,omitempty" json:"variant,omitempty"`
}

// Pricing amounts are in minor currency units.
type Pricing struct {
	Subtotal     int64 `bson:"subtotal" json:"subtotal"`
	TaxAmount    int64 `bson:"tax_amount" json:"tax_amount"`
	ShippingCost int64 `bson:"shipping_cost" json:"shipping_cost"`
	TotalAmount  int64 `bson:"total_amount" json:"total_amount"`
}

type PaymentDetails struct {
	TransactionID string    `bson:"transaction_id" json:"transaction_id"`
	Gateway       string    `bson:"gateway" json:"gateway"`
	PaidAt        time.Time `bson:"paid_at" json:"paid_at"`
}

type StatusEntry struct {
	Status    string    `bson:"status" json:"status"`
	Note      string    `bson:"note,omitempty" json:"note,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type Order struct {
	ID                 primitive.ObjectID `bson:"_id" json:"id"`
	Owner              Owner              `bson:"owner" json:"owner"`
	Items              []OrderItem        `bson:"items" json:"items"`
	ShippingAddress    Address            `bson:"shipping_address" json:"shipping_address"`
	Pricing            Pricing            `bson:"pricing" json:"pricing"`
	PaymentMethod      PaymentMethod      `bson:"payment_method" json:"payment_method"`
	PaymentStatus      PaymentStatus      `bson:"payment_status" json:"payment_status"`
	OrderStatus        OrderStatus        `bson:"order_status" json:"order_status"`
	Gateway            string             `bson:"gateway,omitempty" json:"gateway,omitempty"`
	PaymentHandleID    string             `bson:"payment_handle_id,omitempty" json:"payment_handle_id,omitempty"`
	PaymentDetails     *PaymentDetails    `bson:"payment_details,omitempty" json:"payment_details,omitempty"`
	RefundID           string             `bson:"refund_id,omitempty" json:"refund_id,omitempty"`
	StatusHistory      []StatusEntry      `bson:"status_history" json:"status_history"`
	CancellationReason string             `bson:"cancellation_reason,omitempty" json:"cancellation_reason,omitempty"`
	StockReserved      bool               `bson:"stock_reserved" json:"-"`
	StockReleased      bool               `bson:"stock_released" json:"-"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

type Product struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	UnitPrice   int64              `bson:"unit_price" json:"unit_price"`
	Stock       int64              `bson:"stock" json:"stock"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusReturned},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
	OrderStatusReturned:   {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionNoteRequired reports whether entering the status demands a note.
func TransitionNoteRequired(to OrderStatus) bool {
	return to == OrderStatusCancelled || to == OrderStatusReturned
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:     {PaymentStatusRefunded},
	PaymentStatusFailed:   {},
	PaymentStatusRefunded: {},
}

// CanTransitionPayment reports whether the payment sub-state may move.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return CanTransition(s, OrderStatusCancelled)
}

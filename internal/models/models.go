package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is one row of pedidos. The MP* fields mirror the payment gateway and
// stay nil until a preference is created or a notification is reconciled.
type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Kind        string          `json:"kind"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	MPPreferenceID      *string             `json:"mp_preference_id,omitempty"`
	MPPaymentID         *string             `json:"mp_payment_id,omitempty"`
	MPStatus            *string             `json:"mp_status,omitempty"`
	MPStatusDetail      *string             `json:"mp_status_detail,omitempty"`
	MPTransactionAmount decimal.NullDecimal `json:"mp_transaction_amount"`
	MPCurrencyID        *string             `json:"mp_currency_id,omitempty"`
	MPPaymentMethodID   *string             `json:"mp_payment_method_id,omitempty"`
	MPPaymentTypeID     *string             `json:"mp_payment_type_id,omitempty"`
	MPDateCreated       *time.Time          `json:"mp_date_created,omitempty"`
	MPDateApproved      *time.Time          `json:"mp_date_approved,omitempty"`
	MPExternalReference *string             `json:"mp_external_reference,omitempty"`
	MPCollectorID       *string             `json:"mp_collector_id,omitempty"`
	MPOperationType     *string             `json:"mp_operation_type,omitempty"`
	MPInstallments      *int                `json:"mp_installments,omitempty"`
	MPCardLastFour      *string             `json:"mp_card_last_four_digits,omitempty"`
	MPCardFirstSix      *string             `json:"mp_card_first_six_digits,omitempty"`
	MPFeeAmount         decimal.NullDecimal `json:"mp_fee_amount"`
	MPNetAmount         decimal.NullDecimal `json:"mp_net_amount"`

	Items []LineItem `json:"items,omitempty"`
}

// OrderWithBuyer is a pending-checkout view: the order plus the identity the
// gateway needs for the payer block.
type OrderWithBuyer struct {
	Order
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
}

type LineItem struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	Size         string          `json:"size"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CreatedAt    time.Time       `json:"created_at"`
	Participants []Participant   `json:"participants,omitempty"`
}

// Subtotal is quantity times unit price.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Participant struct {
	ID         string `json:"id"`
	LineItemID string `json:"line_item_id"`
	Name       string `json:"name"`
	Size       string `json:"size"`
	Phone      string `json:"phone,omitempty"`
	City       string `json:"city,omitempty"`
	Church     string `json:"church,omitempty"`
}

// PaymentSnapshot is everything the reconciler writes back onto an order in
// a single update. An empty Status leaves the order status untouched.
type PaymentSnapshot struct {
	Status            string
	PaymentID         string
	GatewayStatus     string
	StatusDetail      string
	TransactionAmount decimal.Decimal
	CurrencyID        string
	PaymentMethodID   string
	PaymentTypeID     string
	DateCreated       *time.Time
	DateApproved      *time.Time
	ExternalReference string
	CollectorID       string
	OperationType     string
	Installments      int
	CardLastFour      string
	CardFirstSix      string
	FeeAmount         decimal.Decimal
	NetAmount         decimal.Decimal
	Raw               []byte
}

type WebhookEvent struct {
	RequestID  string
	Type       string
	Action     string
	PaymentID  string
	Outcome    string
	HTTPStatus int
	Payload    []byte
}

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

const (
	OrderKindIndividual = "individual"
	OrderKindGroup      = "group"
)

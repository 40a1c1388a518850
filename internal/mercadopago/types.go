package mercadopago

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ID is a gateway identifier. The gateway sends the same ids as JSON numbers
// in some payloads and as strings in others.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("mercadopago: id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

type PreferenceRequest struct {
	Items               []PreferenceItem `json:"items"`
	Payer               Payer            `json:"payer"`
	BackURLs            BackURLs         `json:"back_urls"`
	AutoReturn          string           `json:"auto_return,omitempty"`
	NotificationURL     string           `json:"notification_url,omitempty"`
	ExternalReference   string           `json:"external_reference"`
	StatementDescriptor string           `json:"statement_descriptor,omitempty"`
}

// PreferenceItem carries UnitPrice as a JSON number with two decimals.
type PreferenceItem struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	CategoryID  string      `json:"category_id,omitempty"`
	Quantity    int         `json:"quantity"`
	CurrencyID  string      `json:"currency_id"`
	UnitPrice   json.Number `json:"unit_price"`
}

type Payer struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

type BackURLs struct {
	Success string `json:"success"`
	Pending string `json:"pending"`
	Failure string `json:"failure"`
}

type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// Amount renders a decimal the way the preference API expects prices.
func Amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type Payment struct {
	ID                 ID                 `json:"id"`
	Status             string             `json:"status"`
	StatusDetail       string             `json:"status_detail"`
	TransactionAmount  decimal.Decimal    `json:"transaction_amount"`
	CurrencyID         string             `json:"currency_id"`
	PaymentMethodID    string             `json:"payment_method_id"`
	PaymentTypeID      string             `json:"payment_type_id"`
	DateCreated        *time.Time         `json:"date_created"`
	DateApproved       *time.Time         `json:"date_approved"`
	ExternalReference  string             `json:"external_reference"`
	CollectorID        ID                 `json:"collector_id"`
	OperationType      string             `json:"operation_type"`
	Installments       int                `json:"installments"`
	Card               Card               `json:"card"`
	FeeDetails         []FeeDetail        `json:"fee_details"`
	TransactionDetails TransactionDetails `json:"transaction_details"`

	// Raw is the response body the payment was decoded from.
	Raw json.RawMessage `json:"-"`
}

type Card struct {
	LastFourDigits string `json:"last_four_digits"`
	FirstSixDigits string `json:"first_six_digits"`
}

type FeeDetail struct {
	Type     string          `json:"type"`
	FeePayer string          `json:"fee_payer"`
	Amount   decimal.Decimal `json:"amount"`
}

type TransactionDetails struct {
	NetReceivedAmount decimal.NullDecimal `json:"net_received_amount"`
	TotalPaidAmount   decimal.NullDecimal `json:"total_paid_amount"`
}

// TotalFee sums every fee line of the payment.
func (p *Payment) TotalFee() decimal.Decimal {
	total := decimal.Zero
	for _, fee := range p.FeeDetails {
		total = total.Add(fee.Amount)
	}
	return total
}

// NetAmount is the net received reported by the gateway, or the transaction
// amount minus fees when the gateway leaves it out.
func (p *Payment) NetAmount() decimal.Decimal {
	if p.TransactionDetails.NetReceivedAmount.Valid {
		return p.TransactionDetails.NetReceivedAmount.Decimal
	}
	return p.TransactionAmount.Sub(p.TotalFee())
}

// Notification is the webhook body. Only Type and Data.ID drive processing.
type Notification struct {
	ID       ID     `json:"id"`
	Type     string `json:"type"`
	Action   string `json:"action"`
	LiveMode bool   `json:"live_mode"`
	Data     struct {
		ID ID `json:"id"`
	} `json:"data"`
}

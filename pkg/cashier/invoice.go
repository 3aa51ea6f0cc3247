package cashier

import "time"

// InvoiceType distinguishes subscription invoices from one-off order invoices.
type InvoiceType string

const (
	InvoiceSubscription InvoiceType = "subscription"
	InvoiceOrder        InvoiceType = "order"
)

// Invoice is a denormalized copy of a FastSpring order, kept so that payment
// and billing details can be shown to customers without calling FastSpring.
// The upsert key is (FastspringID, Type); every field is populated straight
// from the webhook payload.
type Invoice struct {
	ID           string
	OwnerID      string
	FastspringID string
	Type         InvoiceType

	SubscriptionSequence int
	SubscriptionDisplay  string
	SubscriptionProduct  string

	InvoiceURL  string
	Total       float64
	Tax         float64
	Subtotal    float64
	Discount    float64
	Currency    string
	PaymentType string
	Completed   bool

	PeriodStartDate *time.Time
	PeriodEndDate   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

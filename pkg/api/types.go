package api

import "time"

// SubscriptionResponse is the JSON shape of a customer's subscription
// standing, as served to billing portals and account pages.
type SubscriptionResponse struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Plan    string `json:"plan"`
	State   string `json:"state"`

	// Valid is false only for deactivated subscriptions; canceled ones keep
	// serving until the paid period runs out.
	Valid         bool `json:"valid"`
	OnGracePeriod bool `json:"on_grace_period"`

	// SwapTo/SwapAt expose a scheduled plan change or deactivation date.
	SwapTo string     `json:"swap_to,omitempty"`
	SwapAt *time.Time `json:"swap_at,omitempty"`

	CurrentPeriod *PeriodInfo `json:"current_period,omitempty"`
}

// PeriodInfo is the date window of the current billing period. Dates are
// date-granular; the end date is inclusive.
type PeriodInfo struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// InvoiceResponse is a single invoice in the invoices listing.
type InvoiceResponse struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Display     string     `json:"display,omitempty"`
	Product     string     `json:"product,omitempty"`
	InvoiceURL  string     `json:"invoice_url,omitempty"`
	Total       float64    `json:"total"`
	Tax         float64    `json:"tax"`
	Subtotal    float64    `json:"subtotal"`
	Discount    float64    `json:"discount"`
	Currency    string     `json:"currency"`
	PaymentType string     `json:"payment_type,omitempty"`
	Completed   bool       `json:"completed"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// InvoicesResponse wraps the invoices listing.
type InvoicesResponse struct {
	OwnerID  string            `json:"owner_id"`
	Invoices []InvoiceResponse `json:"invoices"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

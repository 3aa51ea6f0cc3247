package cashier

import (
	"strings"
	"time"
)

// Account is the billable entity subscriptions belong to. Only the fields
// the FastSpring account API cares about are kept here; applications map
// their own user model onto it.
type Account struct {
	ID           string
	FastspringID string

	Name    string
	Email   string
	Company string
	Phone   string

	Language string
	Country  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasFastspringID reports whether the account exists on FastSpring.
func (a *Account) HasFastspringID() bool {
	return a.FastspringID != ""
}

// FirstName returns the part of Name the FastSpring contact API expects as
// the first name: everything but the last word.
func (a *Account) FirstName() string {
	parts := strings.Fields(a.Name)
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], " ")
}

// LastName returns the last word of Name. FastSpring rejects accounts
// without a last name, so single-word names fall back to "Unknown".
func (a *Account) LastName() string {
	parts := strings.Fields(a.Name)
	if len(parts) <= 1 {
		return "Unknown"
	}
	return parts[len(parts)-1]
}

// Package api provides read-only HTTP endpoints exposing a customer's
// subscription standing and invoice history, for billing portals and
// account pages.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

const maxOwnerIDLen = 255

// Handler serves the billing status endpoints.
type Handler struct {
	config Config
}

// NewHandler creates a Handler from the given configuration.
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.SubscriptionName == "" {
		config.SubscriptionName = cashier.DefaultName
	}
	if config.Logger == nil {
		config.Logger = &cashier.NoopLogger{}
	}
	return &Handler{config: config}, nil
}

// GetSubscription returns the owner's subscription standing as JSON. Missing
// owner id yields 401, a missing subscription 404.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID := h.config.GetOwnerID(r)
	if ownerID == "" {
		h.handleError(w, r, fmt.Errorf("owner id not found"), http.StatusUnauthorized)
		return
	}
	if len(ownerID) > maxOwnerIDLen {
		h.handleError(w, r, fmt.Errorf("invalid owner id"), http.StatusBadRequest)
		return
	}

	sub, err := h.config.Manager.Subscription(ctx, ownerID, h.config.SubscriptionName)
	if errors.Is(err, cashier.ErrNotFound) {
		h.handleError(w, r, fmt.Errorf("no subscription for owner"), http.StatusNotFound)
		return
	}
	if err != nil {
		h.handleError(w, r, fmt.Errorf("load subscription: %w", err), http.StatusInternalServerError)
		return
	}

	response := SubscriptionResponse{
		OwnerID:       sub.OwnerID,
		Name:          sub.Name,
		Plan:          sub.Plan,
		State:         string(sub.State),
		Valid:         sub.Valid(),
		OnGracePeriod: sub.OnGracePeriod(),
		SwapTo:        sub.SwapTo,
		SwapAt:        sub.SwapAt,
	}

	if h.config.IncludePeriod && sub.Valid() {
		period, err := h.config.Manager.ActivePeriodOrCreate(ctx, sub)
		if err != nil {
			// The standing is still useful without the period window.
			h.config.Logger.Warn("resolve current period failed",
				cashier.Field{Key: "owner_id", Value: ownerID},
				cashier.Field{Key: "error", Value: err.Error()},
			)
		} else {
			response.CurrentPeriod = &PeriodInfo{
				StartDate: period.StartDate.Format("2006-01-02"),
				EndDate:   period.EndDate.Format("2006-01-02"),
			}
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// GetInvoices returns the owner's invoices as JSON, most recent first.
func (h *Handler) GetInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID := h.config.GetOwnerID(r)
	if ownerID == "" {
		h.handleError(w, r, fmt.Errorf("owner id not found"), http.StatusUnauthorized)
		return
	}
	if len(ownerID) > maxOwnerIDLen {
		h.handleError(w, r, fmt.Errorf("invalid owner id"), http.StatusBadRequest)
		return
	}

	invoices, err := h.config.Manager.Invoices(ctx, ownerID)
	if err != nil {
		h.handleError(w, r, fmt.Errorf("load invoices: %w", err), http.StatusInternalServerError)
		return
	}

	response := InvoicesResponse{
		OwnerID:  ownerID,
		Invoices: make([]InvoiceResponse, 0, len(invoices)),
	}
	for _, invoice := range invoices {
		response.Invoices = append(response.Invoices, InvoiceResponse{
			ID:          invoice.FastspringID,
			Type:        string(invoice.Type),
			Display:     invoice.SubscriptionDisplay,
			Product:     invoice.SubscriptionProduct,
			InvoiceURL:  invoice.InvoiceURL,
			Total:       invoice.Total,
			Tax:         invoice.Tax,
			Subtotal:    invoice.Subtotal,
			Discount:    invoice.Discount,
			Currency:    invoice.Currency,
			PaymentType: invoice.PaymentType,
			Completed:   invoice.Completed,
			PeriodStart: invoice.PeriodStartDate,
			PeriodEnd:   invoice.PeriodEndDate,
			CreatedAt:   invoice.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err, status)
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

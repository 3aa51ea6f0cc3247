// Package fastspring implements cashier.Gateway over the FastSpring HTTP
// API. It covers the endpoints the library consumes (accounts, sessions,
// subscriptions), not the whole API surface.
package fastspring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// DefaultBaseURL is the production FastSpring API endpoint.
const DefaultBaseURL = "https://api.fastspring.com"

const defaultHTTPTimeout = 30 * time.Second

// Config configures the FastSpring API client.
type Config struct {
	// Username and Password are the API credentials from the FastSpring
	// dashboard, sent as HTTP basic auth. Both required.
	Username string
	Password string

	// BaseURL overrides the API endpoint, mainly for tests. Defaults to
	// DefaultBaseURL.
	BaseURL string

	// GlobalQuery is appended to every request, e.g. {"mode": "test"}.
	GlobalQuery url.Values

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// Logger defaults to a no-op logger.
	Logger cashier.Logger

	// Metrics defaults to no-op metrics.
	Metrics cashier.Metrics
}

// Client talks to the FastSpring API. It implements cashier.Gateway.
type Client struct {
	config Config
}

var _ cashier.Gateway = (*Client)(nil)

// New creates a FastSpring API client.
func New(config Config) (*Client, error) {
	if config.Username == "" || config.Password == "" {
		return nil, fmt.Errorf("%w: fastspring username and password are required", cashier.ErrInvalidConfiguration)
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if config.Logger == nil {
		config.Logger = &cashier.NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &cashier.NoopMetrics{}
	}
	return &Client{config: config}, nil
}

// CreateAccount creates a FastSpring account.
func (c *Client) CreateAccount(ctx context.Context, params cashier.AccountParams) (*cashier.AccountReply, error) {
	var reply cashier.AccountReply
	if err := c.do(ctx, http.MethodPost, "accounts", nil, params, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// UpdateAccount updates an existing FastSpring account.
func (c *Client) UpdateAccount(ctx context.Context, fastspringID string, params cashier.AccountParams) (*cashier.AccountReply, error) {
	var reply cashier.AccountReply
	if err := c.do(ctx, http.MethodPost, "accounts/"+url.PathEscape(fastspringID), nil, params, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// GetAccounts lists accounts matching the query, e.g. {"email": ...}.
func (c *Client) GetAccounts(ctx context.Context, query map[string]string) (*cashier.AccountsReply, error) {
	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	var reply cashier.AccountsReply
	if err := c.do(ctx, http.MethodGet, "accounts", values, nil, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// CreateSession creates a checkout session.
func (c *Client) CreateSession(ctx context.Context, params cashier.SessionParams) (*cashier.Session, error) {
	var session cashier.Session
	if err := c.do(ctx, http.MethodPost, "sessions", nil, params, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// subscriptionEntry is the wire shape of one entry of the subscription
// entries endpoint. Period boundaries are plain dates.
type subscriptionEntry struct {
	Subscription    string `json:"subscription"`
	BeginPeriodDate string `json:"beginPeriodDate"`
	EndPeriodDate   string `json:"endPeriodDate"`
}

// GetSubscriptionEntries returns the current billing period window for each
// subscription id.
func (c *Client) GetSubscriptionEntries(ctx context.Context, subscriptionIDs []string) ([]cashier.SubscriptionEntry, error) {
	if len(subscriptionIDs) == 0 {
		return nil, nil
	}

	path := "subscriptions/" + url.PathEscape(strings.Join(subscriptionIDs, ",")) + "/entries"
	var wire []subscriptionEntry
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &wire); err != nil {
		return nil, err
	}

	entries := make([]cashier.SubscriptionEntry, 0, len(wire))
	for _, e := range wire {
		begin, err := parseDate(e.BeginPeriodDate)
		if err != nil {
			return nil, fmt.Errorf("subscription %s: bad beginPeriodDate: %w", e.Subscription, err)
		}
		end, err := parseDate(e.EndPeriodDate)
		if err != nil {
			return nil, fmt.Errorf("subscription %s: bad endPeriodDate: %w", e.Subscription, err)
		}
		entries = append(entries, cashier.SubscriptionEntry{
			Subscription:    e.Subscription,
			BeginPeriodDate: begin,
			EndPeriodDate:   end,
		})
	}
	return entries, nil
}

// UpdateSubscriptions applies a bulk subscription update.
func (c *Client) UpdateSubscriptions(ctx context.Context, updates []cashier.SubscriptionUpdate) (*cashier.SubscriptionsReply, error) {
	payload := make([]map[string]interface{}, 0, len(updates))
	for _, u := range updates {
		entry := map[string]interface{}{
			"subscription": u.Subscription,
		}
		if u.Product != "" {
			entry["product"] = u.Product
		}
		if u.Quantity > 0 {
			entry["quantity"] = u.Quantity
		}
		if len(u.Coupons) > 0 {
			entry["coupons"] = u.Coupons
		}
		if u.Prorate != nil {
			entry["prorate"] = *u.Prorate
		}
		if u.ClearDeactivation {
			// Explicit null deactivation is how FastSpring expresses
			// "uncancel".
			entry["deactivation"] = nil
		}
		payload = append(payload, entry)
	}

	var reply cashier.SubscriptionsReply
	body := map[string]interface{}{"subscriptions": payload}
	if err := c.do(ctx, http.MethodPost, "subscriptions", nil, body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// CancelSubscription cancels at the end of the billing period, or
// immediately when immediately is true.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*cashier.SubscriptionsReply, error) {
	var query url.Values
	if immediately {
		query = url.Values{"billingPeriod": []string{"0"}}
	}

	var reply cashier.SubscriptionsReply
	path := "subscriptions/" + url.PathEscape(subscriptionID)
	if err := c.do(ctx, http.MethodDelete, path, query, nil, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// UncancelSubscription reverses a pending cancellation.
func (c *Client) UncancelSubscription(ctx context.Context, subscriptionID string) (*cashier.SubscriptionsReply, error) {
	return c.UpdateSubscriptions(ctx, []cashier.SubscriptionUpdate{{
		Subscription:      subscriptionID,
		ClearDeactivation: true,
	}})
}

// SwapSubscription moves the subscription to another plan.
func (c *Client) SwapSubscription(ctx context.Context, subscriptionID, plan string, prorate bool, quantity int, coupons []string) (*cashier.SubscriptionsReply, error) {
	return c.UpdateSubscriptions(ctx, []cashier.SubscriptionUpdate{{
		Subscription: subscriptionID,
		Product:      plan,
		Quantity:     quantity,
		Coupons:      coupons,
		Prorate:      &prorate,
	}})
}

// AccountManagementURI returns an authenticated URL to the FastSpring
// account management panel.
func (c *Client) AccountManagementURI(ctx context.Context, accountID string) (string, error) {
	var reply cashier.AccountsReply
	path := "accounts/" + url.PathEscape(accountID) + "/authenticate"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &reply); err != nil {
		return "", err
	}
	if len(reply.Accounts) == 0 || reply.Accounts[0].URL == "" {
		return "", fmt.Errorf("%w: no management url for account %s", cashier.ErrNotFound, accountID)
	}
	return reply.Accounts[0].URL, nil
}

// do sends one API request and decodes the JSON response into out. Non-2xx
// responses become *cashier.APIError with FastSpring's per-field messages.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	startTime := time.Now()
	endpoint := endpointLabel(path)

	requestURL := strings.TrimRight(c.config.BaseURL, "/") + "/" + path
	merged := url.Values{}
	for k, vs := range c.config.GlobalQuery {
		merged[k] = vs
	}
	for k, vs := range query {
		merged[k] = vs
	}
	if len(merged) > 0 {
		requestURL += "?" + merged.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.config.HTTPClient.Do(req)
	if err != nil {
		c.config.Metrics.RecordAPICall(endpoint, "transport_error")
		return fmt.Errorf("fastspring request failed: %w", err)
	}
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		c.config.Metrics.RecordAPICall(endpoint, "transport_error")
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.config.Metrics.RecordAPICall(endpoint, strconv.Itoa(res.StatusCode))
	c.config.Metrics.RecordAPICallDuration(endpoint, time.Since(startTime))
	c.config.Logger.Debug("fastspring API call",
		cashier.Field{Key: "method", Value: method},
		cashier.Field{Key: "endpoint", Value: endpoint},
		cashier.Field{Key: "status", Value: res.StatusCode},
	)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &cashier.APIError{
			StatusCode: res.StatusCode,
			Fields:     parseErrorFields(responseBody),
		}
	}

	if out == nil || len(responseBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// parseErrorFields extracts FastSpring's per-field error messages, e.g.
// {"error": {"email": "already exists"}}. A body in any other shape yields
// an empty map.
func parseErrorFields(body []byte) map[string]string {
	var wire struct {
		Error map[string]string `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err != nil || wire.Error == nil {
		return map[string]string{}
	}
	return wire.Error
}

// endpointLabel reduces a request path to its first segment so metrics
// cardinality stays bounded.
func endpointLabel(path string) string {
	segment, _, _ := strings.Cut(path, "/")
	return "/" + segment
}

// parseDate parses FastSpring's plain date strings, falling back to
// RFC 3339 timestamps, and truncates to midnight UTC.
func parseDate(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, errors.New("empty date")
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date: %s", v)
	}
	return cashier.DateOf(t), nil
}

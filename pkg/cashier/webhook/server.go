package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bgultekin/gocashier/pkg/cashier"
	"github.com/bgultekin/gocashier/pkg/cashier/internal"
)

// DefaultMaxBodyBytes caps webhook batch payloads. FastSpring batches are
// small; 256KB is a safe upper bound.
const DefaultMaxBodyBytes = 256 * 1024

// batch is the envelope FastSpring posts: a list of events under "events".
type batch struct {
	Events []Event `json:"events"`
}

// Config configures the webhook HTTP server.
type Config struct {
	// Manager provides storage access for the built-in listeners. Required.
	Manager *cashier.Manager

	// Secret is the HMAC secret configured in the FastSpring dashboard.
	// Empty disables signature verification.
	Secret []byte

	// MaxBodyBytes caps the request body size. Defaults to
	// DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Logger defaults to a no-op logger.
	Logger cashier.Logger

	// Metrics defaults to no-op metrics.
	Metrics cashier.Metrics
}

// Server is the FastSpring webhook endpoint. It verifies the batch
// signature, dispatches each event through the registry and answers with
// the ids of the events that were processed; FastSpring redelivers the
// rest.
//
// Server implements http.Handler and can be mounted on any router. The
// middleware subpackages adapt it to gin, echo and fiber.
type Server struct {
	config     Config
	registry   *Registry
	dispatcher *Dispatcher
}

// NewServer creates a webhook server with the built-in listeners
// registered. Use Registry to bind application handlers on top.
func NewServer(config Config) (*Server, error) {
	if config.Manager == nil {
		return nil, errors.New("webhook: Manager is required")
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.Logger == nil {
		config.Logger = &cashier.NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &cashier.NoopMetrics{}
	}

	registry := NewRegistry()
	NewListeners(config.Manager, config.Logger).RegisterAll(registry)

	return &Server{
		config:     config,
		registry:   registry,
		dispatcher: NewDispatcher(registry, config.Logger, config.Metrics),
	}, nil
}

// Registry returns the handler registry so applications can register their
// own handlers or replace the built-in ones.
func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	internal.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := internal.ReadBodyStrict(w, r, s.config.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			s.config.Metrics.RecordWebhookError("payload_too_large")
		} else {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			s.config.Metrics.RecordWebhookError("invalid_payload")
		}
		return
	}

	if err := Verify(body, r.Header.Get(SignatureHeader), s.config.Secret); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		s.config.Metrics.RecordWebhookError("auth_failed")
		s.config.Logger.Warn("webhook signature mismatch",
			cashier.Field{Key: "remote_addr", Value: r.RemoteAddr},
		)
		return
	}

	var payload batch
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		s.config.Metrics.RecordWebhookError("invalid_payload")
		return
	}

	report := s.dispatcher.Dispatch(r.Context(), payload.Events)

	// 202 with the acknowledged ids, one per line. FastSpring marks those
	// ids delivered and retries the rest.
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(strings.Join(report.Acknowledged, "\n")))

	s.config.Metrics.RecordWebhookProcessingDuration(time.Since(startTime))
	s.config.Logger.Info("webhook batch processed",
		cashier.Field{Key: "received", Value: len(payload.Events)},
		cashier.Field{Key: "acknowledged", Value: len(report.Acknowledged)},
		cashier.Field{Key: "failed", Value: len(report.Failed)},
	)
}

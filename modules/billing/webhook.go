package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cataloghq/cataloghq/core"
	"github.com/cataloghq/cataloghq/pkg/subscription"
	svc "github.com/cataloghq/cataloghq/svc/billing"
)

// DefaultSignatureHeader carries the provider's delivery signature.
// Paddle sends Paddle-Signature; the generic provider uses this default.
const DefaultSignatureHeader = "X-Signature"

// maxWebhookBody bounds a delivery payload. Provider events are small;
// anything past this is hostile or broken.
const maxWebhookBody = 1 << 20

// WebhookHandler receives provider deliveries. It lives outside the
// authenticated surface; the signature inside the payload is its only gate.
type WebhookHandler struct {
	billing         *svc.Service
	signatureHeader string
}

// WebhookOption configures the handler.
type WebhookOption func(*WebhookHandler)

// WithSignatureHeader overrides the header the provider signs deliveries with.
func WithSignatureHeader(name string) WebhookOption {
	return func(h *WebhookHandler) { h.signatureHeader = name }
}

// NewWebhookHandler creates the webhook endpoint for the given service.
// Panics on a nil service to fail fast during initialization.
func NewWebhookHandler(billing *svc.Service, opts ...WebhookOption) *WebhookHandler {
	if billing == nil {
		panic("billing module: service is required")
	}
	h := &WebhookHandler{billing: billing, signatureHeader: DefaultSignatureHeader}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle returns the webhook router.
func (h *WebhookHandler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.receive)
	return r
}

// receive acknowledges every delivery whose signature verifies. Processing
// failures are already logged and audited by the service; acking them stops
// the provider from retrying events the state machine has refused.
func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		_ = core.JSONError(core.ErrBadRequest).Render(w, r)
		return
	}

	err = h.billing.ApplyWebhookEvent(r.Context(), payload, r.Header.Get(h.signatureHeader))
	if err != nil {
		if errors.Is(err, subscription.ErrSignatureInvalid) {
			_ = core.JSONError(core.NewHTTPError(http.StatusBadRequest, "invalid_signature")).Render(w, r)
			return
		}
		_ = core.JSONError(err).Render(w, r)
		return
	}
	_ = core.JSON(map[string]any{"received": true}).Render(w, r)
}

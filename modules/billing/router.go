package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mountable exposes a sub-service as an http.Handler.
type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which services to mount in the billing module.
type RouterOptions struct {
	// Billing serves checkout, coupons, entitlements and team invitations.
	Billing Mountable

	// Webhook receives provider deliveries. Mounted outside the
	// authenticated surface; signature verification is its only gate.
	Webhook Mountable
}

// Router creates the billing module router.
//
// Example:
//
//	module := billing.NewModule(svc, identity.ContextProvider{})
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//	    Billing: module,
//	    Webhook: billing.NewWebhookHandler(svc),
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	if opts.Billing != nil {
		r.Mount("/", opts.Billing.Handle())
	}
	if opts.Webhook != nil {
		r.Mount("/webhooks", opts.Webhook.Handle())
	}

	return r
}

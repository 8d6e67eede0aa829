// Package billing mounts the billing service over HTTP. The module is a thin
// shell: handlers decode, call the service and render; every operation stays
// callable without HTTP.
package billing

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cataloghq/cataloghq/core"
	"github.com/cataloghq/cataloghq/pkg/coupon"
	"github.com/cataloghq/cataloghq/pkg/entitlement"
	"github.com/cataloghq/cataloghq/pkg/identity"
	"github.com/cataloghq/cataloghq/pkg/plans"
	"github.com/cataloghq/cataloghq/pkg/subscription"
	svc "github.com/cataloghq/cataloghq/svc/billing"
)

// Module serves the authenticated billing endpoints.
type Module struct {
	billing  *svc.Service
	identity identity.Provider
}

// NewModule creates the billing HTTP module.
// Panics on nil dependencies to fail fast during initialization.
func NewModule(billing *svc.Service, id identity.Provider) *Module {
	if billing == nil {
		panic("billing module: service is required")
	}
	if id == nil {
		panic("billing module: identity provider is required")
	}
	return &Module{billing: billing, identity: id}
}

// Handle returns the module's router.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/plan", m.handle(m.getPlan))
	r.Get("/usage", m.handle(m.getUsage))
	r.Get("/portal", m.handle(m.getPortal))
	r.Post("/checkout", m.handle(m.postCheckout))
	r.Post("/coupons/validate", m.handle(m.postValidateCoupon))
	r.Post("/invitations", m.handle(m.postInvitation))
	r.Get("/invitations", m.handle(m.listInvitations))
	r.Delete("/invitations/{id}", m.handle(m.deleteInvitation))
	r.Post("/exports", m.handle(m.postExport))
	r.Get("/exports", m.handle(m.listExports))

	return r
}

// handlerFunc is a handler that returns a response instead of writing one.
type handlerFunc func(r *http.Request, user *identity.User) (core.Response, error)

// handle resolves the current user, invokes fn and renders the outcome.
func (m *Module) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := m.identity.CurrentUser(r.Context())
		if err != nil {
			_ = core.JSONError(core.ErrUnauthorized).Render(w, r)
			return
		}

		resp, err := fn(r, user)
		if err != nil {
			_ = core.JSONError(mapDomainError(err)).Render(w, r)
			return
		}
		_ = resp.Render(w, r)
	}
}

// mapDomainError translates service errors into the transport taxonomy.
// Unmatched errors fall through to JSONError's internal-error default.
func mapDomainError(err error) error {
	if rejection, ok := coupon.AsRejection(err); ok {
		return core.NewHTTPError(http.StatusUnprocessableEntity, "coupon_"+string(rejection.Reason))
	}

	switch {
	case errors.Is(err, entitlement.ErrLimitExceeded):
		return core.NewHTTPError(http.StatusPaymentRequired, "plan_limit_exceeded")
	case errors.Is(err, svc.ErrDuplicateInvitation):
		return core.ErrConflict
	case errors.Is(err, svc.ErrInvitationNotFound),
		errors.Is(err, svc.ErrNoProviderSubscription),
		errors.Is(err, subscription.ErrNotFound):
		return core.ErrNotFound
	case errors.Is(err, svc.ErrInvalidParams),
		errors.Is(err, svc.ErrPriceNotConfigured):
		return core.ErrBadRequest
	case errors.Is(err, subscription.ErrProviderError):
		return core.ErrBadGateway
	}
	return err
}

type planResponse struct {
	Tier      plans.Tier                         `json:"tier"`
	Name      string                             `json:"name"`
	Limits    map[plans.Resource]int64           `json:"limits"`
	Features  []plans.Feature                    `json:"features"`
	Prices    map[plans.BillingCycle]plans.Money `json:"prices,omitempty"`
	TrialDays int                                `json:"trial_days,omitempty"`
}

func (m *Module) getPlan(r *http.Request, user *identity.User) (core.Response, error) {
	plan, err := m.billing.EffectivePlan(r.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	return core.JSON(planResponse{
		Tier:      plan.Tier,
		Name:      plan.Name,
		Limits:    plan.Limits,
		Features:  plan.Features,
		Prices:    plan.Prices,
		TrialDays: plan.TrialDays,
	}), nil
}

func (m *Module) getUsage(r *http.Request, user *identity.User) (core.Response, error) {
	usage, err := m.billing.Usage(r.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	return core.JSON(usage), nil
}

func (m *Module) getPortal(r *http.Request, user *identity.User) (core.Response, error) {
	link, err := m.billing.CustomerPortal(r.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	return core.JSON(map[string]any{"url": link.URL, "expires_at": link.ExpiresAt}), nil
}

type checkoutRequest struct {
	Tier       plans.Tier         `json:"tier"`
	Cycle      plans.BillingCycle `json:"cycle"`
	CouponCode string             `json:"coupon_code"`
}

func (req checkoutRequest) validate() error {
	verr := core.NewValidationError()
	if !req.Tier.Valid() {
		verr.Add("tier", "must be one of: free, standard, professional, business")
	}
	if !req.Cycle.Valid() {
		verr.Add("cycle", "must be monthly or yearly")
	}
	if verr.IsEmpty() {
		return nil
	}
	return verr
}

func (m *Module) postCheckout(r *http.Request, user *identity.User) (core.Response, error) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, core.ErrBadRequest
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	result, err := m.billing.Checkout(r.Context(), svc.CheckoutParams{
		AccountID:  user.ID,
		Email:      user.Email,
		Tier:       req.Tier,
		Cycle:      req.Cycle,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		return nil, err
	}

	if result.Subscription != nil {
		return core.JSONStatus(http.StatusCreated, map[string]any{
			"subscription_id": result.Subscription.ID,
			"tier":            result.Subscription.Tier,
			"status":          result.Subscription.Status,
		}), nil
	}
	return core.JSON(map[string]any{
		"checkout_url": result.CheckoutURL,
		"session_id":   result.SessionID,
	}), nil
}

type validateCouponRequest struct {
	Code  string             `json:"code"`
	Tier  plans.Tier         `json:"tier"`
	Cycle plans.BillingCycle `json:"cycle"`
}

func (m *Module) postValidateCoupon(r *http.Request, user *identity.User) (core.Response, error) {
	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, core.ErrBadRequest
	}

	verr := core.NewValidationError()
	if req.Code == "" {
		verr.Add("code", "coupon code is required")
	}
	if !req.Tier.Valid() {
		verr.Add("tier", "must be one of: free, standard, professional, business")
	}
	if !req.Cycle.Valid() {
		verr.Add("cycle", "must be monthly or yearly")
	}
	if !verr.IsEmpty() {
		return nil, verr
	}

	quote, err := m.billing.ValidateCoupon(r.Context(), user.ID, req.Code, req.Tier, req.Cycle)
	if err != nil {
		return nil, err
	}
	return core.JSON(map[string]any{
		"code":            quote.Coupon.Code,
		"discount_amount": quote.DiscountAmount,
		"final_amount":    quote.FinalAmount,
	}), nil
}

type invitationRequest struct {
	CatalogueID   uuid.UUID `json:"catalogue_id"`
	Email         string    `json:"email"`
	InviterName   string    `json:"inviter_name"`
	CatalogueName string    `json:"catalogue_name"`
}

func (m *Module) postInvitation(r *http.Request, user *identity.User) (core.Response, error) {
	var req invitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, core.ErrBadRequest
	}

	verr := core.NewValidationError()
	if req.CatalogueID == uuid.Nil {
		verr.Add("catalogue_id", "catalogue ID is required")
	}
	if req.Email == "" {
		verr.Add("email", "recipient email is required")
	}
	if !verr.IsEmpty() {
		return nil, verr
	}

	inv, err := m.billing.InviteTeamMember(r.Context(), svc.InviteParams{
		AccountID:     user.ID,
		CatalogueID:   req.CatalogueID,
		Email:         req.Email,
		InviterName:   req.InviterName,
		CatalogueName: req.CatalogueName,
	})
	if err != nil {
		return nil, err
	}
	return core.JSONStatus(http.StatusCreated, map[string]any{
		"invitation_id": inv.ID,
		"email":         inv.Email,
		"created_at":    inv.CreatedAt,
	}), nil
}

func (m *Module) listInvitations(r *http.Request, _ *identity.User) (core.Response, error) {
	catalogueID, err := uuid.Parse(r.URL.Query().Get("catalogue_id"))
	if err != nil {
		verr := core.NewValidationError()
		verr.Add("catalogue_id", "must be a valid UUID")
		return nil, verr
	}

	invitations, err := m.billing.ListInvitations(r.Context(), catalogueID)
	if err != nil {
		return nil, err
	}
	return core.JSON(invitations), nil
}

func (m *Module) deleteInvitation(r *http.Request, _ *identity.User) (core.Response, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, core.ErrBadRequest
	}
	if err := m.billing.RevokeInvitation(r.Context(), id); err != nil {
		return nil, err
	}
	return core.JSON(map[string]any{"revoked": true}), nil
}

type exportResponse struct {
	ExportID    uuid.UUID `json:"export_id"`
	CatalogueID uuid.UUID `json:"catalogue_id"`
	URL         string    `json:"url,omitempty"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// postExport runs an export: the request body is the rendered document,
// the catalogue_id query parameter names the exported catalogue.
func (m *Module) postExport(r *http.Request, user *identity.User) (core.Response, error) {
	catalogueID, err := uuid.Parse(r.URL.Query().Get("catalogue_id"))
	if err != nil {
		verr := core.NewValidationError()
		verr.Add("catalogue_id", "catalogue ID is required")
		return nil, verr
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	run, err := m.billing.RunExport(r.Context(), svc.ExportParams{
		AccountID:   user.ID,
		CatalogueID: catalogueID,
		ContentType: contentType,
		Body:        r.Body,
	})
	if err != nil {
		return nil, err
	}
	return core.JSONStatus(http.StatusCreated, exportRun(run)), nil
}

func (m *Module) listExports(r *http.Request, user *identity.User) (core.Response, error) {
	runs, err := m.billing.ListExports(r.Context(), user.ID, 50)
	if err != nil {
		return nil, err
	}
	out := make([]exportResponse, len(runs))
	for i := range runs {
		out[i] = exportRun(&runs[i])
	}
	return core.JSON(out), nil
}

func exportRun(run *svc.ExportRun) exportResponse {
	return exportResponse{
		ExportID:    run.ID,
		CatalogueID: run.CatalogueID,
		URL:         run.URL,
		Size:        run.Size,
		ContentType: run.ContentType,
		CreatedAt:   run.CreatedAt,
	}
}

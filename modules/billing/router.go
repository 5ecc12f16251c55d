// Package billing exposes the subscription lifecycle over HTTP: the
// provider webhook ingress plus the checkout, portal, cancellation,
// and status endpoints for authenticated accounts.
package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bugtrackerhq/entitlements/core"
	"github.com/bugtrackerhq/entitlements/svc/account"
	"github.com/bugtrackerhq/entitlements/svc/billing"
)

// maxWebhookBody caps webhook payload reads; provider events are small.
const maxWebhookBody = 1 << 20

// Router mounts the billing endpoints. The webhook route is
// unauthenticated by design; the provider authenticates through the
// payload signature instead.
func Router(svc *billing.Service, log *slog.Logger) chi.Router {
	h := &handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Post("/webhook", h.webhook)

	r.Group(func(r chi.Router) {
		r.Get("/plans", h.plans)
		r.Get("/status", h.status)
		r.Post("/checkout", h.checkout)
		r.Post("/portal", h.portal)
		r.Post("/cancel", h.cancel)
		r.Post("/reactivate", h.reactivate)
	})

	return r
}

type handler struct {
	svc *billing.Service
	log *slog.Logger
}

func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return
	}

	err = h.svc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		core.JSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, billing.ErrTransient), errors.Is(err, billing.ErrBillingUnconfigured):
		h.log.ErrorContext(r.Context(), "webhook processing failed, provider should retry",
			slog.Any("error", err))
		core.JSONError(w, core.ErrServiceUnavailable)
	default:
		h.log.WarnContext(r.Context(), "webhook rejected", slog.Any("error", err))
		core.JSONError(w, core.NewHTTPError(http.StatusBadRequest, "invalid_webhook"))
	}
}

func (h *handler) plans(w http.ResponseWriter, r *http.Request) {
	plans := h.svc.Plans()
	out := make([]planResponse, len(plans))
	for i, p := range plans {
		out[i] = toPlanResponse(p)
	}
	core.JSON(w, http.StatusOK, out)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account.GetIDFromContext(r.Context())
	if !ok {
		core.JSONError(w, core.ErrUnauthorized)
		return
	}

	summary, err := h.svc.Status(r.Context(), accountID)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, statusResponse{
		Plan:             string(summary.Plan.ID),
		Status:           string(summary.Status),
		ReportsThisMonth: summary.ReportsUsed,
		PeriodEnd:        summary.PeriodEnd,
		Limits:           toPlanResponse(summary.Plan),
	})
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account.GetIDFromContext(r.Context())
	if !ok {
		core.JSONError(w, core.ErrUnauthorized)
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return
	}

	sess, err := h.svc.CreateCheckoutSession(r.Context(), accountID, account.Plan(req.Plan))
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusCreated, map[string]string{"url": sess.URL})
}

func (h *handler) portal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account.GetIDFromContext(r.Context())
	if !ok {
		core.JSONError(w, core.ErrUnauthorized)
		return
	}

	sess, err := h.svc.CreatePortalSession(r.Context(), accountID)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusCreated, map[string]string{"url": sess.URL})
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account.GetIDFromContext(r.Context())
	if !ok {
		core.JSONError(w, core.ErrUnauthorized)
		return
	}

	if err := h.svc.Cancel(r.Context(), accountID); err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, map[string]string{"status": "cancellation_scheduled"})
}

func (h *handler) reactivate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account.GetIDFromContext(r.Context())
	if !ok {
		core.JSONError(w, core.ErrUnauthorized)
		return
	}

	if err := h.svc.Reactivate(r.Context(), accountID); err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, map[string]string{"status": "active"})
}

type planResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceCents      int64  `json:"price_cents"`
	ReportsPerMonth int    `json:"reports_per_month"`
	FileAttachments int    `json:"file_attachments"`
	MaxFileSize     int64  `json:"max_file_size"`
	AIAnalysis      bool   `json:"ai_analysis"`
	PrioritySupport bool   `json:"priority_support"`
}

func toPlanResponse(p billing.Plan) planResponse {
	return planResponse{
		ID:              string(p.ID),
		Name:            p.Name,
		PriceCents:      p.PriceCents,
		ReportsPerMonth: p.ReportsPerMonth,
		FileAttachments: p.FileAttachments,
		MaxFileSize:     p.MaxFileSize,
		AIAnalysis:      p.AIAnalysis,
		PrioritySupport: p.PrioritySupport,
	}
}

type statusResponse struct {
	Plan             string       `json:"plan"`
	Status           string       `json:"status"`
	ReportsThisMonth int          `json:"reports_this_month"`
	PeriodEnd        *time.Time   `json:"period_end,omitempty"`
	Limits           planResponse `json:"limits"`
}

func mapError(err error) error {
	switch {
	case errors.Is(err, billing.ErrInvalidPlan):
		return core.NewHTTPError(http.StatusBadRequest, "invalid_plan")
	case errors.Is(err, billing.ErrBillingUnconfigured):
		return core.NewHTTPError(http.StatusServiceUnavailable, "billing_unavailable")
	case errors.Is(err, billing.ErrNoActiveSubscription):
		return core.NewHTTPError(http.StatusConflict, "no_active_subscription")
	case errors.Is(err, billing.ErrInvalidState):
		return core.NewHTTPError(http.StatusConflict, "invalid_subscription_state")
	case errors.Is(err, billing.ErrProviderUnavailable):
		return core.NewHTTPError(http.StatusBadGateway, "billing_provider_error")
	case errors.Is(err, account.ErrNotFound):
		return core.ErrNotFound
	default:
		return err
	}
}

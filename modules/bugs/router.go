// Package bugs exposes bug report submission and management over HTTP.
// Every route requires an authenticated account; quota and permission
// decisions come back as typed errors and map to stable response keys.
package bugs

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bugtrackerhq/entitlements/core"
	"github.com/bugtrackerhq/entitlements/svc/account"
	"github.com/bugtrackerhq/entitlements/svc/authz"
	"github.com/bugtrackerhq/entitlements/svc/bugs"
	"github.com/bugtrackerhq/entitlements/svc/quota"
)

// Router mounts the bug report endpoints.
func Router(svc *bugs.Service, log *slog.Logger) chi.Router {
	h := &handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Post("/", h.submit)
	r.Get("/", h.list)
	r.Route("/{bugID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.remove)
		r.Post("/assign", h.assign)
	})

	return r
}

type handler struct {
	svc *bugs.Service
	log *slog.Logger
}

type submitRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	TeamID      *string `json:"team_id"`
	RequestAI   bool    `json:"request_ai"`
	Attachments []struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"attachments"`
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := account.GetIDFromContext(r.Context())
	if !ok {
		core.JSONError(w, core.ErrUnauthorized)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return
	}

	in := bugs.SubmitInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    bugs.Priority(req.Priority),
		RequestAI:   req.RequestAI,
	}
	if req.TeamID != nil {
		teamID, err := uuid.Parse(*req.TeamID)
		if err != nil {
			core.JSONError(w, core.ErrBadRequest)
			return
		}
		in.TeamID = &teamID
	}
	for _, att := range req.Attachments {
		in.Attachments = append(in.Attachments, bugs.AttachmentMeta{Name: att.Name, Size: att.Size})
	}

	bug, err := h.svc.Submit(r.Context(), actorID, in)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusCreated, toBugResponse(bug))
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	actorID, ok := account.GetIDFromContext(r.Context())
	if !ok {
		core.JSONError(w, core.ErrUnauthorized)
		return
	}

	all, err := h.svc.List(r.Context(), actorID)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	out := make([]bugResponse, len(all))
	for i, b := range all {
		out[i] = toBugResponse(b)
	}
	core.JSON(w, http.StatusOK, out)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	actorID, bugID, ok := h.ids(w, r)
	if !ok {
		return
	}

	bug, err := h.svc.Get(r.Context(), actorID, bugID)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, toBugResponse(bug))
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	actorID, bugID, ok := h.ids(w, r)
	if !ok {
		return
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Priority    *string `json:"priority"`
		Status      *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return
	}

	in := bugs.UpdateInput{Title: req.Title, Description: req.Description}
	if req.Priority != nil {
		p := bugs.Priority(*req.Priority)
		in.Priority = &p
	}
	if req.Status != nil {
		st := bugs.Status(*req.Status)
		in.Status = &st
	}

	bug, err := h.svc.Update(r.Context(), actorID, bugID, in)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, toBugResponse(bug))
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	actorID, bugID, ok := h.ids(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), actorID, bugID); err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) assign(w http.ResponseWriter, r *http.Request) {
	actorID, bugID, ok := h.ids(w, r)
	if !ok {
		return
	}

	var req struct {
		AssigneeID string `json:"assignee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return
	}
	assigneeID, err := uuid.Parse(req.AssigneeID)
	if err != nil {
		core.JSONError(w, core.ErrBadRequest)
		return
	}

	bug, err := h.svc.Assign(r.Context(), actorID, bugID, assigneeID)
	if err != nil {
		core.JSONError(w, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, toBugResponse(bug))
}

// ids resolves the acting account and the bug id from the request,
// writing the error response itself when either is missing.
func (h *handler) ids(w http.ResponseWriter, r *http.Request) (actorID, bugID uuid.UUID, ok bool) {
	actorID, ok = account.GetIDFromContext(r.Context())
	if !ok {
		core.JSONError(w, core.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	bugID, err := uuid.Parse(chi.URLParam(r, "bugID"))
	if err != nil {
		core.JSONError(w, core.ErrNotFound)
		return uuid.Nil, uuid.Nil, false
	}
	return actorID, bugID, true
}

type bugResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	OwnerID     string     `json:"owner_id"`
	TeamID      *string    `json:"team_id,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	AIRequested bool       `json:"ai_requested"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func toBugResponse(b *bugs.Bug) bugResponse {
	resp := bugResponse{
		ID:          b.ID.String(),
		Title:       b.Title,
		Description: b.Description,
		Priority:    string(b.Priority),
		Status:      string(b.Status),
		OwnerID:     b.OwnerID.String(),
		AIRequested: b.AIRequested,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		ResolvedAt:  b.ResolvedAt,
	}
	if b.TeamID != nil {
		s := b.TeamID.String()
		resp.TeamID = &s
	}
	if b.AssigneeID != nil {
		s := b.AssigneeID.String()
		resp.AssigneeID = &s
	}
	return resp
}

func mapError(err error) error {
	switch {
	case errors.Is(err, bugs.ErrInvalidInput):
		return core.ErrBadRequest
	case errors.Is(err, bugs.ErrNotFound), errors.Is(err, account.ErrNotFound):
		return core.ErrNotFound
	case errors.Is(err, authz.ErrPermissionDenied):
		return core.ErrForbidden
	case errors.Is(err, bugs.ErrAssigneeNotOnTeam):
		return core.NewHTTPError(http.StatusUnprocessableEntity, "assignee_not_on_team")
	case errors.Is(err, quota.ErrQuotaExceeded):
		return core.NewHTTPError(http.StatusPaymentRequired, "quota_exceeded")
	case errors.Is(err, quota.ErrSubscriptionInactive):
		return core.NewHTTPError(http.StatusPaymentRequired, "subscription_inactive")
	case errors.Is(err, quota.ErrFeatureNotInPlan):
		return core.NewHTTPError(http.StatusPaymentRequired, "feature_not_in_plan")
	case errors.Is(err, quota.ErrAttachmentLimitReached):
		return core.NewHTTPError(http.StatusBadRequest, "attachment_limit_reached")
	case errors.Is(err, quota.ErrFileTooLarge):
		return core.NewHTTPError(http.StatusRequestEntityTooLarge, "file_too_large")
	default:
		return err
	}
}

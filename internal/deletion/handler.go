// AngelaMos | 2026
// handler.go

package deletion

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carterperez-dev/erasure/internal/core"
	"github.com/carterperez-dev/erasure/internal/middleware"
)

type Handler struct {
	manager   *Manager
	validator *validator.Validate
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{
		manager:   manager,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the account owner's deletion endpoints. They only
// need authentication: a pending account must still be able to cancel.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limiter func(http.Handler) http.Handler,
) {
	r.Route("/users/me/deletion", func(r chi.Router) {
		r.Use(authenticator)
		if limiter != nil {
			r.Use(limiter)
		}
		r.Get("/", h.GetStatus)
		r.Post("/", h.Request)
		r.Delete("/", h.Cancel)
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := currentAccount(w, r)
	if !ok {
		return
	}

	acct, err := h.manager.Status(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToStatusResponse(acct))
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	accountID, ok := currentAccount(w, r)
	if !ok {
		return
	}

	var req RequestDeletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	grace := time.Duration(req.GracePeriodDays) * 24 * time.Hour

	scheduledAt, err := h.manager.RequestDeletion(r.Context(), accountID, req.Reason, grace)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Accepted(w, ScheduledResponse{
		State:       StatePending,
		ScheduledAt: scheduledAt,
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID, ok := currentAccount(w, r)
	if !ok {
		return
	}

	if err := h.manager.CancelPending(r.Context(), accountID); err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, StatusResponse{State: StateActive})
}

func currentAccount(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		core.Unauthorized(w, "authentication required")
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrManualReview):
		core.JSONError(w, &core.AppError{
			Status:  http.StatusConflict,
			Code:    "DELETION_FAILED",
			Message: "account deletion could not be completed; please contact support",
			Err:     err,
		})
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "account")
	case errors.Is(err, ErrStateConflict):
		core.JSONError(w, core.ConflictError(
			"account is not in a state that allows this operation",
		))
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid grace period")
	default:
		core.InternalServerError(w, err)
	}
}

// WriteError renders lifecycle errors for other packages' handlers.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err)
}

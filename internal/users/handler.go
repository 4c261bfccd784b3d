package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campuspay/campuspay/internal/platform/httpx"
	"github.com/campuspay/campuspay/internal/shared"
)

// Handler exposes cashier account management over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers cashier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/activate", h.activate)
	r.Post("/{id}/deactivate", h.deactivate)
	r.Post("/{id}/reset-credentials", h.resetCredentials)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	cashiers, err := h.service.ListCashiers(r.Context())
	if err != nil {
		h.logger.Error("list cashiers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if cashiers == nil {
		cashiers = []CashierSummary{}
	}
	httpx.OK(w, "", cashiers)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "", user)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateCashierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, _ := shared.IdentityFromContext(r.Context())
	credentials, err := h.service.CreateCashier(r.Context(), req, identity.UserID, identity.Role)
	if err != nil {
		h.logger.Error("create cashier", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.Created(w, "Cashier account created", credentials)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	var req UpdateCashierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, _ := shared.IdentityFromContext(r.Context())
	user, err := h.service.Update(r.Context(), id, req, identity.UserID, identity.Role)
	if err != nil {
		h.logger.Error("update cashier", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Cashier account updated", user)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id, identity.UserID, identity.Role); err != nil {
		h.logger.Error("delete cashier", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Cashier account deleted", nil)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true, "Cashier account reactivated")
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false, "Cashier account suspended")
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool, message string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	user, err := h.service.SetActive(r.Context(), id, active, identity.UserID, identity.Role)
	if err != nil {
		h.logger.Error("set cashier active", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.OK(w, message, user)
}

func (h *Handler) resetCredentials(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	credentials, err := h.service.ResetCredentials(r.Context(), id, identity.UserID, identity.Role)
	if err != nil {
		h.logger.Error("reset cashier credentials", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Temporary password issued", credentials)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch err {
	case ErrNotFound:
		httpx.Fail(w, http.StatusNotFound, err.Error())
	case ErrEmailTaken, ErrHasPayments:
		httpx.Fail(w, http.StatusConflict, err.Error())
	case ErrNotCashier:
		httpx.Fail(w, http.StatusBadRequest, err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

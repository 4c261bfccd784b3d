package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campuspay/campuspay/internal/platform/httpx"
	"github.com/campuspay/campuspay/internal/shared"
)

// Handler exposes the dashboards over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/admin", h.admin)
	r.Get("/cashier", h.cashier)
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.Admin(r.Context())
	if err != nil {
		h.logger.Error("admin dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "", dash)
}

func (h *Handler) cashier(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusBadRequest, "Missing user identity")
		return
	}
	dash, err := h.service.Cashier(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("cashier dashboard", slog.Any("error", err), slog.Int64("user_id", identity.UserID))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "", dash)
}

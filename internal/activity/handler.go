package activity

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campuspay/campuspay/internal/platform/httpx"
	"github.com/campuspay/campuspay/internal/shared"
)

// Handler exposes the activity trail over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers activity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/stats", h.stats)
	r.Post("/purge", h.purge)
}

type listResponse struct {
	Entries    []Entry           `json:"entries"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	req := ListRequest{
		Search:  q.Get("search"),
		Role:    q.Get("role"),
		Page:    page,
		PerPage: perPage,
	}
	if v := q.Get("user_id"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "Invalid user ID")
			return
		}
		req.UserID = &userID
	}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
			return
		}
		req.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		// Inclusive end date.
		end := to.AddDate(0, 0, 1)
		req.To = &end
	}

	entries, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list activity", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.OK(w, "", listResponse{
		Entries:    entries,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.logger.Error("activity stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "", stats)
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.Purge(r.Context())
	if err != nil {
		h.logger.Error("purge activity", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Old activity entries removed", map[string]int64{"removed": removed})
}

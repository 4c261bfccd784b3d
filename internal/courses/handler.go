package courses

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campuspay/campuspay/internal/ledger"
	"github.com/campuspay/campuspay/internal/platform/httpx"
	"github.com/campuspay/campuspay/internal/shared"
)

// Handler exposes the course catalogue over HTTP. The ledger service backs
// the per-course student balance listing.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	ledger   *ledger.Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, ledgerSvc *ledger.Service) *Handler {
	return &Handler{logger: logger, service: service, ledger: ledgerSvc, validate: validator.New()}
}

// MountRoutes registers course routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/activate", h.activate)
	r.Post("/{id}/deactivate", h.deactivate)
	r.Get("/{id}/students", h.listStudents)
}

type listResponse struct {
	Courses    []CourseSummary   `json:"courses"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	req := ListCoursesRequest{Search: q.Get("search"), Page: page, PerPage: perPage}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "Invalid active filter")
			return
		}
		req.Active = &active
	}

	courses, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list courses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if courses == nil {
		courses = []CourseSummary{}
	}
	httpx.OK(w, "", listResponse{
		Courses:    courses,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid course ID")
		return
	}
	course, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "", course)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateCourseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, _ := shared.IdentityFromContext(r.Context())
	course, err := h.service.Create(r.Context(), req, identity.UserID, identity.Role)
	if err != nil {
		h.logger.Error("create course", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.Created(w, "Course added", course)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid course ID")
		return
	}
	var req UpdateCourseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, _ := shared.IdentityFromContext(r.Context())
	course, err := h.service.Update(r.Context(), id, req, identity.UserID, identity.Role)
	if err != nil {
		h.logger.Error("update course", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Course updated", course)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid course ID")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id, identity.UserID, identity.Role); err != nil {
		h.logger.Error("delete course", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Course deleted", nil)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true, "Course reopened")
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false, "Course closed")
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool, message string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid course ID")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	course, err := h.service.SetActive(r.Context(), id, active, identity.UserID, identity.Role)
	if err != nil {
		h.logger.Error("set course active", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.OK(w, message, course)
}

type studentsResponse struct {
	Students   []ledger.StudentBalance `json:"students"`
	Pagination shared.Pagination       `json:"pagination"`
}

func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid course ID")
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	balances, total, err := h.ledger.ListBalances(r.Context(), ledger.ListBalancesRequest{
		CourseID: &id,
		Status:   ledger.BillingStatus(q.Get("status")),
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		h.logger.Error("list course students", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	if balances == nil {
		balances = []ledger.StudentBalance{}
	}
	httpx.OK(w, "", studentsResponse{
		Students:   balances,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch err {
	case ErrNotFound:
		httpx.Fail(w, http.StatusNotFound, err.Error())
	case ErrNameTaken, ErrHasActiveStudents, ErrInUse:
		httpx.Fail(w, http.StatusConflict, err.Error())
	case ErrInvalidPrice:
		httpx.Fail(w, http.StatusBadRequest, err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

package students

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

// Handler exposes student management over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers student routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/next-code", h.nextCode)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/activate", h.activate)
	r.Post("/{id}/deactivate", h.deactivate)
}

type listResponse struct {
	Students   []Student         `json:"students"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	req := ListStudentsRequest{
		Search:        q.Get("search"),
		PaymentStatus: ledger.BillingStatus(q.Get("payment_status")),
		Page:          page,
		PerPage:       perPage,
	}
	if v := q.Get("course_id"); v != "" {
		courseID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "Invalid course ID")
			return
		}
		req.CourseID = &courseID
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "Invalid active filter")
			return
		}
		req.Active = &active
	}

	students, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list students", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if students == nil {
		students = []Student{}
	}
	httpx.OK(w, "", listResponse{
		Students:   students,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid student ID")
		return
	}
	student, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "", student)
}

func (h *Handler) nextCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.service.NextCode(r.Context())
	if err != nil {
		h.logger.Error("preview student code", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "", map[string]string{"code": code})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, _ := shared.IdentityFromContext(r.Context())
	student, err := h.service.Create(r.Context(), req, identity.UserID, identity.Role)
	if err != nil {
		h.logger.Error("create student", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.Created(w, "Student registered", student)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid student ID")
		return
	}
	var req UpdateStudentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, _ := shared.IdentityFromContext(r.Context())
	student, err := h.service.Update(r.Context(), id, req, identity.UserID, identity.Role)
	if err != nil {
		h.logger.Error("update student", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Student updated", student)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true, "Student activated")
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false, "Student deactivated")
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool, message string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid student ID")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	student, err := h.service.SetActive(r.Context(), id, active, identity.UserID, identity.Role)
	if err != nil {
		h.logger.Error("set student active", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.OK(w, message, student)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch err {
	case ErrNotFound:
		httpx.Fail(w, http.StatusNotFound, err.Error())
	case ErrEmailTaken, ErrCodeTaken:
		httpx.Fail(w, http.StatusConflict, err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

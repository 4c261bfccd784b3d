package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campuspay/campuspay/internal/observability"
	"github.com/campuspay/campuspay/internal/platform/httpx"
	"github.com/campuspay/campuspay/internal/shared"
)

// Handler exposes the ledger over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *observability.Metrics
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balances", h.listBalances)
	r.Post("/payments", h.collectPayment)
	r.Post("/billing", h.openBilling)
	r.Get("/students/{id}/balance", h.getBalance)
	r.Get("/students/{id}/payments", h.paymentHistory)
}

type collectPaymentRequest struct {
	StudentID   int64         `json:"student_id"`
	BillingID   *int64        `json:"billing_id"`
	Amount      float64       `json:"amount"`
	Method      PaymentMethod `json:"method"`
	ReferenceNo string        `json:"reference_no"`
	PaymentDate string        `json:"payment_date"`
	Notes       string        `json:"notes"`
}

type collectPaymentResponse struct {
	Payment *Payment    `json:"payment"`
	Balance BalanceView `json:"balance"`
}

func (h *Handler) collectPayment(w http.ResponseWriter, r *http.Request) {
	var req collectPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var paymentDate time.Time
	if req.PaymentDate != "" {
		var err error
		paymentDate, err = time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "Invalid payment date, expected YYYY-MM-DD")
			return
		}
	}

	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "Collector identity required")
		return
	}

	payment, view, err := h.service.CollectPayment(r.Context(), CollectPaymentInput{
		StudentID:     req.StudentID,
		BillingID:     req.BillingID,
		Amount:        req.Amount,
		Method:        req.Method,
		ReferenceNo:   req.ReferenceNo,
		PaymentDate:   paymentDate,
		CollectedBy:   identity.UserID,
		CollectorRole: identity.Role,
		Notes:         req.Notes,
	})
	if err != nil {
		h.logger.Error("collect payment", slog.Any("error", err), slog.Int64("student_id", req.StudentID))
		h.respondError(w, err)
		return
	}

	h.metrics.ObservePayment(string(payment.Method), payment.Amount)
	httpx.Created(w, "Payment recorded", collectPaymentResponse{Payment: payment, Balance: *view})
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	var term *Term
	q := r.URL.Query()
	if q.Get("semester") != "" {
		fromYear, _ := strconv.Atoi(q.Get("from_year"))
		toYear, _ := strconv.Atoi(q.Get("to_year"))
		term = &Term{Semester: Semester(q.Get("semester")), FromYear: fromYear, ToYear: toYear}
		if !term.Semester.Valid() || fromYear <= 0 || toYear < fromYear {
			httpx.Fail(w, http.StatusBadRequest, "Invalid term")
			return
		}
	}

	view, err := h.service.GetBalance(r.Context(), id, term)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "", view)
}

func (h *Handler) paymentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	entries, err := h.service.PaymentHistory(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if entries == nil {
		entries = []PaymentEntry{}
	}
	httpx.OK(w, "", entries)
}

type openBillingRequest struct {
	StudentID int64    `json:"student_id"`
	Semester  Semester `json:"semester"`
	FromYear  int      `json:"from_year"`
	ToYear    int      `json:"to_year"`
	TotalDue  float64  `json:"total_due"`
}

func (h *Handler) openBilling(w http.ResponseWriter, r *http.Request) {
	var req openBillingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	billing, err := h.service.OpenBilling(r.Context(), OpenBillingInput{
		StudentID: req.StudentID,
		Term:      Term{Semester: req.Semester, FromYear: req.FromYear, ToYear: req.ToYear},
		TotalDue:  req.TotalDue,
	})
	if err != nil {
		h.logger.Error("open billing", slog.Any("error", err), slog.Int64("student_id", req.StudentID))
		h.respondError(w, err)
		return
	}
	httpx.Created(w, "Billing record created", billing)
}

type balancesResponse struct {
	Balances   []StudentBalance  `json:"balances"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listBalances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	req := ListBalancesRequest{
		Status:  BillingStatus(q.Get("status")),
		Search:  q.Get("search"),
		Page:    page,
		PerPage: perPage,
	}
	if v := q.Get("course_id"); v != "" {
		courseID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "Invalid course ID")
			return
		}
		req.CourseID = &courseID
	}

	balances, total, err := h.service.ListBalances(r.Context(), req)
	if err != nil {
		h.logger.Error("list balances", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if balances == nil {
		balances = []StudentBalance{}
	}
	httpx.OK(w, "", balancesResponse{
		Balances:   balances,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

// respondError maps ledger errors onto the shared HTTP error taxonomy so the
// envelope carries the domain message.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch err {
	case ErrStudentNotFound, ErrBillingNotFound:
		httpx.Fail(w, http.StatusNotFound, err.Error())
	case ErrStudentInactive, ErrOverpayment, ErrDuplicateBilling:
		httpx.Fail(w, http.StatusConflict, err.Error())
	case ErrInvalidAmount, ErrInvalidMethod, ErrInvalidTerm, ErrInvalidDue, ErrBillingMismatch:
		httpx.Fail(w, http.StatusBadRequest, err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

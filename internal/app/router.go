package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/campuspay/campuspay/internal/activity"
	"github.com/campuspay/campuspay/internal/courses"
	"github.com/campuspay/campuspay/internal/dashboard"
	"github.com/campuspay/campuspay/internal/ledger"
	"github.com/campuspay/campuspay/internal/observability"
	"github.com/campuspay/campuspay/internal/students"
	"github.com/campuspay/campuspay/internal/users"
	"github.com/campuspay/campuspay/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	LedgerHandler    *ledger.Handler
	StudentsHandler  *students.Handler
	CoursesHandler   *courses.Handler
	UsersHandler     *users.Handler
	ActivityHandler  *activity.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.LedgerHandler != nil {
			api.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.StudentsHandler != nil {
			api.Route("/students", params.StudentsHandler.MountRoutes)
		}
		if params.CoursesHandler != nil {
			api.Route("/courses", params.CoursesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			api.Route("/cashiers", params.UsersHandler.MountRoutes)
		}
		if params.ActivityHandler != nil {
			api.Route("/activity", params.ActivityHandler.MountRoutes)
		}
		if params.DashboardHandler != nil {
			api.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	purges  int
	warmups int
	err     error
}

func (s *stubEnqueuer) EnqueueActivityPurge(ctx context.Context) (*asynq.TaskInfo, error) {
	s.purges++
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "purge-1", Queue: QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueDashboardWarmup(ctx context.Context) (*asynq.TaskInfo, error) {
	s.warmups++
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "warmup-1", Queue: QueueDefault}, nil
}

func newJobsRouter(enqueuer Enqueuer) chi.Router {
	handler := NewHandler(nil, enqueuer, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func TestEnqueueEndpointsSubmitTasks(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	router := newJobsRouter(enqueuer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/activity-purge", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "purge-1")
	require.Equal(t, 1, enqueuer.purges)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dashboard-warmup", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "warmup-1")
	require.Equal(t, 1, enqueuer.warmups)
}

func TestEnqueueUnavailableWithoutClient(t *testing.T) {
	router := newJobsRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/activity-purge", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEnqueueReportsBrokerFailure(t *testing.T) {
	enqueuer := &stubEnqueuer{err: errors.New("redis down")}
	router := newJobsRouter(enqueuer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dashboard-warmup", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	revenueMonths      = 12
	recentPaymentRows  = 10
	recentActivityRows = 10
	topCourseRows      = 5
)

// Service builds and caches dashboard payloads. Concurrent requests for the
// same dashboard share one rebuild through the singleflight group.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService builds the dashboard service.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Admin returns the admin dashboard, cached.
func (s *Service) Admin(ctx context.Context) (*AdminDashboard, error) {
	key, err := s.cache.BuildKey(ctx, "dashboard", "admin")
	if err != nil {
		s.logger.Warn("dashboard cache key", slog.Any("error", err))
		key = "dashboard:admin"
	}

	var out AdminDashboard
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.buildShared(ctx, key, func(ctx context.Context) (interface{}, error) {
			return s.buildAdmin(ctx)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Cashier returns the dashboard for one collector, cached per user.
func (s *Service) Cashier(ctx context.Context, userID int64) (*CashierDashboard, error) {
	key, err := s.cache.BuildKey(ctx, "dashboard", "cashier", fmt.Sprintf("%d", userID))
	if err != nil {
		s.logger.Warn("dashboard cache key", slog.Any("error", err))
		key = fmt.Sprintf("dashboard:cashier:%d", userID)
	}

	var out CashierDashboard
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.buildShared(ctx, key, func(ctx context.Context) (interface{}, error) {
			return s.buildCashier(ctx, userID)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Invalidate drops every cached dashboard. Called after bulk changes and by
// the warmup job before it rebuilds.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Warmup rebuilds the admin dashboard into a fresh cache generation.
func (s *Service) Warmup(ctx context.Context) error {
	if err := s.Invalidate(ctx); err != nil {
		return err
	}
	_, err := s.Admin(ctx)
	return err
}

func (s *Service) buildShared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.Val, res.Err
	}
}

func (s *Service) buildAdmin(ctx context.Context) (*AdminDashboard, error) {
	students, courses, cashiers, err := s.repo.ActiveCounts(ctx)
	if err != nil {
		return nil, err
	}
	total, today, _, err := s.repo.CollectedTotals(ctx, nil)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.repo.StatusBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.repo.MonthlyRevenue(ctx, revenueMonths)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.RecentPayments(ctx, nil, recentPaymentRows)
	if err != nil {
		return nil, err
	}
	activities, err := s.repo.RecentActivities(ctx, recentActivityRows)
	if err != nil {
		return nil, err
	}
	topCourses, err := s.repo.TopCourses(ctx, topCourseRows)
	if err != nil {
		return nil, err
	}

	return &AdminDashboard{
		ActiveStudents:   students,
		ActiveCourses:    courses,
		ActiveCashiers:   cashiers,
		TotalCollected:   total,
		CollectedToday:   today,
		StatusBreakdown:  breakdown,
		MonthlyRevenue:   revenue,
		RecentPayments:   payments,
		RecentActivities: activities,
		TopCourses:       topCourses,
		GeneratedAt:      s.now(),
	}, nil
}

func (s *Service) buildCashier(ctx context.Context, userID int64) (*CashierDashboard, error) {
	breakdown, err := s.repo.StatusBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	total, today, count, err := s.repo.CollectedTotals(ctx, &userID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.RecentPayments(ctx, &userID, recentPaymentRows)
	if err != nil {
		return nil, err
	}

	return &CashierDashboard{
		StatusBreakdown: breakdown,
		CollectedToday:  today,
		CollectedTotal:  total,
		PaymentCount:    count,
		RecentPayments:  payments,
		GeneratedAt:     s.now(),
	}, nil
}

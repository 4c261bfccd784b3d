package courses

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campuspay/campuspay/internal/ledger"
)

// Service implements course catalogue management.
type Service struct {
	repo     Repository
	activity ledger.ActivityRecorder
	logger   *slog.Logger
}

// NewService builds the course service.
func NewService(repo Repository, activity ledger.ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, activity: activity, logger: logger}
}

// Get returns one course.
func (s *Service) Get(ctx context.Context, id int64) (*Course, error) {
	return s.repo.Get(ctx, id)
}

// List returns courses with enrollment counts.
func (s *Service) List(ctx context.Context, req ListCoursesRequest) ([]CourseSummary, int, error) {
	return s.repo.List(ctx, req)
}

// Create adds a course to the catalogue.
func (s *Service) Create(ctx context.Context, req CreateCourseRequest, actor int64, actorRole string) (*Course, error) {
	if req.Price < 0 {
		return nil, ErrInvalidPrice
	}
	id, err := s.repo.Create(ctx, Course{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		return nil, err
	}
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, actorRole, fmt.Sprintf("Added course %s", course.Name))
	return course, nil
}

// Update edits the given fields. Changing the price only affects future due
// fallbacks; existing billing records keep their total_due.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCourseRequest, actor int64, actorRole string) (*Course, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = textOrNull(*req.Description)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, ErrInvalidPrice
		}
		updates["price"] = *req.Price
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, err
	}
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, actorRole, fmt.Sprintf("Updated course %s", course.Name))
	return course, nil
}

// SetActive opens or closes a course for enrollment. Deactivation is blocked
// while active students are still enrolled.
func (s *Service) SetActive(ctx context.Context, id int64, active bool, actor int64, actorRole string) (*Course, error) {
	if !active {
		usage, err := s.repo.GetUsage(ctx, id)
		if err != nil {
			return nil, err
		}
		if usage.ActiveStudents > 0 {
			return nil, ErrHasActiveStudents
		}
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	verb := "Closed"
	if active {
		verb = "Reopened"
	}
	s.record(ctx, actor, actorRole, fmt.Sprintf("%s course %s", verb, course.Name))
	return course, nil
}

// Delete removes a course permanently. Refused while any student or payment
// record references it; deactivate instead.
func (s *Service) Delete(ctx context.Context, id int64, actor int64, actorRole string) error {
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	usage, err := s.repo.GetUsage(ctx, id)
	if err != nil {
		return err
	}
	if usage.Students > 0 || usage.Payments > 0 {
		return ErrInUse
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, actorRole, fmt.Sprintf("Deleted course %s", course.Name))
	return nil
}

func (s *Service) record(ctx context.Context, actor int64, role, action string) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, actor, role, action); err != nil && s.logger != nil {
		s.logger.Warn("record course activity", slog.Any("error", err))
	}
}

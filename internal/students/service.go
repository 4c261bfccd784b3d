package students

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campuspay/campuspay/internal/ledger"
)

const codeRetries = 3

// Service implements student management.
type Service struct {
	repo     Repository
	activity ledger.ActivityRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the student service.
func NewService(repo Repository, activity ledger.ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, activity: activity, logger: logger, now: time.Now}
}

// Get returns one student.
func (s *Service) Get(ctx context.Context, id int64) (*Student, error) {
	return s.repo.Get(ctx, id)
}

// List returns students matching the filters.
func (s *Service) List(ctx context.Context, req ListStudentsRequest) ([]Student, int, error) {
	return s.repo.List(ctx, req)
}

// NextCode previews the code the next registration this year would receive.
// Another registration can still claim it first; Create retries on collision.
func (s *Service) NextCode(ctx context.Context) (string, error) {
	year := s.now().Year()
	seq, err := s.repo.NextSequence(ctx, year)
	if err != nil {
		return "", err
	}
	return formatCode(year, seq), nil
}

// Create registers a student with a generated code. The code is claimed by
// the insert itself; when a concurrent registration wins the race on the
// unique constraint, the next sequence is re-read and the insert retried.
func (s *Service) Create(ctx context.Context, req CreateStudentRequest, actor int64, actorRole string) (*Student, error) {
	year := s.now().Year()
	var lastErr error
	for attempt := 0; attempt < codeRetries; attempt++ {
		seq, err := s.repo.NextSequence(ctx, year)
		if err != nil {
			return nil, err
		}
		id, err := s.repo.Create(ctx, Student{
			Code:      formatCode(year, seq),
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
			Address:   req.Address,
			CourseID:  req.CourseID,
		})
		if err != nil {
			if errors.Is(err, ErrCodeTaken) {
				lastErr = err
				continue
			}
			return nil, err
		}

		student, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		s.record(ctx, actor, actorRole,
			fmt.Sprintf("Registered student %s (%s)", student.FullName(), student.Code))
		return student, nil
	}
	return nil, lastErr
}

// Update edits the given fields of a student.
func (s *Service) Update(ctx context.Context, id int64, req UpdateStudentRequest, actor int64, actorRole string) (*Student, error) {
	updates := make(map[string]interface{})
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Email != nil {
		updates["email"] = textOrNull(*req.Email)
	}
	if req.Phone != nil {
		updates["phone"] = textOrNull(*req.Phone)
	}
	if req.Address != nil {
		updates["address"] = textOrNull(*req.Address)
	}
	if req.CourseID != nil {
		updates["course_id"] = *req.CourseID
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, err
	}
	student, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, actorRole,
		fmt.Sprintf("Updated student %s (%s)", student.FullName(), student.Code))
	return student, nil
}

// SetActive enrolls or retires a student. Records stay; inactive students
// cannot receive payments.
func (s *Service) SetActive(ctx context.Context, id int64, active bool, actor int64, actorRole string) (*Student, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	student, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	verb := "Deactivated"
	if active {
		verb = "Activated"
	}
	s.record(ctx, actor, actorRole,
		fmt.Sprintf("%s student %s (%s)", verb, student.FullName(), student.Code))
	return student, nil
}

func (s *Service) record(ctx context.Context, actor int64, role, action string) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, actor, role, action); err != nil && s.logger != nil {
		s.logger.Warn("record student activity", slog.Any("error", err))
	}
}

func formatCode(year, seq int) string {
	return fmt.Sprintf("STU-%d-%05d", year, seq)
}

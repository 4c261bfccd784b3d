package courses

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	courses map[int64]Course
	usage   map[int64]Usage
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{courses: make(map[int64]Course), usage: make(map[int64]Usage), nextID: 1}
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *memoryRepo) List(ctx context.Context, req ListCoursesRequest) ([]CourseSummary, int, error) {
	var out []CourseSummary
	for _, c := range m.courses {
		u := m.usage[c.ID]
		out = append(out, CourseSummary{Course: c, StudentCount: u.Students, ActiveStudentCount: u.ActiveStudents})
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(ctx context.Context, course Course) (int64, error) {
	for _, c := range m.courses {
		if c.Name == course.Name {
			return 0, ErrNameTaken
		}
	}
	course.ID = m.nextID
	course.Active = true
	course.CreatedAt = time.Now()
	course.UpdatedAt = course.CreatedAt
	m.nextID++
	m.courses[course.ID] = course
	return course.ID, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	c, ok := m.courses[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	if v, ok := updates["price"]; ok {
		c.Price = v.(float64)
	}
	m.courses[id] = c
	return nil
}

func (m *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	c, ok := m.courses[id]
	if !ok {
		return ErrNotFound
	}
	c.Active = active
	m.courses[id] = c
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.courses[id]; !ok {
		return ErrNotFound
	}
	delete(m.courses, id)
	return nil
}

func (m *memoryRepo) GetUsage(ctx context.Context, id int64) (*Usage, error) {
	if _, ok := m.courses[id]; !ok {
		return nil, ErrNotFound
	}
	u := m.usage[id]
	return &u, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, slog.New(slog.DiscardHandler))
}

func TestCreateCourse(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	course, err := svc.Create(context.Background(), CreateCourseRequest{Name: "BS Information Technology", Price: 25000}, 1, "admin")
	require.NoError(t, err)
	require.Equal(t, "BS Information Technology", course.Name)
	require.Equal(t, 25000.0, course.Price)
	require.True(t, course.Active)
}

func TestCreateCourseDuplicateName(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateCourseRequest{Name: "BS Nursing", Price: 30000}, 1, "admin")
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateCourseRequest{Name: "BS Nursing", Price: 32000}, 1, "admin")
	require.ErrorIs(t, err, ErrNameTaken)
}

func TestDeactivateBlockedByActiveStudents(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	course, err := svc.Create(ctx, CreateCourseRequest{Name: "BS Nursing", Price: 30000}, 1, "admin")
	require.NoError(t, err)
	repo.usage[course.ID] = Usage{Students: 3, ActiveStudents: 2}

	_, err = svc.SetActive(ctx, course.ID, false, 1, "admin")
	require.ErrorIs(t, err, ErrHasActiveStudents)

	repo.usage[course.ID] = Usage{Students: 3, ActiveStudents: 0}
	updated, err := svc.SetActive(ctx, course.ID, false, 1, "admin")
	require.NoError(t, err)
	require.False(t, updated.Active)
}

func TestDeleteBlockedWhileReferenced(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	course, err := svc.Create(ctx, CreateCourseRequest{Name: "BS Nursing", Price: 30000}, 1, "admin")
	require.NoError(t, err)

	repo.usage[course.ID] = Usage{Students: 1}
	require.ErrorIs(t, svc.Delete(ctx, course.ID, 1, "admin"), ErrInUse)

	repo.usage[course.ID] = Usage{Payments: 4}
	require.ErrorIs(t, svc.Delete(ctx, course.ID, 1, "admin"), ErrInUse)

	repo.usage[course.ID] = Usage{}
	require.NoError(t, svc.Delete(ctx, course.ID, 1, "admin"))
	_, err = svc.Get(ctx, course.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCoursePrice(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	course, err := svc.Create(ctx, CreateCourseRequest{Name: "BS Nursing", Price: 30000}, 1, "admin")
	require.NoError(t, err)

	bad := -5.0
	_, err = svc.Update(ctx, course.ID, UpdateCourseRequest{Price: &bad}, 1, "admin")
	require.ErrorIs(t, err, ErrInvalidPrice)

	price := 31000.0
	updated, err := svc.Update(ctx, course.ID, UpdateCourseRequest{Price: &price}, 1, "admin")
	require.NoError(t, err)
	require.Equal(t, 31000.0, updated.Price)
}

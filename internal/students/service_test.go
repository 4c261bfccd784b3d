package students

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu       sync.Mutex
	students map[int64]Student
	nextID   int64

	// takenOnce simulates another registration winning the code race.
	takenOnce map[string]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{students: make(map[int64]Student), nextID: 1, takenOnce: make(map[string]bool)}
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *memoryRepo) List(ctx context.Context, req ListStudentsRequest) ([]Student, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Student
	for _, s := range m.students {
		if req.Active != nil && s.Active != *req.Active {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(ctx context.Context, student Student) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takenOnce[student.Code] {
		delete(m.takenOnce, student.Code)
		return 0, ErrCodeTaken
	}
	for _, s := range m.students {
		if s.Code == student.Code {
			return 0, ErrCodeTaken
		}
		if student.Email != "" && s.Email == student.Email {
			return 0, ErrEmailTaken
		}
	}
	student.ID = m.nextID
	student.Active = true
	student.CreatedAt = time.Now()
	student.UpdatedAt = student.CreatedAt
	m.nextID++
	m.students[student.ID] = student
	return student.ID, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["first_name"]; ok {
		s.FirstName = v.(string)
	}
	if v, ok := updates["last_name"]; ok {
		s.LastName = v.(string)
	}
	m.students[id] = s
	return nil
}

func (m *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return ErrNotFound
	}
	s.Active = active
	m.students[id] = s
	return nil
}

func (m *memoryRepo) NextSequence(ctx context.Context, year int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	prefix := formatCode(year, 0)[:9]
	for _, s := range m.students {
		if len(s.Code) >= 9 && s.Code[:9] == prefix {
			max++
		}
	}
	return max + 1, nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, slog.New(slog.DiscardHandler))
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateGeneratesSequentialCodes(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateStudentRequest{FirstName: "Ana", LastName: "Reyes"}, 1, "admin")
	require.NoError(t, err)
	require.Equal(t, "STU-2026-00001", first.Code)

	second, err := svc.Create(ctx, CreateStudentRequest{FirstName: "Ben", LastName: "Cruz"}, 1, "admin")
	require.NoError(t, err)
	require.Equal(t, "STU-2026-00002", second.Code)
}

func TestCreateRetriesOnCodeCollision(t *testing.T) {
	repo := newMemoryRepo()
	// First candidate is claimed by a concurrent registration.
	repo.takenOnce["STU-2026-00001"] = true
	svc := newTestService(repo)

	student, err := svc.Create(context.Background(), CreateStudentRequest{FirstName: "Ana", LastName: "Reyes"}, 1, "admin")
	require.NoError(t, err)
	require.Equal(t, "STU-2026-00001", student.Code)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateStudentRequest{FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com"}, 1, "admin")
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateStudentRequest{FirstName: "Ana", LastName: "Reyes-Cruz", Email: "ana@example.com"}, 1, "admin")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestNextCodePreview(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	code, err := svc.NextCode(ctx)
	require.NoError(t, err)
	require.Equal(t, "STU-2026-00001", code)

	_, err = svc.Create(ctx, CreateStudentRequest{FirstName: "Ana", LastName: "Reyes"}, 1, "admin")
	require.NoError(t, err)

	code, err = svc.NextCode(ctx)
	require.NoError(t, err)
	require.Equal(t, "STU-2026-00002", code)
}

func TestSetActive(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	student, err := svc.Create(ctx, CreateStudentRequest{FirstName: "Ana", LastName: "Reyes"}, 1, "admin")
	require.NoError(t, err)
	require.True(t, student.Active)

	student, err = svc.SetActive(ctx, student.ID, false, 1, "admin")
	require.NoError(t, err)
	require.False(t, student.Active)

	student, err = svc.SetActive(ctx, student.ID, true, 1, "admin")
	require.NoError(t, err)
	require.True(t, student.Active)
}

func TestUpdateUnknownStudent(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	name := "Ana"
	_, err := svc.Update(context.Background(), 42, UpdateStudentRequest{FirstName: &name}, 1, "admin")
	require.ErrorIs(t, err, ErrNotFound)
}

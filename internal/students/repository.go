package students

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuspay/campuspay/internal/ledger"
)

// Repository is the persistence surface the student service needs.
type Repository interface {
	Get(ctx context.Context, id int64) (*Student, error)
	List(ctx context.Context, req ListStudentsRequest) ([]Student, int, error)
	Create(ctx context.Context, student Student) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	SetActive(ctx context.Context, id int64, active bool) error
	NextSequence(ctx context.Context, year int) (int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const studentColumns = `
	s.id, s.code, s.first_name, s.last_name, s.email, s.phone, s.address,
	s.course_id, COALESCE(c.name, ''), s.is_active, s.created_at, s.updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Student, error) {
	query := fmt.Sprintf(`SELECT %s
		FROM students s
		LEFT JOIN courses c ON c.id = s.course_id
		WHERE s.id = $1`, studentColumns)
	return scanStudent(r.pool.QueryRow(ctx, query, id))
}

func (r *repository) List(ctx context.Context, req ListStudentsRequest) ([]Student, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.is_active = $%d", argPos))
		args = append(args, *req.Active)
		argPos++
	}
	if req.CourseID != nil {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", argPos))
		args = append(args, *req.CourseID)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(s.code ILIKE $%d OR s.first_name || ' ' || s.last_name ILIKE $%d OR s.email ILIKE $%d)",
			argPos, argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}
	if req.PaymentStatus != "" {
		conditions = append(conditions, ledger.StatusCondition(req.PaymentStatus,
			"COALESCE(b.total_paid, pay.total, 0)", "COALESCE(b.total_due, c.price, 0)"))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	base := fmt.Sprintf(`
		FROM students s
		LEFT JOIN courses c ON c.id = s.course_id
		LEFT JOIN LATERAL (
			SELECT total_due, total_paid FROM billing
			WHERE student_id = s.id
			ORDER BY from_year DESC, semester DESC, id DESC LIMIT 1
		) b ON TRUE
		LEFT JOIN LATERAL (
			SELECT COALESCE(SUM(amount), 0) AS total FROM payments WHERE student_id = s.id
		) pay ON TRUE
		%s`, whereClause)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("students: count: %w", err)
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 10
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf(`SELECT %s %s
		ORDER BY s.last_name, s.first_name
		LIMIT $%d OFFSET $%d`, studentColumns, base, argPos, argPos+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("students: list: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		s, err := scanStudentRow(rows)
		if err != nil {
			return nil, 0, err
		}
		students = append(students, *s)
	}
	return students, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, student Student) (int64, error) {
	query := `
		INSERT INTO students (code, first_name, last_name, email, phone, address,
			course_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW())
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		student.Code, student.FirstName, student.LastName,
		textOrNull(student.Email), textOrNull(student.Phone), textOrNull(student.Address),
		int8OrNull(student.CourseID),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return 0, ErrEmailTaken
			}
			return 0, ErrCodeTaken
		}
		return 0, fmt.Errorf("students: create: %w", err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(updates)+1)
	args := make([]interface{}, 0, len(updates)+1)
	argPos := 1
	for col, val := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argPos))
		args = append(args, val)
		argPos++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE students SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), argPos)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("students: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE students SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("students: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// NextSequence returns the next per-year sequence number for code generation.
// The value is advisory; the unique constraint on code is the real guard.
func (r *repository) NextSequence(ctx context.Context, year int) (int, error) {
	query := `
		SELECT COALESCE(MAX(SUBSTRING(code FROM 10)::INT), 0) + 1
		FROM students
		WHERE code LIKE $1`
	var next int
	if err := r.pool.QueryRow(ctx, query, fmt.Sprintf("STU-%d-%%", year)).Scan(&next); err != nil {
		return 0, fmt.Errorf("students: next sequence: %w", err)
	}
	return next, nil
}

func scanStudent(row pgx.Row) (*Student, error) {
	var s Student
	var email, phone, address pgtype.Text
	var courseID pgtype.Int8
	err := row.Scan(&s.ID, &s.Code, &s.FirstName, &s.LastName, &email, &phone, &address,
		&courseID, &s.CourseName, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("students: scan: %w", err)
	}
	s.Email = email.String
	s.Phone = phone.String
	s.Address = address.String
	if courseID.Valid {
		id := courseID.Int64
		s.CourseID = &id
	}
	return &s, nil
}

func scanStudentRow(rows pgx.Rows) (*Student, error) {
	return scanStudent(rows)
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func int8OrNull(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

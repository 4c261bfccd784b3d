package courses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Usage counts how many records reference a course. Deletion is only allowed
// when every count is zero.
type Usage struct {
	Students       int
	ActiveStudents int
	Payments       int
}

// Repository is the persistence surface the course service needs.
type Repository interface {
	Get(ctx context.Context, id int64) (*Course, error)
	List(ctx context.Context, req ListCoursesRequest) ([]CourseSummary, int, error)
	Create(ctx context.Context, course Course) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	GetUsage(ctx context.Context, id int64) (*Usage, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, id int64) (*Course, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, price, is_active, created_at, updated_at
		FROM courses WHERE id = $1`, id)

	var c Course
	var description pgtype.Text
	var price pgtype.Numeric
	err := row.Scan(&c.ID, &c.Name, &description, &price, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("courses: get: %w", err)
	}
	c.Description = description.String
	c.Price = numericFloat(price)
	return &c, nil
}

func (r *repository) List(ctx context.Context, req ListCoursesRequest) ([]CourseSummary, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.Active != nil {
		conditions = append(conditions, fmt.Sprintf("c.is_active = $%d", argPos))
		args = append(args, *req.Active)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("c.name ILIKE $%d", argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM courses c " + whereClause
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("courses: count: %w", err)
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 10
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf(`
		SELECT c.id, c.name, c.description, c.price, c.is_active, c.created_at, c.updated_at,
		       COUNT(s.id), COUNT(s.id) FILTER (WHERE s.is_active)
		FROM courses c
		LEFT JOIN students s ON s.course_id = c.id
		%s
		GROUP BY c.id
		ORDER BY c.name
		LIMIT $%d OFFSET $%d`, whereClause, argPos, argPos+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("courses: list: %w", err)
	}
	defer rows.Close()

	var summaries []CourseSummary
	for rows.Next() {
		var cs CourseSummary
		var description pgtype.Text
		var price pgtype.Numeric
		err := rows.Scan(&cs.ID, &cs.Name, &description, &price, &cs.Active,
			&cs.CreatedAt, &cs.UpdatedAt, &cs.StudentCount, &cs.ActiveStudentCount)
		if err != nil {
			return nil, 0, fmt.Errorf("courses: scan: %w", err)
		}
		cs.Description = description.String
		cs.Price = numericFloat(price)
		summaries = append(summaries, cs)
	}
	return summaries, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, course Course) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO courses (name, description, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, NOW(), NOW())
		RETURNING id`,
		course.Name, textOrNull(course.Description), course.Price,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrNameTaken
		}
		return 0, fmt.Errorf("courses: create: %w", err)
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

	query := fmt.Sprintf("UPDATE courses SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), argPos)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("courses: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE courses SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("courses: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("courses: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) GetUsage(ctx context.Context, id int64) (*Usage, error) {
	var u Usage
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(s.id),
		       COUNT(s.id) FILTER (WHERE s.is_active),
		       COUNT(p.id)
		FROM courses c
		LEFT JOIN students s ON s.course_id = c.id
		LEFT JOIN payments p ON p.student_id = s.id
		WHERE c.id = $1
		GROUP BY c.id`, id).Scan(&u.Students, &u.ActiveStudents, &u.Payments)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("courses: usage: %w", err)
	}
	return &u, nil
}

func numericFloat(n pgtype.Numeric) float64 {
	if !n.Valid {
		return 0
	}
	f, _ := n.Float64Value()
	return f.Float64
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

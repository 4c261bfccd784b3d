package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the persistence surface the activity service needs.
type Repository interface {
	Insert(ctx context.Context, userID int64, role, action string) error
	List(ctx context.Context, req ListRequest) ([]Entry, int, error)
	GetStats(ctx context.Context) (*Stats, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Insert(ctx context.Context, userID int64, role, action string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO activity_logs (user_id, role, action, created_at)
		VALUES ($1, $2, $3, NOW())`,
		userID, role, action)
	if err != nil {
		return fmt.Errorf("activity: insert: %w", err)
	}
	return nil
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Entry, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.Role != "" {
		conditions = append(conditions, fmt.Sprintf("l.role = $%d", argPos))
		args = append(args, req.Role)
		argPos++
	}
	if req.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("l.user_id = $%d", argPos))
		args = append(args, *req.UserID)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(l.action ILIKE $%d OR u.name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}
	if req.From != nil {
		conditions = append(conditions, fmt.Sprintf("l.created_at >= $%d", argPos))
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		conditions = append(conditions, fmt.Sprintf("l.created_at < $%d", argPos))
		args = append(args, *req.To)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	base := fmt.Sprintf(`
		FROM activity_logs l
		LEFT JOIN users u ON u.id = l.user_id
		%s`, whereClause)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("activity: count: %w", err)
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf(`
		SELECT l.id, l.user_id, COALESCE(u.name, ''), l.role, l.action, l.created_at
		%s
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $%d OFFSET $%d`, base, argPos, argPos+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("activity: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var name pgtype.Text
		if err := rows.Scan(&e.ID, &e.UserID, &name, &e.Role, &e.Action, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("activity: scan: %w", err)
		}
		e.UserName = name.String
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *repository) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE created_at >= CURRENT_DATE),
		       COUNT(*) FILTER (WHERE created_at >= CURRENT_DATE - INTERVAL '7 days'),
		       COUNT(DISTINCT user_id),
		       COUNT(*) FILTER (WHERE role = 'admin')
		FROM activity_logs`).Scan(&s.Total, &s.Today, &s.ThisWeek, &s.UserCount, &s.AdminCount)
	if err != nil {
		return nil, fmt.Errorf("activity: stats: %w", err)
	}
	return &s, nil
}

func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM activity_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("activity: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

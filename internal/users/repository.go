package users

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

// Repository is the persistence surface the user service needs.
type Repository interface {
	Get(ctx context.Context, id int64) (*User, error)
	ListCashiers(ctx context.Context) ([]CashierSummary, error)
	Create(ctx context.Context, user User, passwordHash []byte) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetPassword(ctx context.Context, id int64, passwordHash []byte, mustChange bool) error
	Delete(ctx context.Context, id int64) error
	CountCollections(ctx context.Context, id int64) (int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, role, is_active, must_change_password, created_at, updated_at
		FROM users WHERE id = $1`, id)

	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active,
		&u.MustChangePassword, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: get: %w", err)
	}
	return &u, nil
}

func (r *repository) ListCashiers(ctx context.Context) ([]CashierSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.name, u.email, u.role, u.is_active, u.must_change_password,
		       u.created_at, u.updated_at,
		       COUNT(p.id), COALESCE(SUM(p.amount), 0)
		FROM users u
		LEFT JOIN payments p ON p.collected_by = u.id
		WHERE u.role = 'cashier'
		GROUP BY u.id
		ORDER BY u.name`)
	if err != nil {
		return nil, fmt.Errorf("users: list cashiers: %w", err)
	}
	defer rows.Close()

	var cashiers []CashierSummary
	for rows.Next() {
		var cs CashierSummary
		var total pgtype.Numeric
		err := rows.Scan(&cs.ID, &cs.Name, &cs.Email, &cs.Role, &cs.Active,
			&cs.MustChangePassword, &cs.CreatedAt, &cs.UpdatedAt,
			&cs.PaymentCount, &total)
		if err != nil {
			return nil, fmt.Errorf("users: scan cashier: %w", err)
		}
		if total.Valid {
			f, _ := total.Float64Value()
			cs.TotalCollected = f.Float64
		}
		cashiers = append(cashiers, cs)
	}
	return cashiers, rows.Err()
}

func (r *repository) Create(ctx context.Context, user User, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, role, password_hash, is_active, must_change_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, TRUE, NOW(), NOW())
		RETURNING id`,
		user.Name, user.Email, user.Role, passwordHash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, fmt.Errorf("users: create: %w", err)
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

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), argPos)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("users: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("users: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetPassword(ctx context.Context, id int64, passwordHash []byte, mustChange bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, must_change_password = $3, updated_at = NOW() WHERE id = $1`,
		id, passwordHash, mustChange)
	if err != nil {
		return fmt.Errorf("users: set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) CountCollections(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE collected_by = $1`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("users: count collections: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

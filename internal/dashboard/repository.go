package dashboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuspay/campuspay/internal/ledger"
)

// Repository is the aggregate-query surface the dashboard needs.
type Repository interface {
	ActiveCounts(ctx context.Context) (students, courses, cashiers int, err error)
	CollectedTotals(ctx context.Context, collectedBy *int64) (total, today float64, count int, err error)
	StatusBreakdown(ctx context.Context) ([]StatusSlice, error)
	MonthlyRevenue(ctx context.Context, months int) ([]MonthRevenue, error)
	RecentPayments(ctx context.Context, collectedBy *int64, limit int) ([]RecentPayment, error)
	RecentActivities(ctx context.Context, limit int) ([]RecentActivity, error)
	TopCourses(ctx context.Context, limit int) ([]TopCourse, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ActiveCounts(ctx context.Context) (int, int, int, error) {
	var students, courses, cashiers int
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM students WHERE is_active),
		       (SELECT COUNT(*) FROM courses WHERE is_active),
		       (SELECT COUNT(*) FROM users WHERE role = 'cashier' AND is_active)`,
	).Scan(&students, &courses, &cashiers)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("dashboard: active counts: %w", err)
	}
	return students, courses, cashiers, nil
}

func (r *repository) CollectedTotals(ctx context.Context, collectedBy *int64) (float64, float64, int, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0),
		       COALESCE(SUM(amount) FILTER (WHERE payment_date >= CURRENT_DATE), 0),
		       COUNT(*)
		FROM payments`
	var args []any
	if collectedBy != nil {
		query += ` WHERE collected_by = $1`
		args = append(args, *collectedBy)
	}

	var total, today pgtype.Numeric
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total, &today, &count); err != nil {
		return 0, 0, 0, fmt.Errorf("dashboard: collected totals: %w", err)
	}
	return numericFloat(total), numericFloat(today), count, nil
}

// StatusBreakdown counts active students per derived payment status. The
// three predicates come from ledger.StatusCondition so the wedges always sum
// to the active student count.
func (r *repository) StatusBreakdown(ctx context.Context) ([]StatusSlice, error) {
	const dueExpr = "COALESCE(b.total_due, c.price, 0)"
	const paidExpr = "COALESCE(b.total_paid, pay.total, 0)"

	query := fmt.Sprintf(`
		SELECT COUNT(*) FILTER (WHERE %s),
		       COUNT(*) FILTER (WHERE %s),
		       COUNT(*) FILTER (WHERE %s)
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
		WHERE s.is_active`,
		ledger.StatusCondition(ledger.StatusUnpaid, paidExpr, dueExpr),
		ledger.StatusCondition(ledger.StatusPartial, paidExpr, dueExpr),
		ledger.StatusCondition(ledger.StatusPaid, paidExpr, dueExpr))

	var unpaid, partial, paid int
	if err := r.pool.QueryRow(ctx, query).Scan(&unpaid, &partial, &paid); err != nil {
		return nil, fmt.Errorf("dashboard: status breakdown: %w", err)
	}
	return buildSlices(unpaid, partial, paid), nil
}

func (r *repository) MonthlyRevenue(ctx context.Context, months int) ([]MonthRevenue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT TO_CHAR(m.month, 'YYYY-MM'), COALESCE(SUM(p.amount), 0)
		FROM generate_series(
			DATE_TRUNC('month', CURRENT_DATE) - ($1 - 1) * INTERVAL '1 month',
			DATE_TRUNC('month', CURRENT_DATE),
			INTERVAL '1 month') AS m(month)
		LEFT JOIN payments p ON DATE_TRUNC('month', p.payment_date) = m.month
		GROUP BY m.month
		ORDER BY m.month`, months)
	if err != nil {
		return nil, fmt.Errorf("dashboard: monthly revenue: %w", err)
	}
	defer rows.Close()

	var series []MonthRevenue
	for rows.Next() {
		var mr MonthRevenue
		var revenue pgtype.Numeric
		if err := rows.Scan(&mr.Month, &revenue); err != nil {
			return nil, fmt.Errorf("dashboard: scan revenue: %w", err)
		}
		mr.Revenue = numericFloat(revenue)
		series = append(series, mr)
	}
	return series, rows.Err()
}

func (r *repository) RecentPayments(ctx context.Context, collectedBy *int64, limit int) ([]RecentPayment, error) {
	query := `
		SELECT p.id, s.first_name || ' ' || s.last_name, s.code, p.amount, p.method,
		       u.name, p.payment_date
		FROM payments p
		JOIN students s ON s.id = p.student_id
		JOIN users u ON u.id = p.collected_by`
	args := []any{limit}
	if collectedBy != nil {
		query += ` WHERE p.collected_by = $2`
		args = append(args, *collectedBy)
	}
	query += ` ORDER BY p.payment_date DESC, p.created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dashboard: recent payments: %w", err)
	}
	defer rows.Close()

	var payments []RecentPayment
	for rows.Next() {
		var rp RecentPayment
		var amount pgtype.Numeric
		err := rows.Scan(&rp.ID, &rp.StudentName, &rp.StudentCode, &amount, &rp.Method,
			&rp.Collector, &rp.PaymentDate)
		if err != nil {
			return nil, fmt.Errorf("dashboard: scan payment: %w", err)
		}
		rp.Amount = numericFloat(amount)
		payments = append(payments, rp)
	}
	return payments, rows.Err()
}

func (r *repository) RecentActivities(ctx context.Context, limit int) ([]RecentActivity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(u.name, ''), l.role, l.action, l.created_at
		FROM activity_logs l
		LEFT JOIN users u ON u.id = l.user_id
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("dashboard: recent activities: %w", err)
	}
	defer rows.Close()

	var activities []RecentActivity
	for rows.Next() {
		var ra RecentActivity
		if err := rows.Scan(&ra.UserName, &ra.Role, &ra.Action, &ra.CreatedAt); err != nil {
			return nil, fmt.Errorf("dashboard: scan activity: %w", err)
		}
		activities = append(activities, ra)
	}
	return activities, rows.Err()
}

func (r *repository) TopCourses(ctx context.Context, limit int) ([]TopCourse, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.name, COUNT(s.id)
		FROM courses c
		LEFT JOIN students s ON s.course_id = c.id AND s.is_active
		WHERE c.is_active
		GROUP BY c.id
		ORDER BY COUNT(s.id) DESC, c.name
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("dashboard: top courses: %w", err)
	}
	defer rows.Close()

	var courses []TopCourse
	for rows.Next() {
		var tc TopCourse
		if err := rows.Scan(&tc.Name, &tc.StudentCount); err != nil {
			return nil, fmt.Errorf("dashboard: scan course: %w", err)
		}
		courses = append(courses, tc)
	}
	return courses, rows.Err()
}

func buildSlices(unpaid, partial, paid int) []StatusSlice {
	total := unpaid + partial + paid
	slice := func(status ledger.BillingStatus, count int) StatusSlice {
		s := StatusSlice{Status: status, Count: count}
		if total > 0 {
			s.Percent = float64(count) * 100 / float64(total)
		}
		return s
	}
	return []StatusSlice{
		slice(ledger.StatusUnpaid, unpaid),
		slice(ledger.StatusPartial, partial),
		slice(ledger.StatusPaid, paid),
	}
}

func numericFloat(n pgtype.Numeric) float64 {
	if !n.Valid {
		return 0
	}
	f, _ := n.Float64Value()
	return f.Float64
}

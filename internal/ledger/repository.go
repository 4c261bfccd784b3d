package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuspay/campuspay/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithTx runs fn against a transaction-scoped repository.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: tx, pool: r.pool})
	})
}

const studentRefQuery = `
	SELECT s.id, s.code, s.first_name || ' ' || s.last_name, s.is_active,
	       COALESCE(c.price, 0)
	FROM students s
	LEFT JOIN courses c ON c.id = s.course_id
	WHERE s.id = $1`

// GetStudent loads the student slice the ledger works with.
func (r *Repository) GetStudent(ctx context.Context, id int64) (*StudentRef, error) {
	return r.scanStudentRef(r.db.QueryRow(ctx, studentRefQuery, id))
}

// LockStudent loads the student and takes a row lock for the duration of the
// surrounding transaction.
func (r *Repository) LockStudent(ctx context.Context, id int64) (*StudentRef, error) {
	return r.scanStudentRef(r.db.QueryRow(ctx, studentRefQuery+" FOR UPDATE OF s", id))
}

func (r *Repository) scanStudentRef(row pgx.Row) (*StudentRef, error) {
	var ref StudentRef
	var price pgtype.Numeric
	err := row.Scan(&ref.ID, &ref.Code, &ref.Name, &ref.Active, &price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("ledger: load student: %w", err)
	}
	if price.Valid {
		f, _ := price.Float64Value()
		ref.CoursePrice = f.Float64
	}
	return &ref, nil
}

const billingColumns = `id, student_id, semester, from_year, to_year, total_due, total_paid, updated_at`

// FindBilling returns the billing record for a specific term.
func (r *Repository) FindBilling(ctx context.Context, studentID int64, term Term) (*BillingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing
		WHERE student_id = $1 AND semester = $2 AND from_year = $3 AND to_year = $4`, billingColumns)
	return r.scanBilling(r.db.QueryRow(ctx, query, studentID, term.Semester, term.FromYear, term.ToYear))
}

const latestBillingOrder = ` ORDER BY from_year DESC, semester DESC, id DESC LIMIT 1`

// LatestBilling returns the most recent billing record for a student, or
// ErrBillingNotFound when the student has never been billed.
func (r *Repository) LatestBilling(ctx context.Context, studentID int64) (*BillingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing WHERE student_id = $1`, billingColumns) + latestBillingOrder
	return r.scanBilling(r.db.QueryRow(ctx, query, studentID))
}

// BillingForUpdate loads a billing record by id under a row lock.
func (r *Repository) BillingForUpdate(ctx context.Context, id int64) (*BillingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing WHERE id = $1 FOR UPDATE`, billingColumns)
	return r.scanBilling(r.db.QueryRow(ctx, query, id))
}

// LatestBillingForUpdate loads the most recent billing record under a row lock.
func (r *Repository) LatestBillingForUpdate(ctx context.Context, studentID int64) (*BillingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing WHERE student_id = $1`, billingColumns) + latestBillingOrder + ` FOR UPDATE`
	return r.scanBilling(r.db.QueryRow(ctx, query, studentID))
}

func (r *Repository) scanBilling(row pgx.Row) (*BillingRecord, error) {
	var b BillingRecord
	var due, paid pgtype.Numeric
	err := row.Scan(&b.ID, &b.StudentID, &b.Semester, &b.FromYear, &b.ToYear, &due, &paid, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillingNotFound
		}
		return nil, fmt.Errorf("ledger: load billing: %w", err)
	}
	b.TotalDue = numericFloat(due)
	b.TotalPaid = numericFloat(paid)
	return &b, nil
}

// CreateBilling inserts the billing record for a student term.
func (r *Repository) CreateBilling(ctx context.Context, input OpenBillingInput) (*BillingRecord, error) {
	query := `
		INSERT INTO billing (student_id, semester, from_year, to_year, total_due, total_paid, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, NOW())
		RETURNING id, updated_at`
	b := BillingRecord{
		StudentID: input.StudentID,
		Semester:  input.Term.Semester,
		FromYear:  input.Term.FromYear,
		ToYear:    input.Term.ToYear,
		TotalDue:  input.TotalDue,
	}
	err := r.db.QueryRow(ctx, query,
		input.StudentID, input.Term.Semester, input.Term.FromYear, input.Term.ToYear, input.TotalDue,
	).Scan(&b.ID, &b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateBilling
		}
		return nil, fmt.Errorf("ledger: create billing: %w", err)
	}
	return &b, nil
}

// AddBillingPayment increments total_paid. Balance and status recompute from
// the new value; nothing else on the row changes.
func (r *Repository) AddBillingPayment(ctx context.Context, billingID int64, amount float64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE billing SET total_paid = total_paid + $2, updated_at = NOW() WHERE id = $1`,
		billingID, amount)
	if err != nil {
		return fmt.Errorf("ledger: add billing payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBillingNotFound
	}
	return nil
}

// SumPayments totals a student's payments, optionally scoped to one billing
// record.
func (r *Repository) SumPayments(ctx context.Context, studentID int64, billingID *int64) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE student_id = $1`
	args := []any{studentID}
	if billingID != nil {
		query += ` AND billing_id = $2`
		args = append(args, *billingID)
	}
	var total pgtype.Numeric
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("ledger: sum payments: %w", err)
	}
	return numericFloat(total), nil
}

// InsertPayment writes the immutable payment row.
func (r *Repository) InsertPayment(ctx context.Context, input CollectPaymentInput) (*Payment, error) {
	query := `
		INSERT INTO payments (receipt_no, student_id, billing_id, amount, method,
			reference_no, payment_date, collected_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at`

	p := Payment{
		ReceiptNo:   uuid.NewString(),
		StudentID:   input.StudentID,
		BillingID:   input.BillingID,
		Amount:      input.Amount,
		Method:      input.Method,
		ReferenceNo: input.ReferenceNo,
		PaymentDate: input.PaymentDate,
		CollectedBy: input.CollectedBy,
		Notes:       input.Notes,
	}
	var billingID pgtype.Int8
	if input.BillingID != nil {
		billingID = pgtype.Int8{Int64: *input.BillingID, Valid: true}
	}
	err := r.db.QueryRow(ctx, query,
		p.ReceiptNo, p.StudentID, billingID, p.Amount, p.Method,
		p.ReferenceNo, p.PaymentDate, p.CollectedBy, p.Notes,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ledger: insert payment: %w", err)
	}
	return &p, nil
}

// ListPayments returns a student's payments with collector names, ordered by
// payment date then creation time, newest first.
func (r *Repository) ListPayments(ctx context.Context, studentID int64) ([]PaymentEntry, error) {
	query := `
		SELECT p.id, p.receipt_no, p.student_id, p.billing_id, p.amount, p.method,
		       p.reference_no, p.payment_date, p.collected_by, p.notes, p.created_at,
		       u.name
		FROM payments p
		JOIN users u ON u.id = p.collected_by
		WHERE p.student_id = $1
		ORDER BY p.payment_date DESC, p.created_at DESC`

	rows, err := r.db.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list payments: %w", err)
	}
	defer rows.Close()

	var entries []PaymentEntry
	for rows.Next() {
		var e PaymentEntry
		var billingID pgtype.Int8
		var amount pgtype.Numeric
		var reference, notes pgtype.Text
		err := rows.Scan(&e.ID, &e.ReceiptNo, &e.StudentID, &billingID, &amount, &e.Method,
			&reference, &e.PaymentDate, &e.CollectedBy, &notes, &e.CreatedAt, &e.CollectorName)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan payment: %w", err)
		}
		if billingID.Valid {
			id := billingID.Int64
			e.BillingID = &id
		}
		e.Amount = numericFloat(amount)
		e.ReferenceNo = reference.String
		e.Notes = notes.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListBalances returns one derived balance row per matching active student.
// Due prefers the latest billing record and falls back to the course price;
// paid prefers the billing record and falls back to the lifetime payment sum.
func (r *Repository) ListBalances(ctx context.Context, req ListBalancesRequest) ([]StudentBalance, int, error) {
	const dueExpr = "COALESCE(b.total_due, c.price, 0)"
	const paidExpr = "COALESCE(b.total_paid, pay.total, 0)"

	conditions := []string{"s.is_active = TRUE"}
	var args []any
	argPos := 1

	if req.CourseID != nil {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", argPos))
		args = append(args, *req.CourseID)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(s.code ILIKE $%d OR s.first_name || ' ' || s.last_name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}
	if req.Status != "" {
		conditions = append(conditions, StatusCondition(req.Status, paidExpr, dueExpr))
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
		WHERE %s`, strings.Join(conditions, " AND "))

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) "+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ledger: count balances: %w", err)
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
		SELECT s.id, s.code, s.first_name || ' ' || s.last_name, COALESCE(c.name, ''),
		       %s, %s
		%s
		ORDER BY s.last_name, s.first_name
		LIMIT $%d OFFSET $%d`, dueExpr, paidExpr, base, argPos, argPos+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: list balances: %w", err)
	}
	defer rows.Close()

	var balances []StudentBalance
	for rows.Next() {
		var sb StudentBalance
		var due, paid pgtype.Numeric
		if err := rows.Scan(&sb.StudentID, &sb.StudentCode, &sb.StudentName, &sb.CourseName, &due, &paid); err != nil {
			return nil, 0, fmt.Errorf("ledger: scan balance: %w", err)
		}
		sb.BalanceView = NewBalanceView(numericFloat(due), numericFloat(paid))
		balances = append(balances, sb)
	}
	return balances, total, rows.Err()
}

func numericFloat(n pgtype.Numeric) float64 {
	if !n.Valid {
		return 0
	}
	f, _ := n.Float64Value()
	return f.Float64
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

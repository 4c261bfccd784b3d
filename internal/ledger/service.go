package ledger

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// RepositoryPort defines the data access the ledger needs. WithTx yields a
// transaction-scoped port; every method called inside the callback runs in
// that transaction.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error

	GetStudent(ctx context.Context, id int64) (*StudentRef, error)
	// LockStudent acquires a row lock on the student for the duration of the
	// surrounding transaction. It is the serialization point for concurrent
	// collections against the same student.
	LockStudent(ctx context.Context, id int64) (*StudentRef, error)

	FindBilling(ctx context.Context, studentID int64, term Term) (*BillingRecord, error)
	LatestBilling(ctx context.Context, studentID int64) (*BillingRecord, error)
	BillingForUpdate(ctx context.Context, id int64) (*BillingRecord, error)
	LatestBillingForUpdate(ctx context.Context, studentID int64) (*BillingRecord, error)
	CreateBilling(ctx context.Context, input OpenBillingInput) (*BillingRecord, error)
	AddBillingPayment(ctx context.Context, billingID int64, amount float64) error

	SumPayments(ctx context.Context, studentID int64, billingID *int64) (float64, error)
	InsertPayment(ctx context.Context, input CollectPaymentInput) (*Payment, error)
	ListPayments(ctx context.Context, studentID int64) ([]PaymentEntry, error)
	ListBalances(ctx context.Context, req ListBalancesRequest) ([]StudentBalance, int, error)
}

// ActivityRecorder receives one event per successful collection. Failures to
// record must never affect the payment itself.
type ActivityRecorder interface {
	Record(ctx context.Context, userID int64, role, action string) error
}

// CollectPaymentInput describes a payment-collection request.
type CollectPaymentInput struct {
	StudentID     int64
	BillingID     *int64
	Amount        float64
	Method        PaymentMethod
	ReferenceNo   string
	PaymentDate   time.Time
	CollectedBy   int64
	CollectorRole string
	Notes         string
}

// OpenBillingInput creates a billing record for a student term.
type OpenBillingInput struct {
	StudentID int64
	Term      Term
	TotalDue  float64
}

// ListBalancesRequest filters the balance listing.
type ListBalancesRequest struct {
	CourseID *int64
	Status   BillingStatus
	Search   string
	Page     int
	PerPage  int
}

// Service is the ledger engine.
type Service struct {
	repo     RepositoryPort
	activity ActivityRecorder
	logger   *slog.Logger
	printer  *message.Printer
}

// NewService builds the ledger engine.
func NewService(repo RepositoryPort, activity ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		activity: activity,
		logger:   logger,
		printer:  message.NewPrinter(language.English),
	}
}

// GetBalance returns the derived balance view for a student, optionally
// scoped to a term. Purely derived, side-effect free.
func (s *Service) GetBalance(ctx context.Context, studentID int64, term *Term) (*BalanceView, error) {
	student, err := s.repo.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	due, paid, err := s.dueAndPaid(ctx, s.repo, student, term)
	if err != nil {
		return nil, err
	}
	view := NewBalanceView(due, paid)
	return &view, nil
}

// CollectPayment records a payment against a student's balance. The balance
// check, the payment insert and the billing update run in one transaction
// under a row lock on the student, so concurrent collectors against the same
// student are serialized: either the payment and the balance update both
// commit, or neither does.
func (s *Service) CollectPayment(ctx context.Context, input CollectPaymentInput) (*Payment, *BalanceView, error) {
	if input.Amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if !input.Method.Valid() {
		return nil, nil, ErrInvalidMethod
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = time.Now()
	}

	var (
		payment *Payment
		view    BalanceView
		student *StudentRef
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx RepositoryPort) error {
		var err error
		student, err = tx.LockStudent(ctx, input.StudentID)
		if err != nil {
			return err
		}
		if !student.Active {
			return ErrStudentInactive
		}

		var billing *BillingRecord
		if input.BillingID != nil {
			billing, err = tx.BillingForUpdate(ctx, *input.BillingID)
			if err != nil {
				return err
			}
			if billing.StudentID != input.StudentID {
				return ErrBillingMismatch
			}
		} else {
			billing, err = tx.LatestBillingForUpdate(ctx, input.StudentID)
			if err != nil && err != ErrBillingNotFound {
				return err
			}
		}

		var due, paid float64
		if billing != nil {
			due, paid = billing.TotalDue, billing.TotalPaid
		} else {
			due = student.CoursePrice
			paid, err = tx.SumPayments(ctx, input.StudentID, nil)
			if err != nil {
				return err
			}
		}

		// Refuse to pay a settled or zero balance, and refuse any overshoot
		// rather than clamping or carrying credit.
		if due-paid <= 0 {
			return ErrOverpayment
		}
		if paid+input.Amount > due {
			return ErrOverpayment
		}

		if billing != nil {
			id := billing.ID
			input.BillingID = &id
		}
		payment, err = tx.InsertPayment(ctx, input)
		if err != nil {
			return err
		}
		if billing != nil {
			if err := tx.AddBillingPayment(ctx, billing.ID, input.Amount); err != nil {
				return err
			}
		}
		view = NewBalanceView(due, paid+input.Amount)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.recordCollection(ctx, input, student)
	return payment, &view, nil
}

// PaymentHistory returns the student's payments ordered by payment date then
// creation time, newest first. No side effects.
func (s *Service) PaymentHistory(ctx context.Context, studentID int64) ([]PaymentEntry, error) {
	if _, err := s.repo.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, studentID)
}

// OpenBilling creates the billing record for a student term.
func (s *Service) OpenBilling(ctx context.Context, input OpenBillingInput) (*BillingRecord, error) {
	if !input.Term.Semester.Valid() || input.Term.FromYear <= 0 || input.Term.ToYear < input.Term.FromYear {
		return nil, ErrInvalidTerm
	}
	if input.TotalDue < 0 {
		return nil, ErrInvalidDue
	}
	student, err := s.repo.GetStudent(ctx, input.StudentID)
	if err != nil {
		return nil, err
	}
	if !student.Active {
		return nil, ErrStudentInactive
	}
	return s.repo.CreateBilling(ctx, input)
}

// ListBalances returns one balance row per matching student.
func (s *Service) ListBalances(ctx context.Context, req ListBalancesRequest) ([]StudentBalance, int, error) {
	return s.repo.ListBalances(ctx, req)
}

func (s *Service) dueAndPaid(ctx context.Context, repo RepositoryPort, student *StudentRef, term *Term) (float64, float64, error) {
	var billing *BillingRecord
	var err error
	if term != nil {
		billing, err = repo.FindBilling(ctx, student.ID, *term)
	} else {
		billing, err = repo.LatestBilling(ctx, student.ID)
	}
	if err != nil && err != ErrBillingNotFound {
		return 0, 0, err
	}
	if billing != nil {
		return billing.TotalDue, billing.TotalPaid, nil
	}

	paid, err := repo.SumPayments(ctx, student.ID, nil)
	if err != nil {
		return 0, 0, err
	}
	return student.CoursePrice, paid, nil
}

func (s *Service) recordCollection(ctx context.Context, input CollectPaymentInput, student *StudentRef) {
	if s.activity == nil || student == nil {
		return
	}
	amount := number.Decimal(input.Amount, number.MinFractionDigits(2), number.MaxFractionDigits(2))
	action := s.printer.Sprintf("Collected payment of ₱%v from %s (%s)", amount, student.Name, student.Code)
	role := input.CollectorRole
	if role == "" {
		role = "cashier"
	}
	if err := s.activity.Record(ctx, input.CollectedBy, role, action); err != nil && s.logger != nil {
		s.logger.Warn("record collection activity", slog.Any("error", err))
	}
}

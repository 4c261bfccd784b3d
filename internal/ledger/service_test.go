package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu sync.Mutex

	students map[int64]StudentRef
	billing  map[int64]BillingRecord
	payments []Payment

	nextBillingID int64
	nextPaymentID int64

	failInsert error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		students:      make(map[int64]StudentRef),
		billing:       make(map[int64]BillingRecord),
		nextBillingID: 1,
		nextPaymentID: 1,
	}
}

func (m *memoryRepo) addStudent(ref StudentRef) {
	m.students[ref.ID] = ref
}

// WithTx serializes callers on the repo mutex, mirroring the row lock taken in
// production, and rolls the state back when fn fails.
func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshotBilling := make(map[int64]BillingRecord, len(m.billing))
	for id, b := range m.billing {
		snapshotBilling[id] = b
	}
	snapshotPayments := make([]Payment, len(m.payments))
	copy(snapshotPayments, m.payments)

	if err := fn(ctx, (*memoryTx)(m)); err != nil {
		m.billing = snapshotBilling
		m.payments = snapshotPayments
		return err
	}
	return nil
}

// memoryTx is the tx-scoped view; it shares storage but skips re-locking.
type memoryTx memoryRepo

func (t *memoryTx) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return fn(ctx, t)
}

func (t *memoryTx) GetStudent(ctx context.Context, id int64) (*StudentRef, error) {
	return (*memoryRepo)(t).getStudent(id)
}

func (t *memoryTx) LockStudent(ctx context.Context, id int64) (*StudentRef, error) {
	return (*memoryRepo)(t).getStudent(id)
}

func (m *memoryRepo) getStudent(id int64) (*StudentRef, error) {
	ref, ok := m.students[id]
	if !ok {
		return nil, ErrStudentNotFound
	}
	return &ref, nil
}

func (m *memoryRepo) GetStudent(ctx context.Context, id int64) (*StudentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getStudent(id)
}

func (m *memoryRepo) LockStudent(ctx context.Context, id int64) (*StudentRef, error) {
	return m.GetStudent(ctx, id)
}

func (t *memoryTx) FindBilling(ctx context.Context, studentID int64, term Term) (*BillingRecord, error) {
	return (*memoryRepo)(t).findBilling(studentID, term)
}

func (m *memoryRepo) FindBilling(ctx context.Context, studentID int64, term Term) (*BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findBilling(studentID, term)
}

func (m *memoryRepo) findBilling(studentID int64, term Term) (*BillingRecord, error) {
	for _, b := range m.billing {
		if b.StudentID == studentID && b.Semester == term.Semester &&
			b.FromYear == term.FromYear && b.ToYear == term.ToYear {
			rec := b
			return &rec, nil
		}
	}
	return nil, ErrBillingNotFound
}

func (t *memoryTx) LatestBilling(ctx context.Context, studentID int64) (*BillingRecord, error) {
	return (*memoryRepo)(t).latestBilling(studentID)
}

func (m *memoryRepo) LatestBilling(ctx context.Context, studentID int64) (*BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestBilling(studentID)
}

func (m *memoryRepo) latestBilling(studentID int64) (*BillingRecord, error) {
	var latest *BillingRecord
	for _, b := range m.billing {
		if b.StudentID != studentID {
			continue
		}
		rec := b
		if latest == nil || rec.FromYear > latest.FromYear ||
			(rec.FromYear == latest.FromYear && rec.ID > latest.ID) {
			latest = &rec
		}
	}
	if latest == nil {
		return nil, ErrBillingNotFound
	}
	return latest, nil
}

func (t *memoryTx) BillingForUpdate(ctx context.Context, id int64) (*BillingRecord, error) {
	b, ok := t.billing[id]
	if !ok {
		return nil, ErrBillingNotFound
	}
	rec := b
	return &rec, nil
}

func (m *memoryRepo) BillingForUpdate(ctx context.Context, id int64) (*BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memoryTx)(m).BillingForUpdate(ctx, id)
}

func (t *memoryTx) LatestBillingForUpdate(ctx context.Context, studentID int64) (*BillingRecord, error) {
	return (*memoryRepo)(t).latestBilling(studentID)
}

func (m *memoryRepo) LatestBillingForUpdate(ctx context.Context, studentID int64) (*BillingRecord, error) {
	return m.LatestBilling(ctx, studentID)
}

func (t *memoryTx) CreateBilling(ctx context.Context, input OpenBillingInput) (*BillingRecord, error) {
	return (*memoryRepo)(t).createBilling(input)
}

func (m *memoryRepo) CreateBilling(ctx context.Context, input OpenBillingInput) (*BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createBilling(input)
}

func (m *memoryRepo) createBilling(input OpenBillingInput) (*BillingRecord, error) {
	if _, err := m.findBilling(input.StudentID, input.Term); err == nil {
		return nil, ErrDuplicateBilling
	}
	b := BillingRecord{
		ID:        m.nextBillingID,
		StudentID: input.StudentID,
		Semester:  input.Term.Semester,
		FromYear:  input.Term.FromYear,
		ToYear:    input.Term.ToYear,
		TotalDue:  input.TotalDue,
		UpdatedAt: time.Now(),
	}
	m.nextBillingID++
	m.billing[b.ID] = b
	return &b, nil
}

func (t *memoryTx) AddBillingPayment(ctx context.Context, billingID int64, amount float64) error {
	b, ok := t.billing[billingID]
	if !ok {
		return ErrBillingNotFound
	}
	b.TotalPaid += amount
	b.UpdatedAt = time.Now()
	t.billing[billingID] = b
	return nil
}

func (m *memoryRepo) AddBillingPayment(ctx context.Context, billingID int64, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memoryTx)(m).AddBillingPayment(ctx, billingID, amount)
}

func (t *memoryTx) SumPayments(ctx context.Context, studentID int64, billingID *int64) (float64, error) {
	return (*memoryRepo)(t).sumPayments(studentID, billingID), nil
}

func (m *memoryRepo) SumPayments(ctx context.Context, studentID int64, billingID *int64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumPayments(studentID, billingID), nil
}

func (m *memoryRepo) sumPayments(studentID int64, billingID *int64) float64 {
	var total float64
	for _, p := range m.payments {
		if p.StudentID != studentID {
			continue
		}
		if billingID != nil && (p.BillingID == nil || *p.BillingID != *billingID) {
			continue
		}
		total += p.Amount
	}
	return total
}

func (t *memoryTx) InsertPayment(ctx context.Context, input CollectPaymentInput) (*Payment, error) {
	if t.failInsert != nil {
		return nil, t.failInsert
	}
	p := Payment{
		ID:          t.nextPaymentID,
		ReceiptNo:   fmt.Sprintf("RCPT-%d", t.nextPaymentID),
		StudentID:   input.StudentID,
		BillingID:   input.BillingID,
		Amount:      input.Amount,
		Method:      input.Method,
		ReferenceNo: input.ReferenceNo,
		PaymentDate: input.PaymentDate,
		CollectedBy: input.CollectedBy,
		Notes:       input.Notes,
		CreatedAt:   time.Now(),
	}
	t.nextPaymentID++
	t.payments = append(t.payments, p)
	return &p, nil
}

func (m *memoryRepo) InsertPayment(ctx context.Context, input CollectPaymentInput) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memoryTx)(m).InsertPayment(ctx, input)
}

func (t *memoryTx) ListPayments(ctx context.Context, studentID int64) ([]PaymentEntry, error) {
	return (*memoryRepo)(t).listPayments(studentID), nil
}

func (m *memoryRepo) ListPayments(ctx context.Context, studentID int64) ([]PaymentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPayments(studentID), nil
}

func (m *memoryRepo) listPayments(studentID int64) []PaymentEntry {
	var entries []PaymentEntry
	for i := len(m.payments) - 1; i >= 0; i-- {
		if m.payments[i].StudentID == studentID {
			entries = append(entries, PaymentEntry{Payment: m.payments[i], CollectorName: "Test Cashier"})
		}
	}
	return entries
}

func (t *memoryTx) ListBalances(ctx context.Context, req ListBalancesRequest) ([]StudentBalance, int, error) {
	return nil, 0, nil
}

func (m *memoryRepo) ListBalances(ctx context.Context, req ListBalancesRequest) ([]StudentBalance, int, error) {
	return nil, 0, nil
}

type memoryActivity struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (a *memoryActivity) Record(ctx context.Context, userID int64, role, action string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.actions = append(a.actions, action)
	return nil
}

func newTestService(repo *memoryRepo, activity *memoryActivity) *Service {
	var rec ActivityRecorder
	if activity != nil {
		rec = activity
	}
	return NewService(repo, rec, slog.New(slog.DiscardHandler))
}

func TestStatusDerivation(t *testing.T) {
	cases := []struct {
		due, paid float64
		want      BillingStatus
	}{
		{5000, 0, StatusUnpaid},
		{5000, 2000, StatusPartial},
		{5000, 5000, StatusPaid},
		{5000, 6000, StatusPaid},
		{0, 0, StatusUnpaid},
		{0, 100, StatusPaid},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Status(tc.due, tc.paid),
			"due=%v paid=%v", tc.due, tc.paid)
	}
}

func TestGetBalanceFallsBackToCoursePrice(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	svc := newTestService(repo, nil)

	view, err := svc.GetBalance(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Equal(t, 5000.0, view.TotalDue)
	require.Equal(t, 0.0, view.TotalPaid)
	require.Equal(t, StatusUnpaid, view.Status)
}

func TestGetBalanceRepeatedReadsIdentical(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.OpenBilling(ctx, OpenBillingInput{
		StudentID: 1,
		Term:      Term{Semester: SemesterFirst, FromYear: 2026, ToYear: 2027},
		TotalDue:  5000,
	})
	require.NoError(t, err)
	_, _, err = svc.CollectPayment(ctx, CollectPaymentInput{
		StudentID: 1, Amount: 2000, Method: MethodCash, CollectedBy: 7,
	})
	require.NoError(t, err)

	first, err := svc.GetBalance(ctx, 1, nil)
	require.NoError(t, err)
	second, err := svc.GetBalance(ctx, 1, nil)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 3000.0, first.Balance)
	require.Equal(t, StatusPartial, first.Status)
}

func TestGetBalanceUnknownStudent(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	_, err := svc.GetBalance(context.Background(), 42, nil)
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestCollectPaymentLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	activity := &memoryActivity{}
	svc := newTestService(repo, activity)
	ctx := context.Background()

	billing, err := svc.OpenBilling(ctx, OpenBillingInput{
		StudentID: 1,
		Term:      Term{Semester: SemesterFirst, FromYear: 2026, ToYear: 2027},
		TotalDue:  5000,
	})
	require.NoError(t, err)

	payment, view, err := svc.CollectPayment(ctx, CollectPaymentInput{
		StudentID:   1,
		Amount:      2000,
		Method:      MethodCash,
		CollectedBy: 7,
	})
	require.NoError(t, err)
	require.Equal(t, 2000.0, payment.Amount)
	require.NotNil(t, payment.BillingID)
	require.Equal(t, billing.ID, *payment.BillingID)
	require.Equal(t, 3000.0, view.Balance)
	require.Equal(t, StatusPartial, view.Status)

	_, view, err = svc.CollectPayment(ctx, CollectPaymentInput{
		StudentID:   1,
		Amount:      3000,
		Method:      MethodEWallet,
		CollectedBy: 7,
	})
	require.NoError(t, err)
	require.Equal(t, 0.0, view.Balance)
	require.Equal(t, StatusPaid, view.Status)

	require.Len(t, activity.actions, 2)
	require.Contains(t, activity.actions[0], "Ana Reyes")
	require.Contains(t, activity.actions[0], "2,000.00")
}

func TestCollectPaymentRejectsOverpayment(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, _, err := svc.CollectPayment(ctx, CollectPaymentInput{
		StudentID: 1, Amount: 6000, Method: MethodCash, CollectedBy: 7,
	})
	require.ErrorIs(t, err, ErrOverpayment)

	_, _, err = svc.CollectPayment(ctx, CollectPaymentInput{
		StudentID: 1, Amount: 5000, Method: MethodCash, CollectedBy: 7,
	})
	require.NoError(t, err)

	// Balance is settled, even one peso more is refused.
	_, _, err = svc.CollectPayment(ctx, CollectPaymentInput{
		StudentID: 1, Amount: 1, Method: MethodCash, CollectedBy: 7,
	})
	require.ErrorIs(t, err, ErrOverpayment)
}

func TestCollectPaymentValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	repo.addStudent(StudentRef{ID: 2, Code: "STU-2026-00002", Name: "Ben Cruz", Active: false, CoursePrice: 5000})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, _, err := svc.CollectPayment(ctx, CollectPaymentInput{StudentID: 1, Amount: 0, Method: MethodCash})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = svc.CollectPayment(ctx, CollectPaymentInput{StudentID: 1, Amount: -50, Method: MethodCash})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = svc.CollectPayment(ctx, CollectPaymentInput{StudentID: 1, Amount: 100, Method: "check"})
	require.ErrorIs(t, err, ErrInvalidMethod)

	_, _, err = svc.CollectPayment(ctx, CollectPaymentInput{StudentID: 2, Amount: 100, Method: MethodCash})
	require.ErrorIs(t, err, ErrStudentInactive)

	_, _, err = svc.CollectPayment(ctx, CollectPaymentInput{StudentID: 99, Amount: 100, Method: MethodCash})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestCollectPaymentBillingMismatch(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	repo.addStudent(StudentRef{ID: 2, Code: "STU-2026-00002", Name: "Ben Cruz", Active: true, CoursePrice: 5000})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	billing, err := svc.OpenBilling(ctx, OpenBillingInput{
		StudentID: 2,
		Term:      Term{Semester: SemesterFirst, FromYear: 2026, ToYear: 2027},
		TotalDue:  5000,
	})
	require.NoError(t, err)

	_, _, err = svc.CollectPayment(ctx, CollectPaymentInput{
		StudentID: 1, BillingID: &billing.ID, Amount: 100, Method: MethodCash,
	})
	require.ErrorIs(t, err, ErrBillingMismatch)
}

func TestCollectPaymentAtomicOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	billing, err := svc.OpenBilling(ctx, OpenBillingInput{
		StudentID: 1,
		Term:      Term{Semester: SemesterFirst, FromYear: 2026, ToYear: 2027},
		TotalDue:  5000,
	})
	require.NoError(t, err)

	repo.failInsert = errors.New("connection reset")
	_, _, err = svc.CollectPayment(ctx, CollectPaymentInput{
		StudentID: 1, Amount: 1000, Method: MethodCash, CollectedBy: 7,
	})
	require.Error(t, err)

	// Nothing committed: no payment row, billing untouched.
	repo.failInsert = nil
	view, err := svc.GetBalance(ctx, 1, nil)
	require.NoError(t, err)
	require.Equal(t, 0.0, view.TotalPaid)
	require.Equal(t, billing.TotalDue, view.TotalDue)
	history, err := svc.PaymentHistory(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestConcurrentCollectorsOneWins(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 100})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.OpenBilling(ctx, OpenBillingInput{
		StudentID: 1,
		Term:      Term{Semester: SemesterFirst, FromYear: 2026, ToYear: 2027},
		TotalDue:  100,
	})
	require.NoError(t, err)

	// Two cashiers collect 60 against a balance of 100 at the same time.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(collector int64) {
			defer wg.Done()
			_, _, err := svc.CollectPayment(ctx, CollectPaymentInput{
				StudentID: 1, Amount: 60, Method: MethodCash, CollectedBy: collector,
			})
			errs <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrOverpayment)
			rejected++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)

	view, err := svc.GetBalance(ctx, 1, nil)
	require.NoError(t, err)
	require.Equal(t, 60.0, view.TotalPaid)
}

func TestPaymentHistoryNewestFirst(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	for _, amount := range []float64{1000, 2000} {
		_, _, err := svc.CollectPayment(ctx, CollectPaymentInput{
			StudentID: 1, Amount: amount, Method: MethodCash, CollectedBy: 7,
		})
		require.NoError(t, err)
	}

	history, err := svc.PaymentHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 2000.0, history[0].Amount)
	require.Equal(t, 1000.0, history[1].Amount)
}

func TestOpenBillingRejectsDuplicateTerm(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	term := Term{Semester: SemesterFirst, FromYear: 2026, ToYear: 2027}
	_, err := svc.OpenBilling(ctx, OpenBillingInput{StudentID: 1, Term: term, TotalDue: 5000})
	require.NoError(t, err)

	_, err = svc.OpenBilling(ctx, OpenBillingInput{StudentID: 1, Term: term, TotalDue: 5000})
	require.ErrorIs(t, err, ErrDuplicateBilling)
}

func TestOpenBillingValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.OpenBilling(ctx, OpenBillingInput{
		StudentID: 1,
		Term:      Term{Semester: "3rd", FromYear: 2026, ToYear: 2027},
		TotalDue:  5000,
	})
	require.ErrorIs(t, err, ErrInvalidTerm)

	_, err = svc.OpenBilling(ctx, OpenBillingInput{
		StudentID: 1,
		Term:      Term{Semester: SemesterFirst, FromYear: 2027, ToYear: 2026},
		TotalDue:  5000,
	})
	require.ErrorIs(t, err, ErrInvalidTerm)

	_, err = svc.OpenBilling(ctx, OpenBillingInput{
		StudentID: 1,
		Term:      Term{Semester: SemesterFirst, FromYear: 2026, ToYear: 2027},
		TotalDue:  -1,
	})
	require.ErrorIs(t, err, ErrInvalidDue)
}

func TestActivityFailureDoesNotFailPayment(t *testing.T) {
	repo := newMemoryRepo()
	repo.addStudent(StudentRef{ID: 1, Code: "STU-2026-00001", Name: "Ana Reyes", Active: true, CoursePrice: 5000})
	activity := &memoryActivity{err: errors.New("log table unavailable")}
	svc := newTestService(repo, activity)

	_, view, err := svc.CollectPayment(context.Background(), CollectPaymentInput{
		StudentID: 1, Amount: 1000, Method: MethodCash, CollectedBy: 7,
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, view.TotalPaid)
}

// Package ledger maintains the authoritative relationship between what a
// student owes, what has been paid, and the derived payment status. Every
// payment enters the system through this package.
package ledger

import (
	"fmt"
	"time"
)

// BillingStatus is the derived payment status of a billing record.
type BillingStatus string

const (
	StatusUnpaid  BillingStatus = "unpaid"
	StatusPartial BillingStatus = "partial"
	StatusPaid    BillingStatus = "paid"
)

// Status derives the payment status from amounts. This is the single
// implementation of the rule; list views, dashboards and exports must call it
// instead of re-deriving inline. A record with no payments reads unpaid even
// when nothing is due.
func Status(totalDue, totalPaid float64) BillingStatus {
	switch {
	case totalPaid == 0:
		return StatusUnpaid
	case totalPaid >= totalDue:
		return StatusPaid
	default:
		return StatusPartial
	}
}

// StatusCondition renders Status as a SQL predicate over the given paid and
// due expressions, for listings that filter by status in the database. It
// must stay in lockstep with Status above.
func StatusCondition(s BillingStatus, paidExpr, dueExpr string) string {
	switch s {
	case StatusUnpaid:
		return fmt.Sprintf("%s = 0", paidExpr)
	case StatusPaid:
		return fmt.Sprintf("%s > 0 AND %s >= %s", paidExpr, paidExpr, dueExpr)
	case StatusPartial:
		return fmt.Sprintf("%s > 0 AND %s < %s", paidExpr, paidExpr, dueExpr)
	default:
		return "TRUE"
	}
}

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodEWallet      PaymentMethod = "ewallet"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether the method is one of the accepted channels.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodEWallet, MethodBankTransfer:
		return true
	}
	return false
}

// Semester identifies the half of a school year a billing record covers.
type Semester string

const (
	SemesterFirst  Semester = "1st"
	SemesterSecond Semester = "2nd"
)

// Valid reports whether the semester value is recognised.
func (s Semester) Valid() bool {
	return s == SemesterFirst || s == SemesterSecond
}

// Term selects a billing period.
type Term struct {
	Semester Semester `json:"semester"`
	FromYear int      `json:"from_year"`
	ToYear   int      `json:"to_year"`
}

// BillingRecord is the authoritative due/paid snapshot for a student term.
// Balance and status are always derived from TotalDue and TotalPaid; they are
// never stored or mutated independently.
type BillingRecord struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	Semester  Semester  `json:"semester"`
	FromYear  int       `json:"from_year"`
	ToYear    int       `json:"to_year"`
	TotalDue  float64   `json:"total_due"`
	TotalPaid float64   `json:"total_paid"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Balance returns the outstanding amount.
func (b BillingRecord) Balance() float64 {
	return b.TotalDue - b.TotalPaid
}

// Status returns the derived payment status.
func (b BillingRecord) Status() BillingStatus {
	return Status(b.TotalDue, b.TotalPaid)
}

// Payment is an immutable transaction record. Once created it is never
// modified or deleted.
type Payment struct {
	ID          int64         `json:"id"`
	ReceiptNo   string        `json:"receipt_no"`
	StudentID   int64         `json:"student_id"`
	BillingID   *int64        `json:"billing_id,omitempty"`
	Amount      float64       `json:"amount"`
	Method      PaymentMethod `json:"method"`
	ReferenceNo string        `json:"reference_no,omitempty"`
	PaymentDate time.Time     `json:"payment_date"`
	CollectedBy int64         `json:"collected_by"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// PaymentEntry is a payment joined with collector details for history views.
type PaymentEntry struct {
	Payment
	CollectorName string `json:"collector_name"`
}

// BalanceView is the derived snapshot returned by balance reads.
type BalanceView struct {
	TotalDue  float64       `json:"total_due"`
	TotalPaid float64       `json:"total_paid"`
	Balance   float64       `json:"balance"`
	Status    BillingStatus `json:"status"`
}

// NewBalanceView derives a balance view from amounts.
func NewBalanceView(totalDue, totalPaid float64) BalanceView {
	return BalanceView{
		TotalDue:  totalDue,
		TotalPaid: totalPaid,
		Balance:   totalDue - totalPaid,
		Status:    Status(totalDue, totalPaid),
	}
}

// StudentBalance is one row of a balance listing: student identity plus the
// derived balance view.
type StudentBalance struct {
	StudentID   int64  `json:"student_id"`
	StudentCode string `json:"student_code"`
	StudentName string `json:"student_name"`
	CourseName  string `json:"course_name,omitempty"`
	BalanceView
}

// StudentRef is the slice of a student the ledger needs when collecting a
// payment: identity for audit messages, the active flag, and the course price
// used as the due fallback when no billing record exists.
type StudentRef struct {
	ID          int64
	Code        string
	Name        string
	Active      bool
	CoursePrice float64
}

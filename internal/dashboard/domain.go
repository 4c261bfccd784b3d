// Package dashboard aggregates portal-wide figures for the admin and cashier
// landing pages. Results are cached in redis and rebuilt behind singleflight.
package dashboard

import (
	"time"

	"github.com/campuspay/campuspay/internal/ledger"
)

// StatusSlice is one wedge of the payment status breakdown.
type StatusSlice struct {
	Status  ledger.BillingStatus `json:"status"`
	Count   int                  `json:"count"`
	Percent float64              `json:"percent"`
}

// MonthRevenue is one point of the collected-per-month series.
type MonthRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

// RecentPayment is a payment row trimmed for dashboard display.
type RecentPayment struct {
	ID          int64                `json:"id"`
	StudentName string               `json:"student_name"`
	StudentCode string               `json:"student_code"`
	Amount      float64              `json:"amount"`
	Method      ledger.PaymentMethod `json:"method"`
	Collector   string               `json:"collector"`
	PaymentDate time.Time            `json:"payment_date"`
}

// RecentActivity is a trail entry trimmed for dashboard display.
type RecentActivity struct {
	UserName  string    `json:"user_name"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// TopCourse is a course ranked by active enrollment.
type TopCourse struct {
	Name         string `json:"name"`
	StudentCount int    `json:"student_count"`
}

// AdminDashboard is the full admin landing page payload.
type AdminDashboard struct {
	ActiveStudents   int              `json:"active_students"`
	ActiveCourses    int              `json:"active_courses"`
	ActiveCashiers   int              `json:"active_cashiers"`
	TotalCollected   float64          `json:"total_collected"`
	CollectedToday   float64          `json:"collected_today"`
	StatusBreakdown  []StatusSlice    `json:"status_breakdown"`
	MonthlyRevenue   []MonthRevenue   `json:"monthly_revenue"`
	RecentPayments   []RecentPayment  `json:"recent_payments"`
	RecentActivities []RecentActivity `json:"recent_activities"`
	TopCourses       []TopCourse      `json:"top_courses"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// CashierDashboard is the cashier landing page payload, scoped to one
// collector.
type CashierDashboard struct {
	StatusBreakdown []StatusSlice   `json:"status_breakdown"`
	CollectedToday  float64         `json:"collected_today"`
	CollectedTotal  float64         `json:"collected_total"`
	PaymentCount    int             `json:"payment_count"`
	RecentPayments  []RecentPayment `json:"recent_payments"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

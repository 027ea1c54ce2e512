package models

import (
	"time"

	"github.com/thedevsaddam/govalidator"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is the settlement record of one approved application. Amounts are
// integers in the smallest currency unit and PlatformFee+TutorEarnings always
// equals Amount.
type Payment struct {
	ID            string        `json:"id" db:"id"`
	ApplicationID string        `json:"applicationId" db:"application_id"`
	TuitionID     string        `json:"tuitionId" db:"tuition_id"`
	StudentID     string        `json:"studentId" db:"student_email"`
	TutorID       string        `json:"tutorId" db:"tutor_email"`
	Amount        int64         `json:"amount" db:"amount"`
	PlatformFee   int64         `json:"platformFee" db:"platform_fee"`
	TutorEarnings int64         `json:"tutorEarnings" db:"tutor_earnings"`
	SessionRef    string        `json:"sessionId,omitempty" db:"session_ref"`
	Status        PaymentStatus `json:"status" db:"status"`
	PaidAt        *time.Time    `json:"paidAt,omitempty" db:"paid_at"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`
}

func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// HasParty reports whether email is the student or the tutor of the payment.
func (p *Payment) HasParty(email string) bool {
	return p.StudentID == email || p.TutorID == email
}

type CreateCheckoutSessionOpts struct {
	ApplicationID string `json:"applicationId"`
}

var CreateCheckoutSessionRules = govalidator.MapData{
	"applicationId": []string{"required"},
}

type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type GetPaymentsOpts struct {
	Status string `schema:"status"`
	PaginationOpts
}

var GetPaymentsRules = govalidator.MapData{
	"status": []string{"in:pending,completed,failed,refunded"},
	"page":   []string{"numeric"},
	"limit":  []string{"numeric"},
}

// PaymentFilter narrows payment listings. Empty fields are ignored.
type PaymentFilter struct {
	StudentEmail string
	TutorEmail   string
	Status       PaymentStatus
}

type PaymentsStruct struct {
	Payments []Payment `json:"payments"`
	Total    int       `json:"total"`
}

type TutorEarnings struct {
	Payments        []Payment   `json:"payments"`
	TotalEarnings   int64       `json:"totalEarnings"`
	PendingEarnings int64       `json:"pendingEarnings"`
	Meta            *Pagination `json:"meta"`
}

type GetRevenueOpts struct {
	From string `schema:"from"`
	To   string `schema:"to"`
}

var GetRevenueRules = govalidator.MapData{
	"from": []string{"date_ISO8601"},
	"to":   []string{"date_ISO8601"},
}

type Revenue struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Total int64     `json:"total"`
}

// AdminDashboard is the money overview of the platform. TotalRevenue covers
// every completed payment.
type AdminDashboard struct {
	TotalPayments      int       `json:"totalPayments"`
	TotalRevenue       int64     `json:"totalRevenue"`
	RecentTransactions []Payment `json:"recentTransactions"`
}

type Receipt struct {
	URL string `json:"url"`
}

type PaymentReceiptHTML struct {
	ID            string
	StudentName   string
	TutorName     string
	Subject       string
	Amount        int64
	PlatformFee   int64
	TutorEarnings int64
	Currency      string
	PaidAt        string
	Image         string
}

type PaymentSuccessMail struct {
	Name       string
	Subject    string
	Amount     int64
	Currency   string
	ReceiptURL string
}

// PaymentCompletedEvent is published once per payment that reaches completed.
type PaymentCompletedEvent struct {
	Type          string    `json:"type"`
	PaymentID     string    `json:"paymentId"`
	ApplicationID string    `json:"applicationId"`
	TuitionID     string    `json:"tuitionId"`
	StudentID     string    `json:"studentId"`
	TutorID       string    `json:"tutorId"`
	Amount        int64     `json:"amount"`
	PlatformFee   int64     `json:"platformFee"`
	TutorEarnings int64     `json:"tutorEarnings"`
	PaidAt        time.Time `json:"paidAt"`
}

// ReceiptKey is the object key of the receipt of a payment.
func ReceiptKey(paymentID string) string {
	return "receipts/" + paymentID + ".pdf"
}

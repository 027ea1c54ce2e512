package settlement

import (
	"context"
	"time"

	"bitbucket.org/etuitionbd/backend/models"
	"github.com/pkg/errors"
)

// Storage is what the settlement flow needs from persistence. Getters return
// nil, nil when the record does not exist.
type Storage interface {
	GetApplicationByID(ctx context.Context, id string) (*models.Application, error)
	GetTuitionByID(ctx context.Context, id string) (*models.Tuition, error)

	InsertPayment(ctx context.Context, payment *models.Payment) error
	SetPaymentSessionRef(ctx context.Context, paymentID string, sessionRef string, at time.Time) error
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentBySessionRef(ctx context.Context, sessionRef string) (*models.Payment, error)

	// CompletePayment moves the payment to completed only if it is still
	// pending, and in the same unit of work forces its application and
	// tuition to completed. It reports whether this call did the transition.
	CompletePayment(ctx context.Context, paymentID string, paidAt time.Time) (bool, error)

	// FailPayment moves a pending payment to failed and reports whether it did.
	FailPayment(ctx context.Context, paymentID string, at time.Time) (bool, error)
	GetPendingPaymentsCreatedBefore(ctx context.Context, before time.Time) ([]models.Payment, error)

	SumTutorEarnings(ctx context.Context, tutorEmail string, status models.PaymentStatus) (int64, error)
	SumPlatformFees(ctx context.Context, from, to *time.Time) (int64, error)
}

// ErrSessionNotFound is returned by a Gateway that has no record of a session.
var ErrSessionNotFound = errors.New("checkout session not found")

type CheckoutSessionParams struct {
	PaymentID     string
	ApplicationID string
	Amount        int64
	Name          string
	Description   string
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID      string
	URL     string
	Paid    bool
	Expired bool
}

// Gateway is the external payment provider hosting checkout sessions.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params *CheckoutSessionParams) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
}

// CompletionListener is notified once for every payment that this process
// moved to completed. It is never called for repeated confirmations.
type CompletionListener interface {
	PaymentCompleted(ctx context.Context, payment *models.Payment)
}

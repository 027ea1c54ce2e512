// Package settlement moves a tuition engagement from an approved application to
// a completed payment: fee split, checkout session creation, idempotent
// confirmation against the payment gateway and earnings aggregation.
package settlement

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/etuitionbd/backend/logging"
	"bitbucket.org/etuitionbd/backend/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Options struct {
	SuccessURL string
	CancelURL  string
	Metrics    *Metrics
	Listeners  []CompletionListener
	Now        func() time.Time
}

type Service struct {
	storage    Storage
	gateway    Gateway
	fees       FeeCalculator
	successURL string
	cancelURL  string
	metrics    *Metrics
	listeners  []CompletionListener
	now        func() time.Time
}

func NewService(storage Storage, gateway Gateway, fees FeeCalculator, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		storage:    storage,
		gateway:    gateway,
		fees:       fees,
		successURL: opts.SuccessURL,
		cancelURL:  opts.CancelURL,
		metrics:    opts.Metrics,
		listeners:  opts.Listeners,
		now:        now,
	}
}

// AddListener registers l for completed payments. It must be called before
// the service starts handling requests.
func (s *Service) AddListener(l CompletionListener) {
	s.listeners = append(s.listeners, l)
}

type CheckoutRequest struct {
	ApplicationID string
	StudentEmail  string
}

type CheckoutResult struct {
	PaymentID string
	SessionID string
	URL       string
}

// CreateCheckoutSession opens a gateway checkout for an approved application
// owned by the requesting student. The pending payment is stored before the
// gateway is called and stays behind if that call fails.
func (s *Service) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	logger := logging.FromContext(ctx).WithFields(log.Fields{
		"application_id": req.ApplicationID,
		"student":        req.StudentEmail,
	})

	if _, err := uuid.Parse(req.ApplicationID); err != nil {
		return nil, newError(ErrInvalidReference, "Invalid application ID")
	}

	application, err := s.storage.GetApplicationByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed getting application")
	}
	if application == nil {
		return nil, newError(ErrNotFound, "Application not found")
	}

	tuition, err := s.storage.GetTuitionByID(ctx, application.TuitionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed getting tuition")
	}
	if tuition == nil {
		return nil, newError(ErrNotFound, "Tuition not found")
	}

	if !tuition.IsOwner(req.StudentEmail) {
		return nil, newError(ErrForbidden, "You can only pay for your own tuitions")
	}

	if application.Status != models.ApplicationStatusApproved {
		return nil, newError(ErrInvalidState, "Application must be approved before payment")
	}

	split, err := s.fees.Split(application.ExpectedSalary)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payment := &models.Payment{
		ID:            uuid.NewString(),
		ApplicationID: application.ID,
		TuitionID:     tuition.ID,
		StudentID:     req.StudentEmail,
		TutorID:       application.TutorEmail,
		Amount:        application.ExpectedSalary,
		PlatformFee:   split.PlatformFee,
		TutorEarnings: split.TutorEarnings,
		Status:        models.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.storage.InsertPayment(ctx, payment); err != nil {
		return nil, errors.Wrap(err, "failed inserting payment")
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, &CheckoutSessionParams{
		PaymentID:     payment.ID,
		ApplicationID: application.ID,
		Amount:        payment.Amount,
		Name:          fmt.Sprintf("Tuition: %s", tuition.Subject),
		Description:   fmt.Sprintf("Tutor: %s", application.TutorName),
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
	})
	if err != nil {
		logger.WithField("payment_id", payment.ID).WithError(err).Warn("checkout session failed, payment left pending")
		return nil, wrapError(ErrGateway, err, "Failed creating checkout session")
	}

	if err := s.storage.SetPaymentSessionRef(ctx, payment.ID, session.ID, s.now()); err != nil {
		return nil, errors.Wrap(err, "failed storing checkout session")
	}

	s.metrics.checkoutCreated()
	logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"session_id": session.ID,
		"amount":     payment.Amount,
	}).Info("checkout session created")

	return &CheckoutResult{
		PaymentID: payment.ID,
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

// ConfirmPayment checks the session on the gateway and, if it is paid,
// completes the local payment together with its application and tuition.
// Calling it again for the same session changes nothing and returns the same
// payment.
func (s *Service) ConfirmPayment(ctx context.Context, sessionRef string) (*models.Payment, error) {
	logger := logging.FromContext(ctx).WithField("session_id", sessionRef)

	if sessionRef == "" {
		return nil, newError(ErrInvalidReference, "Invalid session ID")
	}

	session, err := s.gateway.RetrieveSession(ctx, sessionRef)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, newError(ErrNotFound, "Session not found")
		}
		return nil, wrapError(ErrGateway, err, "Failed retrieving checkout session")
	}
	if session == nil {
		return nil, newError(ErrNotFound, "Session not found")
	}

	payment, err := s.storage.GetPaymentBySessionRef(ctx, sessionRef)
	if err != nil {
		return nil, errors.Wrap(err, "failed getting payment")
	}
	if payment == nil {
		return nil, newError(ErrNotFound, "Payment not found")
	}

	switch {
	case !session.Paid:
		s.metrics.confirmed(confirmationUnpaid)
		logger.WithField("payment_id", payment.ID).Info("checkout session not paid yet")
		return payment, nil
	case payment.IsCompleted():
		s.metrics.confirmed(confirmationNoop)
		return payment, nil
	}

	completed, err := s.storage.CompletePayment(ctx, payment.ID, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "failed completing payment")
	}

	updated, err := s.storage.GetPaymentByID(ctx, payment.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed getting payment")
	}
	if updated == nil {
		return nil, newError(ErrNotFound, "Payment not found")
	}

	if !completed {
		// another confirmation won the transition, or the sweep already
		// failed the payment
		s.metrics.confirmed(confirmationNoop)
		return updated, nil
	}

	s.metrics.confirmed(confirmationCompleted)
	s.metrics.settled(updated.Amount, updated.PlatformFee)
	logger.WithFields(log.Fields{
		"payment_id":     updated.ID,
		"application_id": updated.ApplicationID,
		"tuition_id":     updated.TuitionID,
		"amount":         updated.Amount,
		"platform_fee":   updated.PlatformFee,
	}).Info("payment completed")

	for _, l := range s.listeners {
		l.PaymentCompleted(ctx, updated)
	}

	return updated, nil
}

func (s *Service) TutorEarnings(ctx context.Context, tutorEmail string) (int64, error) {
	total, err := s.storage.SumTutorEarnings(ctx, tutorEmail, models.PaymentStatusCompleted)
	if err != nil {
		return 0, errors.Wrap(err, "failed summing tutor earnings")
	}
	return total, nil
}

// PendingEarnings is what the tutor would earn from payments still awaiting
// confirmation.
func (s *Service) PendingEarnings(ctx context.Context, tutorEmail string) (int64, error) {
	total, err := s.storage.SumTutorEarnings(ctx, tutorEmail, models.PaymentStatusPending)
	if err != nil {
		return 0, errors.Wrap(err, "failed summing pending tutor earnings")
	}
	return total, nil
}

// Window is a half-open [From, To) range on the payment date. A zero bound is
// unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

// PreviousMonth is the calendar month before the one containing now.
func PreviousMonth(now time.Time) Window {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Window{
		From: firstOfMonth.AddDate(0, -1, 0),
		To:   firstOfMonth,
	}
}

func (s *Service) PlatformEarnings(ctx context.Context, window Window) (int64, error) {
	var from, to *time.Time
	if !window.From.IsZero() {
		from = &window.From
	}
	if !window.To.IsZero() {
		to = &window.To
	}

	total, err := s.storage.SumPlatformFees(ctx, from, to)
	if err != nil {
		return 0, errors.Wrap(err, "failed summing platform fees")
	}
	return total, nil
}

type ReconcileReport struct {
	Checked   int
	Completed int
	Failed    int
	Errors    int
}

// ReconcilePending sweeps pending payments older than ttl. Payments that
// never got a checkout session, or whose session is unknown to the gateway or
// expired unpaid, are failed. Paid sessions go through ConfirmPayment.
func (s *Service) ReconcilePending(ctx context.Context, ttl time.Duration) (*ReconcileReport, error) {
	logger := logging.FromContext(ctx)

	payments, err := s.storage.GetPendingPaymentsCreatedBefore(ctx, s.now().Add(-ttl))
	if err != nil {
		return nil, errors.Wrap(err, "failed getting pending payments")
	}

	report := &ReconcileReport{}
	for i := range payments {
		payment := &payments[i]
		report.Checked++
		paymentLogger := logger.WithField("payment_id", payment.ID)

		if payment.SessionRef == "" {
			if s.fail(ctx, payment, report) {
				paymentLogger.Info("orphaned payment failed")
			}
			continue
		}

		session, err := s.gateway.RetrieveSession(ctx, payment.SessionRef)
		switch {
		case errors.Is(err, ErrSessionNotFound), err == nil && session == nil:
			if s.fail(ctx, payment, report) {
				paymentLogger.Info("payment with unknown session failed")
			}
		case err != nil:
			report.Errors++
			paymentLogger.WithError(err).Error("failed retrieving checkout session")
		case session.Paid:
			confirmed, err := s.ConfirmPayment(ctx, payment.SessionRef)
			if err != nil {
				report.Errors++
				paymentLogger.WithError(err).Error("failed confirming payment")
				continue
			}
			if confirmed.IsCompleted() {
				report.Completed++
			}
		case session.Expired:
			if s.fail(ctx, payment, report) {
				paymentLogger.Info("payment with expired session failed")
			}
		}
	}

	return report, nil
}

func (s *Service) fail(ctx context.Context, payment *models.Payment, report *ReconcileReport) bool {
	failed, err := s.storage.FailPayment(ctx, payment.ID, s.now())
	if err != nil {
		report.Errors++
		logging.FromContext(ctx).WithField("payment_id", payment.ID).WithError(err).Error("failed marking payment as failed")
		return false
	}
	if failed {
		report.Failed++
		s.metrics.paymentFailed()
	}
	return failed
}

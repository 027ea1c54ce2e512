package db

import (
	"context"
	"database/sql"
	"time"

	"bitbucket.org/etuitionbd/backend/models"
	"github.com/pkg/errors"
)

type PaymentStorage interface {
	InsertPayment(ctx context.Context, payment *models.Payment) error
	SetPaymentSessionRef(ctx context.Context, paymentID string, sessionRef string, at time.Time) error
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentBySessionRef(ctx context.Context, sessionRef string) (*models.Payment, error)
	GetPayments(ctx context.Context, filter models.PaymentFilter, page models.PaginationOpts) (*models.PaymentsStruct, error)
	CompletePayment(ctx context.Context, paymentID string, paidAt time.Time) (bool, error)
	FailPayment(ctx context.Context, paymentID string, at time.Time) (bool, error)
	GetPendingPaymentsCreatedBefore(ctx context.Context, before time.Time) ([]models.Payment, error)
	SumTutorEarnings(ctx context.Context, tutorEmail string, status models.PaymentStatus) (int64, error)
	SumPlatformFees(ctx context.Context, from, to *time.Time) (int64, error)
}

const paymentColumns = `
		payments.id,
		payments.application_id,
		payments.tuition_id,
		payments.student_email,
		payments.tutor_email,
		payments.amount,
		payments.platform_fee,
		payments.tutor_earnings,
		COALESCE(payments.session_ref, '') AS session_ref,
		payments.status,
		payments.paid_at,
		payments.created_at,
		payments.updated_at
`

const (
	insertPayment = `
	INSERT INTO payments (
		id, application_id, tuition_id, student_email, tutor_email,
		amount, platform_fee, tutor_earnings, status, created_at, updated_at
	) VALUES (
		:id, :application_id, :tuition_id, :student_email, :tutor_email,
		:amount, :platform_fee, :tutor_earnings, :status, :created_at, :updated_at
	)
	`

	updatePaymentSessionRef = `
	UPDATE payments
	SET session_ref = ?, updated_at = ?
	WHERE id = ?
	`

	getPaymentByID = `
	SELECT` + paymentColumns + `
	FROM payments
	WHERE payments.id = ?
	`

	getPaymentBySessionRef = `
	SELECT` + paymentColumns + `
	FROM payments
	WHERE payments.session_ref = ?
	`

	getPayments = `
	SELECT` + paymentColumns + `
	FROM payments
	WHERE 1 = 1
		#FILTERS#
	ORDER BY payments.created_at DESC, payments.id ASC
	LIMIT ? OFFSET ?
	`

	countPayments = `
	SELECT count(*)
	FROM payments
	WHERE 1 = 1
		#FILTERS#
	`

	// the status guard makes completion a compare-and-set: only one caller
	// ever sees a row affected
	completePayment = `
	UPDATE payments
	SET status = ?, paid_at = ?, updated_at = ?
	WHERE id = ? AND status = ?
	`

	completeApplication = `
	UPDATE applications
	SET status = ?, updated_at = ?
	WHERE id = ?
	`

	completeTuition = `
	UPDATE tuitions
	SET status = ?, updated_at = ?
	WHERE id = ?
	`

	failPayment = `
	UPDATE payments
	SET status = ?, updated_at = ?
	WHERE id = ? AND status = ?
	`

	getPendingPaymentsCreatedBefore = `
	SELECT` + paymentColumns + `
	FROM payments
	WHERE payments.status = ? AND payments.created_at < ?
	ORDER BY payments.created_at ASC
	`

	sumTutorEarnings = `
	SELECT COALESCE(SUM(payments.tutor_earnings), 0)
	FROM payments
	WHERE payments.tutor_email = ? AND payments.status = ?
	`

	sumPlatformFees = `
	SELECT COALESCE(SUM(payments.platform_fee), 0)
	FROM payments
	WHERE payments.status = ?
		#FILTERS#
	`
)

func (db *DB) InsertPayment(ctx context.Context, payment *models.Payment) error {
	result, err := db.NamedExecContext(ctx, insertPayment, payment)
	if err != nil {
		return errors.Wrap(err, "failed inserting payment")
	}

	return expectOneRow(result, "inserted")
}

func (db *DB) SetPaymentSessionRef(ctx context.Context, paymentID string, sessionRef string, at time.Time) error {
	result, err := db.ExecContext(ctx, db.Rebind(updatePaymentSessionRef), sessionRef, at, paymentID)
	if err != nil {
		return errors.Wrap(err, "failed updating payment session")
	}

	return expectOneRow(result, "updated")
}

func (db *DB) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	return db.getPayment(ctx, getPaymentByID, id)
}

func (db *DB) GetPaymentBySessionRef(ctx context.Context, sessionRef string) (*models.Payment, error) {
	return db.getPayment(ctx, getPaymentBySessionRef, sessionRef)
}

func (db *DB) getPayment(ctx context.Context, query string, arg string) (*models.Payment, error) {
	var payment models.Payment
	if err := db.GetContext(ctx, &payment, db.Rebind(query), arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &payment, nil
}

func (db *DB) GetPayments(ctx context.Context, filter models.PaymentFilter, page models.PaginationOpts) (*models.PaymentsStruct, error) {
	var (
		filters []string
		args    []interface{}
	)
	if filter.StudentEmail != "" {
		filters = append(filters, "payments.student_email = ?")
		args = append(args, filter.StudentEmail)
	}
	if filter.TutorEmail != "" {
		filters = append(filters, "payments.tutor_email = ?")
		args = append(args, filter.TutorEmail)
	}
	if filter.Status != "" {
		filters = append(filters, "payments.status = ?")
		args = append(args, filter.Status)
	}

	var total int
	if err := db.GetContext(ctx, &total, db.Rebind(applyFilters(countPayments, filters)), args...); err != nil {
		return nil, errors.Wrap(err, "failed counting payments")
	}

	payments := []models.Payment{}
	query := db.Rebind(applyFilters(getPayments, filters))
	if err := db.SelectContext(ctx, &payments, query, append(args, page.Limit, page.Offset())...); err != nil {
		return nil, errors.Wrap(err, "failed getting payments")
	}

	return &models.PaymentsStruct{
		Payments: payments,
		Total:    total,
	}, nil
}

// CompletePayment marks the payment completed and cascades the completion to
// its application and tuition in one transaction. It returns false without
// touching anything else when the payment is no longer pending.
func (db *DB) CompletePayment(ctx context.Context, paymentID string, paidAt time.Time) (bool, error) {
	var completed bool
	err := db.withTx(ctx, func(tx Tx) error {
		result, err := tx.ExecContext(ctx, tx.Rebind(completePayment),
			models.PaymentStatusCompleted, paidAt, paidAt, paymentID, models.PaymentStatusPending)
		if err != nil {
			return errors.Wrap(err, "failed completing payment")
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return nil
		}

		var refs struct {
			ApplicationID string `db:"application_id"`
			TuitionID     string `db:"tuition_id"`
		}
		if err := tx.GetContext(ctx, &refs, tx.Rebind(`SELECT application_id, tuition_id FROM payments WHERE id = ?`), paymentID); err != nil {
			return errors.Wrap(err, "failed getting payment references")
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(completeApplication),
			models.ApplicationStatusCompleted, paidAt, refs.ApplicationID); err != nil {
			return errors.Wrap(err, "failed completing application")
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(completeTuition),
			models.TuitionStatusCompleted, paidAt, refs.TuitionID); err != nil {
			return errors.Wrap(err, "failed completing tuition")
		}

		completed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return completed, nil
}

func (db *DB) FailPayment(ctx context.Context, paymentID string, at time.Time) (bool, error) {
	result, err := db.ExecContext(ctx, db.Rebind(failPayment),
		models.PaymentStatusFailed, at, paymentID, models.PaymentStatusPending)
	if err != nil {
		return false, errors.Wrap(err, "failed updating payment")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

func (db *DB) GetPendingPaymentsCreatedBefore(ctx context.Context, before time.Time) ([]models.Payment, error) {
	payments := []models.Payment{}
	if err := db.SelectContext(ctx, &payments, db.Rebind(getPendingPaymentsCreatedBefore),
		models.PaymentStatusPending, before); err != nil {
		return nil, errors.Wrap(err, "failed getting pending payments")
	}

	return payments, nil
}

func (db *DB) SumTutorEarnings(ctx context.Context, tutorEmail string, status models.PaymentStatus) (int64, error) {
	var total int64
	if err := db.GetContext(ctx, &total, db.Rebind(sumTutorEarnings), tutorEmail, status); err != nil {
		return 0, errors.Wrap(err, "failed summing tutor earnings")
	}

	return total, nil
}

// SumPlatformFees adds the platform fee of completed payments paid within
// [from, to). Nil bounds are open.
func (db *DB) SumPlatformFees(ctx context.Context, from, to *time.Time) (int64, error) {
	var filters []string
	args := []interface{}{models.PaymentStatusCompleted}
	if from != nil {
		filters = append(filters, "payments.paid_at >= ?")
		args = append(args, *from)
	}
	if to != nil {
		filters = append(filters, "payments.paid_at < ?")
		args = append(args, *to)
	}

	var total int64
	if err := db.GetContext(ctx, &total, db.Rebind(applyFilters(sumPlatformFees, filters)), args...); err != nil {
		return 0, errors.Wrap(err, "failed summing platform fees")
	}

	return total, nil
}

// Package dbtest provides an in-memory db.Storage for tests.
package dbtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"bitbucket.org/etuitionbd/backend/db"
	"bitbucket.org/etuitionbd/backend/models"
	"github.com/pkg/errors"
)

var _ db.Storage = (*Store)(nil)

// Store keeps records in maps guarded by one mutex, so CompletePayment has the
// same compare-and-set behaviour as the SQL implementation.
type Store struct {
	mu           sync.Mutex
	users        map[string]models.User
	tuitions     map[string]models.Tuition
	applications map[string]models.Application
	payments     map[string]models.Payment

	// Cascades counts application and tuition updates done by CompletePayment.
	Cascades int
	// Err, when set, is returned by every method.
	Err error
}

func New() *Store {
	return &Store{
		users:        map[string]models.User{},
		tuitions:     map[string]models.Tuition{},
		applications: map[string]models.Application{},
		payments:     map[string]models.Payment{},
	}
}

func (s *Store) InsertUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return errors.Errorf("duplicate email %s", user.Email)
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUserLoginByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil || user == nil || !user.IsActive() {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertTuition(_ context.Context, tuition *models.Tuition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.tuitions[tuition.ID] = *tuition
	return nil
}

func (s *Store) GetTuitionByID(_ context.Context, id string) (*models.Tuition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	tuition, ok := s.tuitions[id]
	if !ok {
		return nil, nil
	}
	return &tuition, nil
}

func (s *Store) InsertApplication(_ context.Context, application *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.applications[application.ID] = *application
	return nil
}

func (s *Store) GetApplicationByID(_ context.Context, id string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	application, ok := s.applications[id]
	if !ok {
		return nil, nil
	}
	return &application, nil
}

func (s *Store) CountTutorApplications(_ context.Context, tuitionID string, tutorEmail string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	count := 0
	for _, a := range s.applications {
		if a.TuitionID == tuitionID && a.TutorEmail == tutorEmail {
			count++
		}
	}
	return count, nil
}

func (s *Store) UpdateApplicationStatus(_ context.Context, id string, from, to models.ApplicationStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	application, ok := s.applications[id]
	if !ok || application.Status != from {
		return false, nil
	}
	application.Status = to
	application.UpdatedAt = at
	s.applications[id] = application
	return true, nil
}

func (s *Store) InsertPayment(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.payments[payment.ID]; ok {
		return errors.Errorf("duplicate payment %s", payment.ID)
	}
	s.payments[payment.ID] = *payment
	return nil
}

func (s *Store) SetPaymentSessionRef(_ context.Context, paymentID string, sessionRef string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	payment, ok := s.payments[paymentID]
	if !ok {
		return errors.Errorf("payment %s not found", paymentID)
	}
	payment.SessionRef = sessionRef
	payment.UpdatedAt = at
	s.payments[paymentID] = payment
	return nil
}

func (s *Store) GetPaymentByID(_ context.Context, id string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	payment, ok := s.payments[id]
	if !ok {
		return nil, nil
	}
	return &payment, nil
}

func (s *Store) GetPaymentBySessionRef(_ context.Context, sessionRef string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, p := range s.payments {
		if p.SessionRef != "" && p.SessionRef == sessionRef {
			payment := p
			return &payment, nil
		}
	}
	return nil, nil
}

func (s *Store) GetPayments(_ context.Context, filter models.PaymentFilter, page models.PaginationOpts) (*models.PaymentsStruct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	matched := []models.Payment{}
	for _, p := range s.payments {
		if filter.StudentEmail != "" && p.StudentID != filter.StudentEmail {
			continue
		}
		if filter.TutorEmail != "" && p.TutorID != filter.TutorEmail {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return &models.PaymentsStruct{
		Payments: matched[start:end],
		Total:    total,
	}, nil
}

func (s *Store) CompletePayment(_ context.Context, paymentID string, paidAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	payment, ok := s.payments[paymentID]
	if !ok || payment.Status != models.PaymentStatusPending {
		return false, nil
	}
	payment.Status = models.PaymentStatusCompleted
	payment.PaidAt = &paidAt
	payment.UpdatedAt = paidAt
	s.payments[paymentID] = payment

	if application, ok := s.applications[payment.ApplicationID]; ok {
		application.Status = models.ApplicationStatusCompleted
		application.UpdatedAt = paidAt
		s.applications[application.ID] = application
	}
	if tuition, ok := s.tuitions[payment.TuitionID]; ok {
		tuition.Status = models.TuitionStatusCompleted
		tuition.UpdatedAt = paidAt
		s.tuitions[tuition.ID] = tuition
	}
	s.Cascades++
	return true, nil
}

func (s *Store) FailPayment(_ context.Context, paymentID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	payment, ok := s.payments[paymentID]
	if !ok || payment.Status != models.PaymentStatusPending {
		return false, nil
	}
	payment.Status = models.PaymentStatusFailed
	payment.UpdatedAt = at
	s.payments[paymentID] = payment
	return true, nil
}

func (s *Store) GetPendingPaymentsCreatedBefore(_ context.Context, before time.Time) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	payments := []models.Payment{}
	for _, p := range s.payments {
		if p.Status == models.PaymentStatusPending && p.CreatedAt.Before(before) {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.Before(payments[j].CreatedAt) })
	return payments, nil
}

func (s *Store) SumTutorEarnings(_ context.Context, tutorEmail string, status models.PaymentStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var total int64
	for _, p := range s.payments {
		if p.TutorID == tutorEmail && p.Status == status {
			total += p.TutorEarnings
		}
	}
	return total, nil
}

func (s *Store) SumPlatformFees(_ context.Context, from, to *time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var total int64
	for _, p := range s.payments {
		if !p.IsCompleted() || p.PaidAt == nil {
			continue
		}
		if from != nil && p.PaidAt.Before(*from) {
			continue
		}
		if to != nil && !p.PaidAt.Before(*to) {
			continue
		}
		total += p.PlatformFee
	}
	return total, nil
}

// Payments returns a snapshot of every stored payment.
func (s *Store) Payments() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	payments := make([]models.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		payments = append(payments, p)
	}
	return payments
}

// Package settlementtest provides in-memory doubles of the settlement
// collaborators.
package settlementtest

import (
	"context"
	"fmt"
	"sync"

	"bitbucket.org/etuitionbd/backend/models"
	"bitbucket.org/etuitionbd/backend/settlement"
)

var (
	_ settlement.Gateway            = (*Gateway)(nil)
	_ settlement.CompletionListener = (*Listener)(nil)
)

// Gateway hosts checkout sessions in memory. New sessions start unpaid.
type Gateway struct {
	mu       sync.Mutex
	sessions map[string]*settlement.Session
	seq      int

	// CreateErr and RetrieveErr, when set, fail the matching call.
	CreateErr   error
	RetrieveErr error

	Created []settlement.CheckoutSessionParams
}

func NewGateway() *Gateway {
	return &Gateway{sessions: map[string]*settlement.Session{}}
}

func (g *Gateway) CreateCheckoutSession(_ context.Context, params *settlement.CheckoutSessionParams) (*settlement.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.seq++
	id := fmt.Sprintf("cs_test_%d", g.seq)
	session := &settlement.Session{ID: id, URL: "https://checkout.test/" + id}
	g.sessions[id] = session
	g.Created = append(g.Created, *params)

	out := *session
	return &out, nil
}

func (g *Gateway) RetrieveSession(_ context.Context, id string) (*settlement.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.RetrieveErr != nil {
		return nil, g.RetrieveErr
	}
	session, ok := g.sessions[id]
	if !ok {
		return nil, settlement.ErrSessionNotFound
	}
	out := *session
	return &out, nil
}

// MarkPaid flags the session as paid, as the hosted checkout does.
func (g *Gateway) MarkPaid(id string) {
	g.set(id, func(s *settlement.Session) { s.Paid = true })
}

func (g *Gateway) MarkExpired(id string) {
	g.set(id, func(s *settlement.Session) { s.Expired = true })
}

// Forget drops the session so lookups report it missing.
func (g *Gateway) Forget(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, id)
}

func (g *Gateway) set(id string, fn func(*settlement.Session)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[id]; ok {
		fn(s)
	}
}

// Listener records completed payments.
type Listener struct {
	mu       sync.Mutex
	payments []models.Payment
}

func (l *Listener) PaymentCompleted(_ context.Context, payment *models.Payment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payments = append(l.payments, *payment)
}

func (l *Listener) Payments() []models.Payment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Payment(nil), l.payments...)
}

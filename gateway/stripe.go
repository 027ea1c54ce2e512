// Package gateway implements the settlement payment gateway on Stripe
// Checkout.
package gateway

import (
	"context"
	"io"
	"net/http"

	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

const (
	paymentMethodCard = "card"
	signatureHeader   = "Stripe-Signature"
	maxWebhookBytes   = int64(65536)

	EventCheckoutSessionCompleted      = "checkout.session.completed"
	EventCheckoutSessionAsyncSucceeded = "checkout.session.async_payment_succeeded"
)

type Stripe struct {
	api           *client.API
	webhookSecret string
	currency      string
	multiplier    int64
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// Currency is the ISO code sent to Stripe, lower case.
	Currency string
	// Multiplier converts a stored amount into the currency's minor unit.
	Multiplier int64
	// Backends overrides the Stripe HTTP backends, used in tests.
	Backends *stripe.Backends
}

func NewStripe(conf StripeConfig) *Stripe {
	api := &client.API{}
	api.Init(conf.SecretKey, conf.Backends)

	multiplier := conf.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	return &Stripe{
		api:           api,
		webhookSecret: conf.WebhookSecret,
		currency:      conf.Currency,
		multiplier:    multiplier,
	}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, p *settlement.CheckoutSessionParams) (*settlement.Session, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{paymentMethodCard}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(p.Name),
						Description: stripe.String(p.Description),
					},
					UnitAmount: stripe.Int64(p.Amount * s.multiplier),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.PaymentID),
	}
	params.Context = ctx
	params.AddMetadata("paymentId", p.PaymentID)
	params.AddMetadata("applicationId", p.ApplicationID)
	params.SetIdempotencyKey("checkout-" + p.PaymentID)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "stripe: failed creating checkout session")
	}

	return toSession(sess), nil
}

func (s *Stripe) RetrieveSession(ctx context.Context, id string) (*settlement.Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		if isResourceMissing(err) {
			return nil, errors.Wrapf(settlement.ErrSessionNotFound, "stripe: session %s", id)
		}
		return nil, errors.Wrap(err, "stripe: failed retrieving checkout session")
	}

	return toSession(sess), nil
}

// ParseWebhook verifies the signature of a webhook request and returns the
// checkout session id it refers to. ok is false for events that do not settle
// a checkout session.
func (s *Stripe) ParseWebhook(r *http.Request) (sessionID string, ok bool, err error) {
	// an empty secret would accept payloads signed by anyone
	if s.webhookSecret == "" {
		return "", false, errors.New("webhook secret not configured")
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		return "", false, errors.Wrap(err, "failed reading webhook body")
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get(signatureHeader), s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return "", false, errors.Wrap(err, "invalid webhook signature")
	}

	switch string(event.Type) {
	case EventCheckoutSessionCompleted, EventCheckoutSessionAsyncSucceeded:
	default:
		return "", false, nil
	}

	id, _ := event.Data.Object["id"].(string)
	if id == "" {
		return "", false, errors.New("webhook event without checkout session id")
	}

	return id, true, nil
}

func toSession(sess *stripe.CheckoutSession) *settlement.Session {
	return &settlement.Session{
		ID:      sess.ID,
		URL:     sess.URL,
		Paid:    sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Expired: sess.Status == stripe.CheckoutSessionStatusExpired,
	}
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing
}

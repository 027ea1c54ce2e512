package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

const testWebhookSecret = "whsec_test"

func newTestStripe(t *testing.T, handler http.HandlerFunc) *Stripe {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})

	return NewStripe(StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		Currency:      "bdt",
		Multiplier:    100,
		Backends:      &stripe.Backends{API: backend, Connect: backend, Uploads: backend},
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	var form url.Values
	var idempotencyKey string
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		idempotencyKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_1","object":"checkout.session","url":"https://checkout.stripe.com/c/cs_1","payment_status":"unpaid","status":"open"}`)
	})

	sess, err := s.CreateCheckoutSession(context.Background(), &settlement.CheckoutSessionParams{
		PaymentID:     "pay-1",
		ApplicationID: "app-1",
		Amount:        5000,
		Name:          "Physics tuition",
		Description:   "Tutor: Karim",
		SuccessURL:    "https://etuition.test/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://etuition.test/payment/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, &settlement.Session{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, sess)
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "500000", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "bdt", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "pay-1", form.Get("client_reference_id"))
	assert.Equal(t, "pay-1", form.Get("metadata[paymentId]"))
	assert.Equal(t, "checkout-pay-1", idempotencyKey)
}

func TestRetrieveSession(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch strings.TrimPrefix(r.URL.Path, "/v1/checkout/sessions/") {
		case "cs_paid":
			fmt.Fprint(w, `{"id":"cs_paid","object":"checkout.session","payment_status":"paid","status":"complete"}`)
		case "cs_expired":
			fmt.Fprint(w, `{"id":"cs_expired","object":"checkout.session","payment_status":"unpaid","status":"expired"}`)
		case "cs_down":
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"type":"api_error","message":"boom"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session"}}`)
		}
	})
	ctx := context.Background()

	sess, err := s.RetrieveSession(ctx, "cs_paid")
	require.NoError(t, err)
	assert.True(t, sess.Paid)
	assert.False(t, sess.Expired)

	sess, err = s.RetrieveSession(ctx, "cs_expired")
	require.NoError(t, err)
	assert.False(t, sess.Paid)
	assert.True(t, sess.Expired)

	_, err = s.RetrieveSession(ctx, "cs_missing")
	assert.True(t, errors.Is(err, settlement.ErrSessionNotFound))

	_, err = s.RetrieveSession(ctx, "cs_down")
	require.Error(t, err)
	assert.False(t, errors.Is(err, settlement.ErrSessionNotFound))
}

func signedRequest(t *testing.T, payload string, secret string) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	r := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(string(signed.Payload)))
	r.Header.Set(signatureHeader, signed.Header)
	return r
}

func TestParseWebhook(t *testing.T) {
	s := NewStripe(StripeConfig{SecretKey: "sk_test_123", WebhookSecret: testWebhookSecret})
	event := func(eventType string, object string) string {
		return fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2020-08-27","type":%q,"data":{"object":%s}}`, eventType, object)
	}

	t.Run("completed", func(t *testing.T) {
		id, ok, err := s.ParseWebhook(signedRequest(t, event(EventCheckoutSessionCompleted, `{"id":"cs_1","object":"checkout.session"}`), testWebhookSecret))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "cs_1", id)
	})

	t.Run("async succeeded", func(t *testing.T) {
		id, ok, err := s.ParseWebhook(signedRequest(t, event(EventCheckoutSessionAsyncSucceeded, `{"id":"cs_2","object":"checkout.session"}`), testWebhookSecret))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "cs_2", id)
	})

	t.Run("ignored event", func(t *testing.T) {
		_, ok, err := s.ParseWebhook(signedRequest(t, event("customer.created", `{"id":"cus_1","object":"customer"}`), testWebhookSecret))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("bad signature", func(t *testing.T) {
		_, ok, err := s.ParseWebhook(signedRequest(t, event(EventCheckoutSessionCompleted, `{"id":"cs_1"}`), "whsec_other"))
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("unconfigured secret", func(t *testing.T) {
		unsigned := NewStripe(StripeConfig{SecretKey: "sk_test_123"})
		_, ok, err := unsigned.ParseWebhook(signedRequest(t, event(EventCheckoutSessionCompleted, `{"id":"cs_1","object":"checkout.session"}`), ""))
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("missing id", func(t *testing.T) {
		_, ok, err := s.ParseWebhook(signedRequest(t, event(EventCheckoutSessionCompleted, `{"object":"checkout.session"}`), testWebhookSecret))
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitbucket.org/etuitionbd/backend/api"
	"bitbucket.org/etuitionbd/backend/config"
	"bitbucket.org/etuitionbd/backend/db/dbtest"
	"bitbucket.org/etuitionbd/backend/gateway"
	"bitbucket.org/etuitionbd/backend/helpers"
	"bitbucket.org/etuitionbd/backend/middlewares"
	"bitbucket.org/etuitionbd/backend/models"
	"bitbucket.org/etuitionbd/backend/server"
	"bitbucket.org/etuitionbd/backend/settlement"
	"bitbucket.org/etuitionbd/backend/settlement/settlementtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
)

const (
	jwtSecret     = "api-test-secret"
	webhookSecret = "whsec_api_test"

	studentEmail = "student@example.com"
	tutorEmail   = "tutor@example.com"
)

type testEnv struct {
	store   *dbtest.Store
	gateway *settlementtest.Gateway
	handler http.Handler

	tuitionID     string
	applicationID string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	store := dbtest.New()
	gw := settlementtest.NewGateway()
	fees, err := settlement.NewFeeCalculator(10)
	require.NoError(t, err)

	ctx := &config.AppContext{
		Config: config.Configuration{
			JWTSecret:   jwtSecret,
			Environment: "test",
			ClientURL:   "http://localhost:5173",
		},
		DB:         store,
		Stripe:     gateway.NewStripe(gateway.StripeConfig{SecretKey: "sk_test_123", WebhookSecret: webhookSecret}),
		Settlement: settlement.NewService(store, gw, fees, settlement.Options{}),
	}

	env := &testEnv{
		store:         store,
		gateway:       gw,
		handler:       server.NewHandler(ctx, api.GetRoutes()),
		tuitionID:     uuid.NewString(),
		applicationID: uuid.NewString(),
	}
	require.NoError(t, store.InsertTuition(context.Background(), &models.Tuition{
		ID:           env.tuitionID,
		StudentEmail: studentEmail,
		StudentName:  "Rahim",
		Subject:      "Physics",
		Budget:       6000,
		Status:       models.TuitionStatusApproved,
	}))
	require.NoError(t, store.InsertApplication(context.Background(), &models.Application{
		ID:             env.applicationID,
		TuitionID:      env.tuitionID,
		TutorEmail:     tutorEmail,
		TutorName:      "Karim",
		ExpectedSalary: 5000,
		Status:         models.ApplicationStatusApproved,
	}))
	return env
}

func token(t *testing.T, email string, role models.Role) string {
	t.Helper()
	tok, err := helpers.GenerateToken(&models.User{ID: uuid.NewString(), Email: email, Name: email, Role: role}, jwtSecret, time.Now())
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
	Errors     json.RawMessage    `json:"errors"`
}

func (env *testEnv) do(t *testing.T, method, path, bearer string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, r)

	var out envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (env *testEnv) checkout(t *testing.T) models.CheckoutSession {
	t.Helper()
	code, res := env.do(t, http.MethodPost, "/payments/create-checkout-session", token(t, studentEmail, models.RoleStudent),
		map[string]string{"applicationId": env.applicationID})
	require.Equal(t, http.StatusCreated, code, res.Message)

	var session models.CheckoutSession
	require.NoError(t, json.Unmarshal(res.Data, &session))
	return session
}

func TestHealthcheck(t *testing.T) {
	env := newEnv(t)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middlewares.RequestIDHeader))
}

func TestCreateCheckoutSession(t *testing.T) {
	env := newEnv(t)

	session := env.checkout(t)
	assert.Equal(t, "cs_test_1", session.SessionID)
	assert.Equal(t, "https://checkout.test/cs_test_1", session.URL)

	payments := env.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusPending, payments[0].Status)
	assert.Equal(t, int64(500), payments[0].PlatformFee)
	assert.Equal(t, int64(4500), payments[0].TutorEarnings)
}

func TestCreateCheckoutSessionErrors(t *testing.T) {
	env := newEnv(t)
	student := token(t, studentEmail, models.RoleStudent)

	tests := []struct {
		name   string
		bearer string
		body   interface{}
		want   int
	}{
		{"anonymous", "", map[string]string{"applicationId": env.applicationID}, http.StatusUnauthorized},
		{"tutor role", token(t, tutorEmail, models.RoleTutor), map[string]string{"applicationId": env.applicationID}, http.StatusForbidden},
		{"missing application", student, map[string]string{}, http.StatusBadRequest},
		{"malformed application", student, map[string]string{"applicationId": "abc"}, http.StatusBadRequest},
		{"unknown application", student, map[string]string{"applicationId": uuid.NewString()}, http.StatusNotFound},
		{"other student", token(t, "other@example.com", models.RoleStudent), map[string]string{"applicationId": env.applicationID}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := env.do(t, http.MethodPost, "/payments/create-checkout-session", tt.bearer, tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, res.Success)
		})
	}
	assert.Empty(t, env.store.Payments())
	assert.Empty(t, env.gateway.Created)
}

func TestCheckoutGatewayFailure(t *testing.T) {
	env := newEnv(t)
	env.gateway.CreateErr = fmt.Errorf("stripe down")

	code, res := env.do(t, http.MethodPost, "/payments/create-checkout-session", token(t, studentEmail, models.RoleStudent),
		map[string]string{"applicationId": env.applicationID})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Failed creating checkout session", res.Message)

	payments := env.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusPending, payments[0].Status)
	assert.Empty(t, payments[0].SessionRef)
}

func TestSettlementFlow(t *testing.T) {
	env := newEnv(t)
	student := token(t, studentEmail, models.RoleStudent)
	tutor := token(t, tutorEmail, models.RoleTutor)
	admin := token(t, "admin@example.com", models.RoleAdmin)

	session := env.checkout(t)

	code, res := env.do(t, http.MethodGet, "/payments/success/"+session.SessionID, student, nil)
	require.Equal(t, http.StatusOK, code)
	var payment models.Payment
	require.NoError(t, json.Unmarshal(res.Data, &payment))
	assert.Equal(t, models.PaymentStatusPending, payment.Status)

	env.gateway.MarkPaid(session.SessionID)
	for i := 0; i < 2; i++ {
		code, res = env.do(t, http.MethodGet, "/payments/success/"+session.SessionID, student, nil)
		require.Equal(t, http.StatusOK, code)
		require.NoError(t, json.Unmarshal(res.Data, &payment))
		assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
		require.NotNil(t, payment.PaidAt)
	}
	assert.Equal(t, 1, env.store.Cascades)

	application, err := env.store.GetApplicationByID(context.Background(), env.applicationID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusCompleted, application.Status)
	tuition, err := env.store.GetTuitionByID(context.Background(), env.tuitionID)
	require.NoError(t, err)
	assert.Equal(t, models.TuitionStatusCompleted, tuition.Status)

	code, res = env.do(t, http.MethodGet, "/payments/earnings", tutor, nil)
	require.Equal(t, http.StatusOK, code)
	var earnings models.TutorEarnings
	require.NoError(t, json.Unmarshal(res.Data, &earnings))
	assert.Equal(t, int64(4500), earnings.TotalEarnings)
	assert.Equal(t, 1, earnings.Meta.Total)
	require.Len(t, earnings.Payments, 1)

	code, res = env.do(t, http.MethodGet, "/payments/my?page=1&limit=5", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, &models.Pagination{Page: 1, Limit: 5, Total: 1, TotalPages: 1}, res.Pagination)

	today := time.Now().UTC()
	revenuePath := fmt.Sprintf("/admin/revenue?from=%s&to=%s",
		today.AddDate(0, 0, -1).Format(helpers.DateLayoutISO8601),
		today.AddDate(0, 0, 1).Format(helpers.DateLayoutISO8601))
	code, res = env.do(t, http.MethodGet, revenuePath, admin, nil)
	require.Equal(t, http.StatusOK, code)
	var revenue models.Revenue
	require.NoError(t, json.Unmarshal(res.Data, &revenue))
	assert.Equal(t, int64(500), revenue.Total)

	code, _ = env.do(t, http.MethodGet, revenuePath, tutor, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, res = env.do(t, http.MethodGet, "/payments?status=completed", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, res.Pagination.Total)
}

func TestAdminDashboard(t *testing.T) {
	env := newEnv(t)
	student := token(t, studentEmail, models.RoleStudent)
	tutor := token(t, tutorEmail, models.RoleTutor)
	admin := token(t, "admin@example.com", models.RoleAdmin)

	env.checkout(t)
	paid := env.checkout(t)
	env.gateway.MarkPaid(paid.SessionID)
	code, _ := env.do(t, http.MethodGet, "/payments/success/"+paid.SessionID, student, nil)
	require.Equal(t, http.StatusOK, code)

	// paid today, so the previous month default leaves it out
	code, res := env.do(t, http.MethodGet, "/admin/revenue", admin, nil)
	require.Equal(t, http.StatusOK, code)
	var revenue models.Revenue
	require.NoError(t, json.Unmarshal(res.Data, &revenue))
	assert.Zero(t, revenue.Total)

	code, res = env.do(t, http.MethodGet, "/admin/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, code)
	var dashboard models.AdminDashboard
	require.NoError(t, json.Unmarshal(res.Data, &dashboard))
	assert.Equal(t, 2, dashboard.TotalPayments)
	assert.Equal(t, int64(500), dashboard.TotalRevenue)
	assert.Len(t, dashboard.RecentTransactions, 2)

	code, res = env.do(t, http.MethodGet, "/payments/earnings", tutor, nil)
	require.Equal(t, http.StatusOK, code)
	var earnings models.TutorEarnings
	require.NoError(t, json.Unmarshal(res.Data, &earnings))
	assert.Equal(t, int64(4500), earnings.TotalEarnings)
	assert.Equal(t, int64(4500), earnings.PendingEarnings)

	code, _ = env.do(t, http.MethodGet, "/admin/dashboard", tutor, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestConfirmErrors(t *testing.T) {
	env := newEnv(t)
	student := token(t, studentEmail, models.RoleStudent)

	code, res := env.do(t, http.MethodGet, "/payments/success/cs_unknown", student, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Session not found", res.Message)

	code, _ = env.do(t, http.MethodGet, "/payments/success/cs_unknown", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestGetPaymentVisibility(t *testing.T) {
	env := newEnv(t)
	env.checkout(t)
	id := env.store.Payments()[0].ID

	tests := []struct {
		name   string
		path   string
		bearer string
		want   int
	}{
		{"student", "/payments/" + id, token(t, studentEmail, models.RoleStudent), http.StatusOK},
		{"tutor", "/payments/" + id, token(t, tutorEmail, models.RoleTutor), http.StatusOK},
		{"admin", "/payments/" + id, token(t, "admin@example.com", models.RoleAdmin), http.StatusOK},
		{"stranger", "/payments/" + id, token(t, "other@example.com", models.RoleStudent), http.StatusForbidden},
		{"unknown", "/payments/" + uuid.NewString(), token(t, studentEmail, models.RoleStudent), http.StatusNotFound},
		{"malformed", "/payments/abc", token(t, studentEmail, models.RoleStudent), http.StatusBadRequest},
		{"receipt of pending payment", "/payments/" + id + "/receipt", token(t, studentEmail, models.RoleStudent), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := env.do(t, http.MethodGet, tt.path, tt.bearer, nil)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestRevenueValidation(t *testing.T) {
	env := newEnv(t)
	admin := token(t, "admin@example.com", models.RoleAdmin)

	code, _ := env.do(t, http.MethodGet, "/admin/revenue?from=2024-03-01&to=2024-02-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodGet, "/admin/revenue?from=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, res := env.do(t, http.MethodGet, "/admin/revenue", admin, nil)
	require.Equal(t, http.StatusOK, code)
	var revenue models.Revenue
	require.NoError(t, json.Unmarshal(res.Data, &revenue))
	assert.True(t, settlement.PreviousMonth(time.Now().UTC()).From.Equal(revenue.From))
}

func TestWebhookConfirmsPayment(t *testing.T) {
	env := newEnv(t)
	session := env.checkout(t)
	env.gateway.MarkPaid(session.SessionID)

	payload := fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2020-08-27","type":"checkout.session.completed","data":{"object":{"id":%q,"object":"checkout.session"}}}`, session.SessionID)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})

	r := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(signed.Payload))
	r.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PaymentStatusCompleted, env.store.Payments()[0].Status)

	r = httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(signed.Payload))
	r.Header.Set("Stripe-Signature", "t=1,v1=bad")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplicationLifecycle(t *testing.T) {
	env := newEnv(t)
	tutor := token(t, "new-tutor@example.com", models.RoleTutor)
	student := token(t, studentEmail, models.RoleStudent)

	body := map[string]interface{}{
		"tuitionId":      env.tuitionID,
		"qualifications": "BSc Physics",
		"experience":     "3 years",
		"expectedSalary": 4000,
	}
	code, res := env.do(t, http.MethodPost, "/applications", tutor, body)
	require.Equal(t, http.StatusCreated, code, res.Message)
	var application models.Application
	require.NoError(t, json.Unmarshal(res.Data, &application))
	assert.Equal(t, models.ApplicationStatusPending, application.Status)

	code, _ = env.do(t, http.MethodPost, "/applications", tutor, body)
	assert.Equal(t, http.StatusConflict, code)

	statusPath := "/applications/" + application.ID + "/status"
	code, _ = env.do(t, http.MethodPatch, statusPath, token(t, "other@example.com", models.RoleStudent), map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodPatch, statusPath, student, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPatch, statusPath, student, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPatch, statusPath, student, map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newEnv(t)

	code, res := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "New@Example.com",
		"name":     "New Student",
		"password": "s3cret-pass",
		"role":     "student",
	})
	require.Equal(t, http.StatusCreated, code, res.Message)
	var user models.User
	require.NoError(t, json.Unmarshal(res.Data, &user))
	assert.Equal(t, "new@example.com", user.Email)
	assert.NotEmpty(t, user.Token)
	assert.NotContains(t, string(res.Data), "s3cret-pass")

	code, _ = env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "new@example.com",
		"name":     "Again",
		"password": "s3cret-pass",
		"role":     "student",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "admin@example.com",
		"name":     "Sneaky",
		"password": "s3cret-pass",
		"role":     "admin",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "new@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(res.Data, &user))
	claims, ok := helpers.ParserTokenUnverified(user.Token)
	require.True(t, ok)
	assert.Equal(t, "student", claims["u"].(map[string]interface{})["role"])

	code, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "new@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

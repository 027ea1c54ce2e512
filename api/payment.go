package api

import (
	"net/http"
	"time"

	"bitbucket.org/etuitionbd/backend/config"
	"bitbucket.org/etuitionbd/backend/helpers"
	"bitbucket.org/etuitionbd/backend/logging"
	"bitbucket.org/etuitionbd/backend/middlewares"
	"bitbucket.org/etuitionbd/backend/models"
	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/thedevsaddam/govalidator"
)

const receiptURLTTL = 15 * time.Minute

var paginationRules = govalidator.MapData{
	"page":  []string{"numeric"},
	"limit": []string{"numeric"},
}

func decodePagination(w *middlewares.ResponseWriter, r *http.Request) (models.PaginationOpts, bool) {
	var opts models.PaginationOpts
	v := govalidator.New(govalidator.Options{Request: r, Rules: paginationRules})
	if errs := v.Validate(); len(errs) > 0 {
		w.Write(http.StatusBadRequest, errs, nil, middlewares.Responses.FailedValidations, middlewares.RequestLanguage(r))
		return opts, false
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&opts, r.URL.Query()); err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "invalid pagination")
		return opts, false
	}
	opts.Normalize()
	return opts, true
}

func CreateCheckoutSession(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	userInfo := middlewares.UserFromContext(r.Context())

	var opts models.CreateCheckoutSessionOpts
	validatorOpts := govalidator.Options{
		Request: r,
		Rules:   models.CreateCheckoutSessionRules,
		Data:    &opts,
	}
	v := govalidator.New(validatorOpts)
	errs := v.ValidateJSON()
	if len(errs) > 0 {
		w.Write(http.StatusBadRequest, errs, nil, middlewares.Responses.FailedValidations, middlewares.RequestLanguage(r))
		return
	}

	result, err := ctx.Settlement.CreateCheckoutSession(r.Context(), settlement.CheckoutRequest{
		ApplicationID: opts.ApplicationID,
		StudentEmail:  userInfo.Email,
	})
	if err != nil {
		w.Error(err)
		return
	}

	w.Created(models.CheckoutSession{
		SessionID: result.SessionID,
		URL:       result.URL,
	}, "Checkout session created")
}

// PaymentSuccess confirms the checkout session the gateway redirected the
// student back with. It is safe to call any number of times.
func PaymentSuccess(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	payment, err := ctx.Settlement.ConfirmPayment(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		w.Error(err)
		return
	}

	w.WriteJSON(http.StatusOK, payment, nil, "Payment verified successfully")
}

// PaymentWebhook confirms checkout sessions reported by Stripe.
func PaymentWebhook(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	sessionID, ok, err := ctx.Stripe.ParseWebhook(r)
	if err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "Invalid webhook")
		return
	}
	if !ok {
		w.WriteJSON(http.StatusOK, map[string]bool{"received": true}, nil, "Event ignored")
		return
	}

	payment, err := ctx.Settlement.ConfirmPayment(r.Context(), sessionID)
	if err != nil {
		w.Error(err)
		return
	}

	logging.FromContext(r.Context()).WithField("payment_id", payment.ID).Info("webhook processed")
	w.WriteJSON(http.StatusOK, map[string]bool{"received": true}, nil, "Webhook processed")
}

func GetMyPayments(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	userInfo := middlewares.UserFromContext(r.Context())

	page, ok := decodePagination(w, r)
	if !ok {
		return
	}

	payments, err := ctx.DB.GetPayments(r.Context(), models.PaymentFilter{StudentEmail: userInfo.Email}, page)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payments")
		return
	}

	w.Paginated(payments.Payments, models.NewPagination(page, payments.Total), "Payments fetched successfully")
}

func GetTutorEarnings(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	userInfo := middlewares.UserFromContext(r.Context())

	page, ok := decodePagination(w, r)
	if !ok {
		return
	}

	payments, err := ctx.DB.GetPayments(r.Context(), models.PaymentFilter{TutorEmail: userInfo.Email}, page)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payments")
		return
	}

	total, err := ctx.Settlement.TutorEarnings(r.Context(), userInfo.Email)
	if err != nil {
		w.Error(err)
		return
	}

	pending, err := ctx.Settlement.PendingEarnings(r.Context(), userInfo.Email)
	if err != nil {
		w.Error(err)
		return
	}

	w.WriteJSON(http.StatusOK, models.TutorEarnings{
		Payments:        payments.Payments,
		TotalEarnings:   total,
		PendingEarnings: pending,
		Meta:            models.NewPagination(page, payments.Total),
	}, nil, "Earnings fetched successfully")
}

func GetPayments(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	validatorOpts := govalidator.Options{
		Request: r,
		Rules:   models.GetPaymentsRules,
	}
	v := govalidator.New(validatorOpts)
	if errs := v.Validate(); len(errs) > 0 {
		w.Write(http.StatusBadRequest, errs, nil, middlewares.Responses.FailedValidations, middlewares.RequestLanguage(r))
		return
	}

	var opts models.GetPaymentsOpts
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&opts, r.URL.Query()); err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "invalid query")
		return
	}
	opts.Normalize()

	payments, err := ctx.DB.GetPayments(r.Context(), models.PaymentFilter{Status: models.PaymentStatus(opts.Status)}, opts.PaginationOpts)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payments")
		return
	}

	w.Paginated(payments.Payments, models.NewPagination(opts.PaginationOpts, payments.Total), "All payments fetched successfully")
}

// getVisiblePayment loads the payment of the id route variable and checks the
// caller is one of its parties or an admin. It answers itself on failure.
func getVisiblePayment(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) (*models.Payment, bool) {
	userInfo := middlewares.UserFromContext(r.Context())

	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "Invalid payment ID")
		return nil, false
	}

	payment, err := ctx.DB.GetPaymentByID(r.Context(), id)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payment")
		return nil, false
	}
	if payment == nil {
		w.Write(http.StatusNotFound, nil, nil, middlewares.Responses.PaymentNotFound, middlewares.RequestLanguage(r))
		return nil, false
	}

	if !userInfo.IsAdmin && !payment.HasParty(userInfo.Email) {
		w.Write(http.StatusForbidden, nil, nil, middlewares.Responses.InvalidRoles, middlewares.RequestLanguage(r))
		return nil, false
	}

	return payment, true
}

func GetPaymentByID(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	payment, ok := getVisiblePayment(ctx, w, r)
	if !ok {
		return
	}

	w.WriteJSON(http.StatusOK, payment, nil, "Payment fetched successfully")
}

// GetPaymentReceipt returns a short lived download URL of the receipt of a
// completed payment.
func GetPaymentReceipt(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	payment, ok := getVisiblePayment(ctx, w, r)
	if !ok {
		return
	}

	if !payment.IsCompleted() {
		w.WriteJSON(http.StatusBadRequest, nil, nil, "Receipts are only available for completed payments")
		return
	}

	if ctx.AwsSession == nil || ctx.Config.AwsS3.S3Bucket == "" {
		w.WriteJSON(http.StatusNotFound, nil, nil, "Receipts are not enabled")
		return
	}

	url, err := helpers.PresignS3File(ctx.AwsSession, ctx.Config.AwsS3.S3Bucket, models.ReceiptKey(payment.ID), receiptURLTTL)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed signing receipt url")
		return
	}

	w.WriteJSON(http.StatusOK, models.Receipt{URL: url}, nil, "Receipt fetched successfully")
}

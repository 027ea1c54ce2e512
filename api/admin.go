package api

import (
	"net/http"
	"time"

	"bitbucket.org/etuitionbd/backend/config"
	"bitbucket.org/etuitionbd/backend/helpers"
	"bitbucket.org/etuitionbd/backend/middlewares"
	"bitbucket.org/etuitionbd/backend/models"
	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/gorilla/schema"
	"github.com/thedevsaddam/govalidator"
)

const recentTransactions = 10

// GetDashboard reports the all-time platform revenue together with the latest
// payments.
func GetDashboard(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	payments, err := ctx.DB.GetPayments(r.Context(), models.PaymentFilter{}, models.PaginationOpts{Page: 1, Limit: recentTransactions})
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting payments")
		return
	}

	revenue, err := ctx.Settlement.PlatformEarnings(r.Context(), settlement.Window{})
	if err != nil {
		w.Error(err)
		return
	}

	w.WriteJSON(http.StatusOK, models.AdminDashboard{
		TotalPayments:      payments.Total,
		TotalRevenue:       revenue,
		RecentTransactions: payments.Payments,
	}, nil, "Dashboard stats fetched successfully")
}

// GetRevenue sums platform fees of payments completed in [from, to). Without
// dates it reports the previous calendar month.
func GetRevenue(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	validatorOpts := govalidator.Options{
		Request: r,
		Rules:   models.GetRevenueRules,
	}
	v := govalidator.New(validatorOpts)
	if errs := v.Validate(); len(errs) > 0 {
		w.Write(http.StatusBadRequest, errs, nil, middlewares.Responses.FailedValidations, middlewares.RequestLanguage(r))
		return
	}

	var opts models.GetRevenueOpts
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&opts, r.URL.Query()); err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "invalid query")
		return
	}

	window := settlement.PreviousMonth(time.Now().UTC())
	if opts.From != "" {
		window.From, _ = time.Parse(helpers.DateLayoutISO8601, opts.From)
	}
	if opts.To != "" {
		window.To, _ = time.Parse(helpers.DateLayoutISO8601, opts.To)
	}
	if !window.To.After(window.From) {
		w.WriteJSON(http.StatusBadRequest, nil, nil, "to must be after from")
		return
	}

	total, err := ctx.Settlement.PlatformEarnings(r.Context(), window)
	if err != nil {
		w.Error(err)
		return
	}

	w.WriteJSON(http.StatusOK, models.Revenue{
		From:  window.From,
		To:    window.To,
		Total: total,
	}, nil, "Revenue fetched successfully")
}

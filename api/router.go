package api

import (
	"net/http"

	"bitbucket.org/etuitionbd/backend/config"
	"bitbucket.org/etuitionbd/backend/middlewares"
	"bitbucket.org/etuitionbd/backend/models"
	"bitbucket.org/etuitionbd/backend/server"
)

var (
	students = []models.Role{models.RoleStudent}
	tutors   = []models.Role{models.RoleTutor}
	admins   = []models.Role{models.RoleAdmin}
)

// HealthcheckHandler indicates the service's healthy
func HealthcheckHandler(_ *config.AppContext, w *middlewares.ResponseWriter, _ *http.Request) {
	w.String(http.StatusOK, "OK")
}

// GetRoutes ...
func GetRoutes() []*server.Route {
	return []*server.Route{
		{Path: "/healthcheck", Methods: []string{"GET", "HEAD"}, Handler: HealthcheckHandler},

		// Auth
		{Path: "/auth/register", Methods: []string{"POST"}, Handler: Register},
		{Path: "/auth/login", Methods: []string{"POST"}, Handler: Login},

		// Tuition
		{Path: "/tuitions", Methods: []string{"POST"}, Handler: InsertTuition, Roles: students},
		{Path: "/tuitions/{id}", Methods: []string{"GET", "HEAD"}, Handler: GetTuition},

		// Application
		{Path: "/applications", Methods: []string{"POST"}, Handler: InsertApplication, Roles: tutors},
		{Path: "/applications/{id}/status", Methods: []string{"PATCH"}, Handler: UpdateApplicationStatus, Roles: students},

		// Payment
		{Path: "/payments/create-checkout-session", Methods: []string{"POST"}, Handler: CreateCheckoutSession, Roles: students},
		{Path: "/payments/success/{sessionId}", Methods: []string{"GET"}, Handler: PaymentSuccess, IsProtected: true},
		{Path: "/payments/webhook", Methods: []string{"POST"}, Handler: PaymentWebhook},
		{Path: "/payments/my", Methods: []string{"GET"}, Handler: GetMyPayments, Roles: students},
		{Path: "/payments/earnings", Methods: []string{"GET"}, Handler: GetTutorEarnings, Roles: tutors},
		{Path: "/payments", Methods: []string{"GET"}, Handler: GetPayments, Roles: admins},
		{Path: "/payments/{id}/receipt", Methods: []string{"GET"}, Handler: GetPaymentReceipt, IsProtected: true},
		{Path: "/payments/{id}", Methods: []string{"GET"}, Handler: GetPaymentByID, IsProtected: true},

		// Admin
		{Path: "/admin/dashboard", Methods: []string{"GET"}, Handler: GetDashboard, Roles: admins},
		{Path: "/admin/revenue", Methods: []string{"GET"}, Handler: GetRevenue, Roles: admins},
	}
}

package api

import (
	"net/http"
	"time"

	"bitbucket.org/etuitionbd/backend/config"
	"bitbucket.org/etuitionbd/backend/middlewares"
	"bitbucket.org/etuitionbd/backend/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/thedevsaddam/govalidator"
)

func InsertApplication(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	language := middlewares.RequestLanguage(r)
	userInfo := middlewares.UserFromContext(r.Context())

	var opts models.InsertApplicationOpts
	validatorOpts := govalidator.Options{
		Request: r,
		Rules:   models.InsertApplicationRules,
		Data:    &opts,
	}
	v := govalidator.New(validatorOpts)
	errs := v.ValidateJSON()
	if len(errs) > 0 {
		w.Write(http.StatusBadRequest, errs, nil, middlewares.Responses.FailedValidations, language)
		return
	}

	if _, err := uuid.Parse(opts.TuitionID); err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "Invalid tuition ID")
		return
	}

	tuition, err := ctx.DB.GetTuitionByID(r.Context(), opts.TuitionID)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting tuition")
		return
	}
	if tuition == nil {
		w.Write(http.StatusNotFound, nil, nil, middlewares.Responses.TuitionNotFound, language)
		return
	}

	count, err := ctx.DB.CountTutorApplications(r.Context(), tuition.ID, userInfo.Email)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed counting applications")
		return
	}
	if count > 0 {
		w.Write(http.StatusConflict, nil, nil, middlewares.Responses.AlreadyApplied, language)
		return
	}

	now := time.Now().UTC()
	application := &models.Application{
		ID:             uuid.NewString(),
		TuitionID:      tuition.ID,
		TutorEmail:     userInfo.Email,
		TutorName:      userInfo.Name,
		Qualifications: opts.Qualifications,
		Experience:     opts.Experience,
		ExpectedSalary: opts.ExpectedSalary,
		CoverLetter:    opts.CoverLetter,
		Status:         models.ApplicationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := ctx.DB.InsertApplication(r.Context(), application); err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed inserting application")
		return
	}

	w.Created(application, "Application submitted successfully")
}

// UpdateApplicationStatus lets the student owning the tuition approve or
// reject a pending application.
func UpdateApplicationStatus(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	language := middlewares.RequestLanguage(r)
	userInfo := middlewares.UserFromContext(r.Context())

	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "Invalid application ID")
		return
	}

	var opts models.UpdateApplicationStatusOpts
	validatorOpts := govalidator.Options{
		Request: r,
		Rules:   models.UpdateApplicationStatusRules,
		Data:    &opts,
	}
	v := govalidator.New(validatorOpts)
	errs := v.ValidateJSON()
	if len(errs) > 0 {
		w.Write(http.StatusBadRequest, errs, nil, middlewares.Responses.FailedValidations, language)
		return
	}

	application, err := ctx.DB.GetApplicationByID(r.Context(), id)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting application")
		return
	}
	if application == nil {
		w.Write(http.StatusNotFound, nil, nil, middlewares.Responses.ApplicationNotFound, language)
		return
	}

	tuition, err := ctx.DB.GetTuitionByID(r.Context(), application.TuitionID)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting tuition")
		return
	}
	if tuition == nil {
		w.Write(http.StatusNotFound, nil, nil, middlewares.Responses.TuitionNotFound, language)
		return
	}
	if !tuition.IsOwner(userInfo.Email) {
		w.WriteJSON(http.StatusForbidden, nil, nil, "You can only manage applications of your own tuitions")
		return
	}

	now := time.Now().UTC()
	status := models.ApplicationStatus(opts.Status)
	updated, err := ctx.DB.UpdateApplicationStatus(r.Context(), application.ID, models.ApplicationStatusPending, status, now)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed updating application")
		return
	}
	if !updated {
		w.Write(http.StatusBadRequest, nil, nil, middlewares.Responses.InvalidStatusChange, language)
		return
	}

	application.Status = status
	application.UpdatedAt = now
	w.WriteJSON(http.StatusOK, application, nil, "Application updated successfully")
}

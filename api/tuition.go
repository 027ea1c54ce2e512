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

func InsertTuition(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	language := middlewares.RequestLanguage(r)
	userInfo := middlewares.UserFromContext(r.Context())

	var opts models.InsertTuitionOpts
	validatorOpts := govalidator.Options{
		Request: r,
		Rules:   models.InsertTuitionRules,
		Data:    &opts,
	}
	v := govalidator.New(validatorOpts)
	errs := v.ValidateJSON()
	if len(errs) > 0 {
		w.Write(http.StatusBadRequest, errs, nil, middlewares.Responses.FailedValidations, language)
		return
	}

	now := time.Now().UTC()
	tuition := &models.Tuition{
		ID:           uuid.NewString(),
		StudentEmail: userInfo.Email,
		StudentName:  userInfo.Name,
		Subject:      opts.Subject,
		Class:        opts.Class,
		Location:     opts.Location,
		Budget:       opts.Budget,
		Schedule:     opts.Schedule,
		Description:  opts.Description,
		Requirements: opts.Requirements,
		Status:       models.TuitionStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := ctx.DB.InsertTuition(r.Context(), tuition); err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed inserting tuition")
		return
	}

	w.Created(tuition, "Tuition created successfully")
}

func GetTuition(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	language := middlewares.RequestLanguage(r)

	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		w.WriteJSON(http.StatusBadRequest, nil, err, "Invalid tuition ID")
		return
	}

	tuition, err := ctx.DB.GetTuitionByID(r.Context(), id)
	if err != nil {
		w.WriteJSON(http.StatusInternalServerError, nil, err, "failed getting tuition")
		return
	}

	if tuition == nil {
		w.Write(http.StatusNotFound, nil, nil, middlewares.Responses.TuitionNotFound, language)
		return
	}

	w.WriteJSON(http.StatusOK, tuition, nil, "Tuition fetched successfully")
}

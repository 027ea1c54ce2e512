package api

import (
	"net/http"
	"strings"
	"time"

	"bitbucket.org/etuitionbd/backend/config"
	"bitbucket.org/etuitionbd/backend/helpers"
	"bitbucket.org/etuitionbd/backend/middlewares"
	"bitbucket.org/etuitionbd/backend/models"
	"github.com/google/uuid"
	"github.com/thedevsaddam/govalidator"
)

func Register(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	language := middlewares.RequestLanguage(r)

	var opts models.RegisterOpts
	validatorOpts := govalidator.Options{
		Request: r,
		Rules:   models.RegisterRules,
		Data:    &opts,
	}
	v := govalidator.New(validatorOpts)
	errs := v.ValidateJSON()
	if len(errs) > 0 {
		w.Write(http.StatusBadRequest, errs, nil, middlewares.Responses.FailedValidations, language)
		return
	}
	opts.Email = strings.ToLower(strings.TrimSpace(opts.Email))

	existing, err := ctx.DB.GetUserByEmail(r.Context(), opts.Email)
	if err != nil {
		w.Write(http.StatusInternalServerError, nil, err, middlewares.Responses.InternalServerError, language)
		return
	}
	if existing != nil {
		w.WriteJSON(http.StatusConflict, nil, nil, "Email already registered")
		return
	}

	password, err := helpers.HashPassword(opts.Password)
	if err != nil {
		w.Write(http.StatusInternalServerError, nil, err, middlewares.Responses.InternalServerError, language)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     opts.Email,
		Name:      opts.Name,
		Role:      models.Role(opts.Role),
		Status:    models.UserStatusActive,
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ctx.DB.InsertUser(r.Context(), user); err != nil {
		w.Write(http.StatusInternalServerError, nil, err, middlewares.Responses.InternalServerError, language)
		return
	}

	user.Token, err = helpers.GenerateToken(user, ctx.Config.JWTSecret, now)
	if err != nil {
		w.Write(http.StatusInternalServerError, nil, err, middlewares.Responses.InternalServerError, language)
		return
	}

	setAuthCookie(ctx, w, user.Token, now)
	w.Created(user, "User registered successfully")
}

func Login(ctx *config.AppContext, w *middlewares.ResponseWriter, r *http.Request) {
	language := middlewares.RequestLanguage(r)

	var opts models.LoginOpts
	validatorOpts := govalidator.Options{
		Request: r,
		Rules:   models.LoginRules,
		Data:    &opts,
	}
	v := govalidator.New(validatorOpts)
	errs := v.ValidateJSON()
	if len(errs) > 0 {
		w.Write(http.StatusBadRequest, errs, nil, middlewares.Responses.FailedValidations, language)
		return
	}

	user, err := ctx.DB.GetUserLoginByEmail(r.Context(), strings.ToLower(strings.TrimSpace(opts.Email)))
	if err != nil {
		w.Write(http.StatusInternalServerError, nil, err, middlewares.Responses.InternalServerError, language)
		return
	}

	if user == nil || !helpers.AuthenticateHashedPassword(user.Password, opts.Password) {
		w.Write(http.StatusUnauthorized, nil, nil, middlewares.Responses.InvalidCredentials, language)
		return
	}

	now := time.Now().UTC()
	user.Token, err = helpers.GenerateToken(user, ctx.Config.JWTSecret, now)
	if err != nil {
		w.Write(http.StatusInternalServerError, nil, err, middlewares.Responses.InternalServerError, language)
		return
	}

	setAuthCookie(ctx, w, user.Token, now)
	w.WriteJSON(http.StatusOK, user, nil, "Login successful")
}

func setAuthCookie(ctx *config.AppContext, w *middlewares.ResponseWriter, token string, now time.Time) {
	http.SetCookie(w.Writer, &http.Cookie{
		Name:     middlewares.AuthCookie,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(helpers.TokenTTL),
		HttpOnly: true,
		Secure:   ctx.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

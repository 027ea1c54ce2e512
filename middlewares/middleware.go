package middlewares

import (
	"context"
	"net/http"
	"strings"

	"bitbucket.org/etuitionbd/backend/helpers"
	"bitbucket.org/etuitionbd/backend/logging"
	"bitbucket.org/etuitionbd/backend/models"
	"github.com/dgrijalva/jwt-go"
	"github.com/lithammer/shortuuid/v3"
	jwtmiddleware "github.com/mfuentesg/go-jwtmiddleware"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

const (
	AuthCookie      = "auth_token"
	RequestIDHeader = "X-Request-ID"
)

type userCtxKey struct{}

func jwtErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r, false)
	message := Responses.Unauthorized.In(RequestLanguage(r))
	if err != nil && err.Error() == "Token is expired" {
		message = "Token is expired"
	}
	rw.WriteJSON(http.StatusUnauthorized, nil, err, message)
}

func NewJWTMiddleware(secret []byte) *jwtmiddleware.Middleware {
	return jwtmiddleware.New(
		jwtmiddleware.WithErrorHandler(jwtErrorHandler),
		jwtmiddleware.WithSigningMethod(jwt.SigningMethodHS256),
		jwtmiddleware.WithSignKey(secret),
		jwtmiddleware.WithUserProperty("_jwt-token"),
	)
}

// LoggerRequest attaches a request scoped logger to the context.
func LoggerRequest(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = shortuuid.New()
	}
	rw.Header().Set(RequestIDHeader, requestID)

	requestLogger := log.WithFields(log.Fields{
		"request_id": requestID,
		"method":     r.Method,
		"url":        r.URL.Path,
		"host":       r.Host,
	})
	requestLogger.Info("logger_request")

	next(rw, r.WithContext(logging.WithLogger(r.Context(), requestLogger)))
}

// bearerToken finds the token in the Authorization header, the auth cookie or
// the token query parameter, in that order.
func bearerToken(r *http.Request) string {
	token := strings.Split(r.Header.Get("Authorization"), " ")
	if len(token) == 2 && strings.EqualFold(token[0], "bearer") {
		return token[1]
	}
	if cookie, err := r.Cookie(AuthCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// UserMiddleware normalizes the token into the Authorization header, for the
// JWT middleware to verify, and decodes the caller identity into the context.
func UserMiddleware() negroni.HandlerFunc {
	return negroni.HandlerFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			next(rw, r)
			return
		}
		r.Header.Set("Authorization", "Bearer "+tokenString)

		data, ok := helpers.ParserTokenUnverified(tokenString)
		if !ok {
			next(rw, r)
			return
		}
		claims, ok := data["u"].(map[string]interface{})
		if !ok {
			next(rw, r)
			return
		}

		var userInfo models.InfoUser
		if err := mapstructure.Decode(map[string]interface{}{
			"Email": claims["email"],
			"Name":  claims["name"],
			"Role":  claims["role"],
		}, &userInfo); err != nil {
			logging.FromContext(r.Context()).WithError(err).Warn("failed decoding token claims")
			next(rw, r)
			return
		}
		userInfo.IsAdmin = userInfo.Role == string(models.RoleAdmin)
		userInfo.IsStudent = userInfo.Role == string(models.RoleStudent)
		userInfo.IsTutor = userInfo.Role == string(models.RoleTutor)

		logger := logging.FromContext(r.Context()).WithField("user", userInfo.Email)
		ctx := logging.WithLogger(WithUser(r.Context(), userInfo), logger)
		next(rw, r.WithContext(ctx))
	})
}

func WithUser(ctx context.Context, user models.InfoUser) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// UserFromContext returns the caller identity. The zero value means
// anonymous.
func UserFromContext(ctx context.Context) models.InfoUser {
	user, _ := ctx.Value(userCtxKey{}).(models.InfoUser)
	return user
}

// RequireRoles rejects callers whose role is not one of roles.
func RequireRoles(roles ...models.Role) negroni.HandlerFunc {
	return negroni.HandlerFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		user := UserFromContext(r.Context())
		for _, role := range roles {
			if user.Role == string(role) {
				next(rw, r)
				return
			}
		}

		NewResponseWriter(rw, r, false).WriteJSON(http.StatusForbidden, nil, nil, Responses.InvalidRoles.In(RequestLanguage(r)))
	})
}

package middlewares

import (
	"encoding/json"
	"fmt"
	"net/http"

	"bitbucket.org/etuitionbd/backend/logging"
	"bitbucket.org/etuitionbd/backend/models"
	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type ResponseWriter struct {
	Writer http.ResponseWriter
	Logger *log.Entry
	// Debug adds the error chain with its stack to 500 responses.
	Debug bool
}

func NewResponseWriter(w http.ResponseWriter, r *http.Request, debug bool) *ResponseWriter {
	return &ResponseWriter{
		Writer: w,
		Logger: logging.FromContext(r.Context()),
		Debug:  debug,
	}
}

type generalResponse struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message,omitempty"`
	Data       interface{}        `json:"data,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Errors     interface{}        `json:"errors,omitempty"`
	Stack      string             `json:"stack,omitempty"`
}

func (r *ResponseWriter) logger() *log.Entry {
	if r.Logger == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return r.Logger
}

func (r *ResponseWriter) writeJSONResponse(code int, response *generalResponse) {
	b, err := json.Marshal(response)
	if err != nil {
		r.logger().WithError(err).Error("failed encoding response")
		r.Writer.WriteHeader(http.StatusInternalServerError)
		r.Writer.Write([]byte(fmt.Sprintf("unexpected error: %v", err)))
		return
	}

	r.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	r.Writer.WriteHeader(code)
	if _, err := r.Writer.Write(b); err != nil {
		r.logger().WithError(err).Warn("could not write response")
	}
}

// WriteJSON answers with the standard envelope. Codes from 300 up are logged
// as failures with err and validation details in data.
func (r *ResponseWriter) WriteJSON(statusCode int, data interface{}, err error, message string) {
	fields := log.Fields{"status_code": statusCode}
	if statusCode < 300 {
		r.logger().WithFields(fields).Info("success")
		r.writeJSONResponse(statusCode, &generalResponse{Success: true, Message: message, Data: data})
		return
	}

	if err == nil {
		err = errors.New(message)
	}
	response := &generalResponse{Message: message, Errors: data}
	if statusCode >= http.StatusInternalServerError && r.Debug {
		response.Stack = fmt.Sprintf("%+v", err)
	}
	if data != nil {
		fields["errors"] = data
	}
	r.logger().WithFields(fields).WithError(err).Error(message)
	r.writeJSONResponse(statusCode, response)
}

func (r *ResponseWriter) Created(data interface{}, message string) {
	r.WriteJSON(http.StatusCreated, data, nil, message)
}

func (r *ResponseWriter) Paginated(data interface{}, pagination *models.Pagination, message string) {
	r.logger().WithFields(log.Fields{"status_code": http.StatusOK, "total": pagination.Total}).Info("success")
	r.writeJSONResponse(http.StatusOK, &generalResponse{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: pagination,
	})
}

// Error answers with the status matching the kind of err. Unknown errors are
// 500 with a generic message.
func (r *ResponseWriter) Error(err error) {
	var settlementErr *settlement.Error
	if errors.As(err, &settlementErr) {
		r.WriteJSON(StatusFor(err), nil, err, settlementErr.Message)
		return
	}
	r.WriteJSON(http.StatusInternalServerError, nil, err, Responses.InternalServerError.In(Language.English))
}

// StatusFor maps the settlement error taxonomy to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, settlement.ErrInvalidReference),
		errors.Is(err, settlement.ErrInvalidState),
		errors.Is(err, settlement.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, settlement.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Write answers with the message of rm in the request language.
func (r *ResponseWriter) Write(statusCode int, data interface{}, err error, rm *NewRM, language string) {
	r.WriteJSON(statusCode, data, err, rm.In(language))
}

func (r *ResponseWriter) String(code int, msg string) {
	r.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	r.Writer.WriteHeader(code)
	if _, err := r.Writer.Write([]byte(msg)); err != nil {
		r.logger().WithError(err).Warn("could not write response")
	}
}

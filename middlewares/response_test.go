package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/etuitionbd/backend/models"
	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid reference", &settlement.Error{Kind: settlement.ErrInvalidReference}, http.StatusBadRequest},
		{"invalid state", &settlement.Error{Kind: settlement.ErrInvalidState}, http.StatusBadRequest},
		{"invalid amount", &settlement.Error{Kind: settlement.ErrInvalidAmount}, http.StatusBadRequest},
		{"not found", &settlement.Error{Kind: settlement.ErrNotFound}, http.StatusNotFound},
		{"forbidden", &settlement.Error{Kind: settlement.ErrForbidden}, http.StatusForbidden},
		{"gateway", &settlement.Error{Kind: settlement.ErrGateway}, http.StatusInternalServerError},
		{"wrapped", errors.Wrap(&settlement.Error{Kind: settlement.ErrNotFound}, "confirming"), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorUsesSettlementMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec, httptest.NewRequest(http.MethodGet, "/", nil), true)

	rw.Error(&settlement.Error{Kind: settlement.ErrForbidden, Message: "Not your tuition"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Not your tuition", body["message"])
	assert.NotContains(t, body, "stack")
}

func TestErrorHidesInternalDetails(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantStack bool
	}{
		{"production", false, false},
		{"development", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rw := NewResponseWriter(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.debug)

			rw.Error(errors.New("connection refused"))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decodeEnvelope(t, rec)
			assert.Equal(t, "Internal server error", body["message"])
			if tt.wantStack {
				assert.Contains(t, body["stack"], "connection refused")
			} else {
				assert.NotContains(t, body, "stack")
			}
		})
	}
}

func TestWriteJSONSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec, httptest.NewRequest(http.MethodGet, "/", nil), false)

	rw.Created(map[string]string{"sessionId": "cs_1"}, "Checkout session created")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	body := decodeEnvelope(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]interface{}{"sessionId": "cs_1"}, body["data"])
	assert.NotContains(t, body, "errors")
}

func TestPaginatedEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec, httptest.NewRequest(http.MethodGet, "/", nil), false)

	rw.Paginated([]string{"a", "b"}, models.NewPagination(models.PaginationOpts{Page: 2, Limit: 2}, 5), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, map[string]interface{}{
		"page":       float64(2),
		"limit":      float64(2),
		"total":      float64(5),
		"totalPages": float64(3),
	}, body["pagination"])
}

func TestValidationErrorsGoUnderErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec, httptest.NewRequest(http.MethodGet, "/", nil), false)

	rw.Write(http.StatusBadRequest, map[string][]string{"applicationId": {"required"}}, nil, Responses.FailedValidations, Language.Bengali)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "ফিল্ড যাচাই ব্যর্থ হয়েছে", body["message"])
	assert.Equal(t, map[string]interface{}{"applicationId": []interface{}{"required"}}, body["errors"])
}

func TestRequestLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", Language.English},
		{"bn-BD,bn;q=0.9", Language.Bengali},
		{"fr-FR,en;q=0.5", Language.English},
		{"de", Language.English},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Accept-Language", tt.header)
			assert.Equal(t, tt.want, RequestLanguage(r))
		})
	}
}

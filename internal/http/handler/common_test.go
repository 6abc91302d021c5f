package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJSONFieldName(t *testing.T) {
	cases := map[string]string{
		"PlateNumber":         "plate_number",
		"UseExistingCustomer": "use_existing_customer",
		"Email":               "email",
		"ID":                  "i_d",
	}
	for in, want := range cases {
		assert.Equal(t, want, toJSONFieldName(in), in)
	}
}

func TestRespondServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrapped: %w", service.ErrNotFound), http.StatusNotFound},
		{service.ErrInvalidInput, http.StatusBadRequest},
		{service.ErrOrderNotOpen, http.StatusConflict},
		{service.ErrConflict, http.StatusConflict},
		{service.ErrNoBranch, http.StatusForbidden},
		{service.ErrUnauthorized, http.StatusForbidden},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		respondServiceError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestRespondServiceErrorValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, service.NewValidationError(map[string]string{
		"phone": "Customer phone is required",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr domain.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
	assert.Equal(t, "Customer phone is required", apiErr.Errors["phone"])
}

func TestRespondWithErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	respondWithError(rec, http.StatusNotFound, "order not found")

	var apiErr domain.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "order not found", apiErr.Detail)
	assert.Equal(t, domain.ErrorTypeNotFound, apiErr.Type)
}

// Package respond maps service results and domain errors onto HTTP JSON
// responses. Handlers stay thin: decode, call the service, respond.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/kevin07696/subscription-service/internal/domain"
)

// ErrorBody is the JSON error envelope
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes v as a JSON response with the given status
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes a domain error mapped onto the matching HTTP status
func Error(w http.ResponseWriter, err error) {
	JSON(w, StatusFor(err), ErrorBody{
		Error: err.Error(),
		Code:  string(domain.GetErrorCode(err)),
	})
}

// StatusFor maps the domain error taxonomy onto HTTP status codes
func StatusFor(err error) int {
	switch code := domain.GetErrorCode(err); {
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsConflictError(err):
		// Illegal lifecycle transitions are client mistakes, not contention
		return http.StatusBadRequest
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case code == domain.ErrorCodeWebhookMalformed:
		return http.StatusBadRequest
	case code == domain.ErrorCodeGatewayTimeout:
		return http.StatusGatewayTimeout
	case domain.IsGatewayError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

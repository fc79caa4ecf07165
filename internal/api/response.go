package api

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Error codes
const (
	CodeNotFound        = "not_found"
	CodeValidationError = "validation_error"
	CodeInternalError   = "internal_error"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logrus.WithError(err).Error("Failed to encode JSON response")
		}
	}
}

// RespondPage writes one page of a listing with its pagination metadata.
func RespondPage(w http.ResponseWriter, data interface{}, p PaginationParams, total int64) {
	RespondJSON(w, http.StatusOK, PaginatedResponse{
		Data: data,
		Pagination: PaginationMeta{
			Page:       p.Page,
			PerPage:    p.PerPage,
			Total:      total,
			TotalPages: p.TotalPages(total),
		},
	})
}

// RespondError writes a standard error response.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondErrorWithCode writes an error response with a machine-readable code.
func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondNotFound writes a 404 with the not_found code.
func RespondNotFound(w http.ResponseWriter, message string) {
	RespondErrorWithCode(w, http.StatusNotFound, CodeNotFound, message)
}

// RespondInternalError logs err and writes a 500 that does not leak it.
func RespondInternalError(w http.ResponseWriter, logger logrus.FieldLogger, err error) {
	logger.WithError(err).Error("Request failed")
	RespondErrorWithCode(w, http.StatusInternalServerError, CodeInternalError, "internal server error")
}

// RespondValidationError writes field-level validation errors as a 422 response.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    CodeValidationError,
		Details: fieldErrors,
	})
}

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/etf-dashboard/internal/errors"
	"github.com/etf-dashboard/internal/logging"
	"github.com/etf-dashboard/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// retryAfterSeconds is advertised on provider and storage failures
const retryAfterSeconds = 5

// respondServiceError maps a service error onto its status code and wire body.
// Server side failures are logged and their cause is not exposed.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	retryable := apperrors.IsRetryable(catErr)
	if retryable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}

	logger := logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"code":      catErr.Code,
		"category":  catErr.Category,
		"retryable": retryable,
	}).WithError(err)
	if catErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("Request failed")
	} else {
		logger.Debug("Request rejected")
	}

	svcErr := catErr.ToServiceError()
	respondError(w, catErr.StatusCode, svcErr.Code, svcErr.Message, svcErr.Details)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

const maxBodyBytes = 1 << 16

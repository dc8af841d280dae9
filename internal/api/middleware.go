package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	serviceErrors "github.com/openbuilders/highload-sender/internal/errors"
)

// WithMethod is a middleware that checks if the endpoint was called using a
// specific HTTP method and rejects it otherwise.
func WithMethod(next http.HandlerFunc, method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, fmt.Sprintf("Only %s method is allowed", method), http.StatusMethodNotAllowed)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// WithJSONResponse wraps an APIHandler and handles JSON response formatting
func WithJSONResponse(handler APIHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Call the handler to get data or error
		data, err := handler(w, r)

		// Set the Content-Type header
		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			errorResponse, status := toErrorResponse(err)

			slog.Debug("API error", "error", err, "status", status)

			w.WriteHeader(status)

			// Encode and send the error response
			if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
				slog.Error("Failed to encode error response", "error", err)
			}
			return
		}

		// Create the success response
		successResponse := SuccessResponse{
			Ok:   true,
			Data: data,
		}

		// Encode and send the success response
		if err := json.NewEncoder(w).Encode(successResponse); err != nil {
			http.Error(w, `{"ok": false, "errorCode": "internal_error", "errorDescription": "Failed to encode success response"}`, http.StatusInternalServerError)
			return
		}
	}
}

func toErrorResponse(err error) (*ErrorResponse, int) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &ErrorResponse{
			ErrorCode:        string(apiErr.Code),
			ErrorDescription: apiErr.Description,
		}, apiErr.status()
	}

	var serviceErr serviceErrors.ServiceError
	if errors.As(err, &serviceErr) {
		slog.Debug("ServiceError", "error", serviceErr, "stack", serviceErr.Err)
		return &ErrorResponse{
			ErrorCode:        string(serviceErr.Code),
			ErrorDescription: serviceErr.Message,
		}, http.StatusUnprocessableEntity
	}

	return &ErrorResponse{
		ErrorCode:        string(InternalError),
		ErrorDescription: err.Error(),
	}, http.StatusInternalServerError
}

package api

import "net/http"

type APIErrorCode string

const (
	InvalidRequest  APIErrorCode = "invalid_request"
	EnqueueingError APIErrorCode = "enqueueing_error"
	NotFound        APIErrorCode = "not_found"
	InternalError   APIErrorCode = "internal_error"
	Unhealthy       APIErrorCode = "unhealthy"
	SubmissionError APIErrorCode = "submission_error"
)

// APIError represents a custom error with a code and description
type APIError struct {
	Code        APIErrorCode
	Description string
}

// Implement the error interface for APIError
func (e *APIError) Error() string {
	return string(e.Code)
}

func (e *APIError) status() int {
	switch e.Code {
	case InvalidRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unhealthy:
		return http.StatusServiceUnavailable
	case SubmissionError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/openbuilders/highload-sender/internal/repository/postgres"
	"github.com/openbuilders/highload-sender/internal/types"

	"github.com/google/uuid"
)

const maxRequestBody = 1 << 20

type SendResponse struct {
	RequestID string `json:"request_id"`
	Transfers int    `json:"transfers"`
}

// SendHandler validates a send request and puts it into the queue. The
// request id is generated when the caller didn't provide one.
func (s *Server) SendHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	s.log.Info("Accepted a new send request")

	bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.log.Error("Unable to read request body", "error", err)
		return nil, &APIError{Code: InvalidRequest, Description: err.Error()}
	}
	defer r.Body.Close()

	var req types.SendRequest

	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		return nil, &APIError{
			Code:        InvalidRequest,
			Description: fmt.Sprintf("request unmarshalling error: %v", err),
		}
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	if err := req.Validate(); err != nil {
		return nil, &APIError{Code: InvalidRequest, Description: err.Error()}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("request marshalling error: %w", err)
	}

	if err := s.publisher.Publish(r.Context(), payload); err != nil {
		s.log.Error(
			"couldn't enqueue request",
			"request_id", req.RequestID,
			"error", err,
		)

		return nil, &APIError{Code: EnqueueingError}
	}

	return SendResponse{RequestID: req.RequestID, Transfers: len(req.Transfers)}, nil
}

// MessageHandler returns the tracked state of an external message by its
// hex hash.
func (s *Server) MessageHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	hash := r.URL.Query().Get("hash")
	if hash == "" {
		return nil, &APIError{Code: InvalidRequest, Description: "hash is required"}
	}

	msg, err := s.messages.GetMessage(r.Context(), hash)
	if errors.Is(err, postgres.ErrNotFound) {
		return nil, &APIError{Code: NotFound}
	}
	if err != nil {
		s.log.Error("couldn't get message", "hash", hash, "error", err)
		return nil, &APIError{Code: InternalError}
	}

	return msg, nil
}

package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	serviceErrors "github.com/openbuilders/highload-sender/internal/errors"
	"github.com/openbuilders/highload-sender/internal/sender"

	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

type MessageSender interface {
	SendMessage(ctx context.Context, msg *cell.Cell, mode uint8) (*sender.Result, error)
}

type SendBOCRequest struct {
	// BOC is a base64 encoded internal MessageRelaxed.
	BOC string `json:"boc"`
	// Mode defaults to the mode of batch transfers.
	Mode *uint8 `json:"mode,omitempty"`
}

type SendBOCResponse struct {
	Hash    string `json:"hash"`
	QueryID uint64 `json:"query_id"`
	Status  string `json:"status"`
}

// SendBOCHandler signs a prebuilt internal message with the wallet key and
// submits it right away, bypassing the queue.
func (s *Server) SendBOCHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return nil, &APIError{Code: InvalidRequest, Description: err.Error()}
	}
	defer r.Body.Close()

	var req SendBOCRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		return nil, &APIError{
			Code:        InvalidRequest,
			Description: fmt.Sprintf("request unmarshalling error: %v", err),
		}
	}

	msg, err := parseMessageBOC(req.BOC)
	if err != nil {
		return nil, &APIError{Code: InvalidRequest, Description: err.Error()}
	}

	mode := sender.TransferMode
	if req.Mode != nil {
		mode = *req.Mode
	}

	result, err := s.sender.SendMessage(r.Context(), msg, mode)

	var serviceErr serviceErrors.ServiceError
	switch {
	case err == nil:
	case result != nil:
		s.log.Error("couldn't submit message", "hash", result.Hash, "error", err)
		return nil, &APIError{Code: SubmissionError, Description: result.Hash}
	case errors.As(err, &serviceErr):
		return nil, err
	default:
		s.log.Error("couldn't send message", "error", err)
		return nil, &APIError{Code: InternalError}
	}

	return SendBOCResponse{
		Hash:    result.Hash,
		QueryID: result.QueryID.Uint64(),
		Status:  string(result.Status),
	}, nil
}

func parseMessageBOC(boc string) (*cell.Cell, error) {
	if boc == "" {
		return nil, fmt.Errorf("boc is required")
	}

	raw, err := base64.StdEncoding.DecodeString(boc)
	if err != nil {
		return nil, fmt.Errorf("boc is not base64: %w", err)
	}

	msg, err := cell.FromBOC(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid boc: %w", err)
	}

	var internal tlb.InternalMessage
	if err := tlb.LoadFromCell(&internal, msg.BeginParse()); err != nil {
		return nil, fmt.Errorf("boc is not an internal message: %w", err)
	}

	return msg, nil
}

package highload

import (
	"github.com/openbuilders/highload-sender/internal/errors"
)

const (
	CodeRange         errors.ErrorCode = "query_id_out_of_range"
	CodeExhausted     errors.ErrorCode = "query_id_exhausted"
	CodeLimitExceeded errors.ErrorCode = "action_limit_exceeded"
	CodeEncoding      errors.ErrorCode = "encoding_error"
	CodeSignature     errors.ErrorCode = "signature_error"
)

// Sentinels to match with errors.Is, the returned errors carry the details.
var (
	ErrRange         = errors.ServiceError{Code: CodeRange, Message: "query id out of range"}
	ErrExhausted     = errors.ServiceError{Code: CodeExhausted, Message: "query id space exhausted"}
	ErrLimitExceeded = errors.ServiceError{Code: CodeLimitExceeded, Message: "too many actions"}
	ErrEncoding      = errors.ServiceError{Code: CodeEncoding, Message: "field is not representable"}
	ErrSignature     = errors.ServiceError{Code: CodeSignature, Message: "malformed key"}
)

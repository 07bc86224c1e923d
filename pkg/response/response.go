package response

import "errors"

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST    ErrCode = "REQUEST_FAILED"
	BAD_REQUEST       ErrCode = "FAILED_TO_DECODE"
	VALIDATION_FAILED ErrCode = "VALIDATION_FAILED"
	NOT_FOUND         ErrCode = "NOT_FOUND"
	LOCKED            ErrCode = "LOCKED"
	CONFLICT          ErrCode = "CONFLICT"
	SLOT_TAKEN        ErrCode = "SLOT_TAKEN"
)

var (
	ErrBadRequest          = errors.New("bad request")
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("resource not found")
	ErrLocked              = errors.New("resource is locked")
	ErrAlreadyExists       = errors.New("resource already exists")
	ErrConstraintViolation = errors.New("slot is already taken")
	ErrTransport           = errors.New("transport failure")
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

// Retryable reports whether err is worth retrying as-is: transport failures
// and lock contention. Validation and constraint errors need a different
// request.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrLocked)
}

package response

import "errors"

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

//Error Codes
type ErrCode string

var (
	FAILED_REQUEST     ErrCode = "REQUEST_FAILED"
	BAD_REQUEST        ErrCode = "FAILED_TO_DECODE"
	NOT_FOUND          ErrCode = "NOT_FOUND"
	LOCKED             ErrCode = "LOCKED"
	CONFLICT           ErrCode = "CONFLICT"
	SLOT_NOT_AVAILABLE ErrCode = "SLOT_NOT_AVAILABLE"
	VALIDATION_FAILED  ErrCode = "VALIDATION_FAILED"
	IN_FLIGHT          ErrCode = "CONFIRMATION_IN_FLIGHT"
)

var (
	ErrBadRequest           = errors.New("bad request")
	ErrNotFound             = errors.New("resource not found")
	ErrLocked               = errors.New("resource is locked")
	ErrConflict             = errors.New("conflict")
	ErrSlotNotAvailable     = errors.New("slot is not available")
	ErrValidation           = errors.New("validation failed")
	ErrDuplicateRequest     = errors.New("duplicate request id")
	ErrConfirmationInFlight = errors.New("confirmation already in flight")
)

// ValidationError carries the first failing business-rule check so handlers
// can surface the concrete reason to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Validation(reason string) error {
	return &ValidationError{Reason: reason}
}

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

package errors

import (
	"github.com/mezonai/mmn-faucet/jsonx"
)

// FaucetErrorCode represents standardized error codes for faucet operations
type FaucetErrorCode string

const (
	// General errors
	ErrCodeInternal FaucetErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidRequest FaucetErrorCode = "invalid_request"
	ErrCodeInvalidAddress FaucetErrorCode = "invalid_address"

	// Intake rejections
	ErrCodeRecaptchaFailed FaucetErrorCode = "recaptcha_failed"
	ErrCodeRateLimited     FaucetErrorCode = "rate_limited"
	ErrCodeBackpressure    FaucetErrorCode = "backpressure"

	// Dispatch failures
	ErrCodeSubmissionRejected  FaucetErrorCode = "submission_rejected"
	ErrCodeChainUnavailable    FaucetErrorCode = "chain_unavailable"
	ErrCodeConfirmationTimeout FaucetErrorCode = "confirmation_timeout"

	// Lookup errors
	ErrCodeRequestNotFound FaucetErrorCode = "request_not_found"
)

// FaucetError is a machine readable error carried back to whichever
// front-end created the request.
type FaucetError struct {
	Code    FaucetErrorCode `json:"code"`
	Message string          `json:"message"`
}

// Error implements the error interface
func (e *FaucetError) Error() string {
	err, _ := jsonx.Marshal(FaucetError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// NewFaucetError creates a standardized faucet error
func NewFaucetError(code FaucetErrorCode, message string) *FaucetError {
	return &FaucetError{
		Code:    code,
		Message: message,
	}
}

// CodeOf extracts the faucet error code from err, or ErrCodeInternal when err
// carries no code.
func CodeOf(err error) FaucetErrorCode {
	if err == nil {
		return ""
	}
	if fe, ok := err.(*FaucetError); ok {
		return fe.Code
	}
	return ErrCodeInternal
}

// Indeterminate reports whether the error leaves the outcome of the transfer
// unknown. A confirmation timeout means the transaction may still be included
// later; callers must not assume funds were not sent.
func Indeterminate(err error) bool {
	return CodeOf(err) == ErrCodeConfirmationTimeout
}

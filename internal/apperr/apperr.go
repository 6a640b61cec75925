// Package apperr classifies payment-flow errors into stable kinds,
// user-facing messages and HTTP statuses.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrInvalidAccount          = errors.New("invalid account number")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidPIN              = errors.New("invalid pin")
	ErrAccountNotFound         = errors.New("account not found")
	ErrPINRejected             = errors.New("pin rejected")
	ErrVerificationUnavailable = errors.New("verification unavailable")
	ErrSubmissionFailed        = errors.New("transaction submission failed")
	ErrNoCamera                = errors.New("no camera found")
	ErrCameraAccess            = errors.New("camera access failed")
	ErrImageDecode             = errors.New("image decode failed")
	ErrInvalidQR               = errors.New("invalid qr code")
	ErrWrongStep               = errors.New("action not allowed in current step")
	ErrBusy                    = errors.New("request already in flight")
	ErrUnauthenticated         = errors.New("unauthenticated")
	ErrSessionNotFound         = errors.New("session not found")
)

// Error attaches a user-facing message, and for remote failures the upstream
// HTTP status, to one of the sentinel causes above.
type Error struct {
	Cause   error
	Message string
	Status  int
}

// New returns an Error for a locally detected problem.
func New(cause error, message string) *Error {
	return &Error{Cause: cause, Message: message}
}

// Remote returns an Error for a failure reported by the backend.
func Remote(cause error, status int, message string) *Error {
	return &Error{Cause: cause, Message: message, Status: status}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Cause.Error()
	}
	return e.Cause.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Kind implements the classification used by the transport layer.
func (e *Error) Kind() string { return Kind(e.Cause) }

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrInvalidAccount):
		return "invalid_account"

	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"

	case errors.Is(err, ErrInvalidPIN):
		return "invalid_pin"

	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"

	case errors.Is(err, ErrPINRejected):
		return "pin_rejected"

	case errors.Is(err, ErrVerificationUnavailable):
		return "verification_unavailable"

	case errors.Is(err, ErrSubmissionFailed):
		return "submission_failed"

	case errors.Is(err, ErrNoCamera):
		return "no_camera"

	case errors.Is(err, ErrCameraAccess):
		return "camera_access"

	case errors.Is(err, ErrImageDecode):
		return "image_decode"

	case errors.Is(err, ErrInvalidQR):
		return "invalid_qr"

	case errors.Is(err, ErrWrongStep):
		return "wrong_step"

	case errors.Is(err, ErrBusy):
		return "busy"

	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"

	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidPIN),
		errors.Is(err, ErrInvalidQR),
		errors.Is(err, ErrImageDecode):
		return http.StatusUnprocessableEntity

	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrPINRejected),
		errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized

	case errors.Is(err, ErrWrongStep),
		errors.Is(err, ErrBusy):
		return http.StatusConflict

	case errors.Is(err, ErrVerificationUnavailable),
		errors.Is(err, ErrSubmissionFailed),
		errors.Is(err, ErrNoCamera),
		errors.Is(err, ErrCameraAccess):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text shown next to the control that caused err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch {
	case errors.Is(err, ErrInvalidAccount):
		return "Enter a valid 10-12 digit account number"
	case errors.Is(err, ErrInvalidAmount):
		return "Enter a valid amount"
	case errors.Is(err, ErrInvalidPIN):
		return "Please enter a 4-digit PIN"
	case errors.Is(err, ErrAccountNotFound):
		return "Account not found"
	case errors.Is(err, ErrPINRejected):
		return "Invalid PIN"
	case errors.Is(err, ErrVerificationUnavailable):
		return "Error verifying account"
	case errors.Is(err, ErrSubmissionFailed):
		return "We couldn't process your payment. Please try again."
	case errors.Is(err, ErrNoCamera):
		return "No camera found"
	case errors.Is(err, ErrCameraAccess):
		return "Camera access failed. Please check your permissions."
	case errors.Is(err, ErrImageDecode):
		return "QR scan from image failed."
	case errors.Is(err, ErrInvalidQR):
		return "Invalid QR code format"
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in again"
	default:
		return "Something went wrong"
	}
}

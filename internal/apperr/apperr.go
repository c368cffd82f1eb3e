// Package apperr defines the application error taxonomy. Every error a
// handler or middleware surfaces to a client is one of these, carrying an
// HTTP status, a stable business code and a human-readable message.
package apperr

import "net/http"

type Error struct {
	httpCode int
	code     string
	message  string
	details  string
}

func New(httpCode int, code, message string) *Error {
	return &Error{httpCode: httpCode, code: code, message: message}
}

func (e *Error) Error() string { return e.message }

func (e *Error) HTTPCode() int { return e.httpCode }

func (e *Error) Code() string { return e.code }

func (e *Error) Message() string { return e.message }

func (e *Error) Details() string { return e.details }

// WithDetails returns a copy carrying diagnostic detail. The original stays
// untouched so the predefined errors can be compared with errors.Is.
func (e *Error) WithDetails(details string) *Error {
	c := *e
	c.details = details
	return &c
}

var (
	ErrUnauthenticated = New(http.StatusUnauthorized,
		"UNAUTHENTICATED", "Not authorized, token failed")

	ErrInvalidCredentials = New(http.StatusUnauthorized,
		"INVALID_CREDENTIALS", "invalid credentials")

	ErrProfileUnavailable = New(http.StatusUnauthorized,
		"PROFILE_UNAVAILABLE", "User profile not found and could not be created. Please contact support.")

	ErrValidation = New(http.StatusBadRequest,
		"VALIDATION_ERROR", "Validation error")

	ErrRegistration = New(http.StatusBadRequest,
		"REGISTRATION_FAILED", "registration failed")

	ErrSlotTaken = New(http.StatusConflict,
		"SLOT_TAKEN", "You already have an active appointment at this date and time.")

	ErrAppointmentNotFound = New(http.StatusNotFound,
		"APPOINTMENT_NOT_FOUND", "Appointment not found")

	ErrRateLimited = New(http.StatusTooManyRequests,
		"RATE_LIMITED", "too many requests")

	ErrStore = New(http.StatusInternalServerError,
		"STORE_ERROR", "Internal server error")
)

// Forbidden reports a role-gate denial naming the offending role.
func Forbidden(role string) *Error {
	if role == "" {
		return New(http.StatusForbidden, "FORBIDDEN", "Not authorized, user role not found")
	}
	return New(http.StatusForbidden, "FORBIDDEN",
		"Not authorized, role '"+role+"' is not allowed to access this resource")
}

// Store wraps an unexpected store failure, surfacing the cause for
// diagnostics without letting it steer control flow.
func Store(err error) *Error {
	return ErrStore.WithDetails(err.Error())
}

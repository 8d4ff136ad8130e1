package prolink

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrNotAuthenticated is returned when an operation that requires a
// session is attempted with none.
var ErrNotAuthenticated = goerrors.New("you must be signed in to do that", goerrors.CategoryAuth).
	WithTextCode("NOT_AUTHENTICATED").
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is returned for failed password sign-in.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrProfileNotFound marks a profile lookup that raced the backend's
// asynchronous profiles trigger. It drives the loader's bounded retry
// and is never surfaced to the user directly.
var ErrProfileNotFound = goerrors.New("profile row not found", goerrors.CategoryNotFound).
	WithTextCode("PROFILE_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrBackendUnavailable wraps network or backend failures on any call.
var ErrBackendUnavailable = goerrors.New("backend unavailable", goerrors.CategoryOperation).
	WithTextCode("BACKEND_UNAVAILABLE").
	WithCode(goerrors.CodeInternal)

// ErrUnknownRole is returned when a profile carries a role outside the
// closed client/professional set.
var ErrUnknownRole = goerrors.New("profile has an unknown role", goerrors.CategoryValidation).
	WithTextCode("UNKNOWN_ROLE").
	WithCode(goerrors.CodeBadRequest)

// NewValidationError surfaces a backend credential rejection verbatim,
// keeping the backend's message for the user-facing form.
func NewValidationError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode("REGISTRATION_REJECTED").
		WithCode(goerrors.CodeBadRequest)
}

// IsNotFound reports whether err is a not-found condition, from this
// package or from a backend provider.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrProfileNotFound) {
		return true
	}
	return goerrors.IsNotFound(err)
}

// IsAuthenticationError reports whether err represents rejected
// credentials rather than a backend fault.
func IsAuthenticationError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrInvalidCredentials) || goerrors.Is(err, ErrNotAuthenticated) {
		return true
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryAuth
	}
	return false
}

// IsValidationError reports whether err is a recoverable input
// rejection the user can correct and resubmit.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryValidation
	}
	return false
}

// userMessage extracts the message a notifier should show for err.
func userMessage(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}
	return err.Error()
}

package supabase

import (
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/prolink/prolink-go"
)

// apiError is the common error envelope of the auth and rest surfaces.
// GoTrue uses msg/error_description, PostgREST uses message.
type apiError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// mapAuthError translates a GoTrue failure response into the package's
// error taxonomy. Credential rejections keep the service message so
// forms can show it verbatim.
func mapAuthError(status int, body []byte) error {
	var envelope apiError
	_ = json.Unmarshal(body, &envelope)
	msg := envelope.text()

	switch {
	case status == http.StatusUnauthorized,
		status == http.StatusBadRequest && isCredentialRejection(envelope):
		return goerrors.Wrap(prolink.ErrInvalidCredentials, goerrors.CategoryAuth, "sign-in rejected").
			WithMetadata(map[string]any{"status": status, "detail": msg})
	case status == http.StatusUnprocessableEntity,
		status == http.StatusBadRequest,
		status == http.StatusConflict:
		if msg == "" {
			msg = "registration rejected"
		}
		return prolink.NewValidationError(msg)
	case status == http.StatusTooManyRequests:
		return goerrors.New("too many attempts, try again shortly", goerrors.CategoryRateLimit).
			WithTextCode("RATE_LIMITED")
	default:
		return wrapUnavailable(status, msg)
	}
}

func isCredentialRejection(e apiError) bool {
	if e.ErrorCode == "invalid_credentials" || e.Error == "invalid_grant" {
		return true
	}
	return strings.Contains(strings.ToLower(e.text()), "invalid login credentials")
}

// mapRestError translates a PostgREST failure. 406 on a single-object
// request means the row does not exist.
func mapRestError(status int, body []byte) error {
	var envelope apiError
	_ = json.Unmarshal(body, &envelope)
	msg := envelope.text()

	switch status {
	case http.StatusNotAcceptable, http.StatusNotFound:
		return goerrors.Wrap(prolink.ErrProfileNotFound, goerrors.CategoryNotFound, "row not found").
			WithMetadata(map[string]any{"status": status, "detail": msg})
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		if msg == "" {
			msg = "request rejected"
		}
		return prolink.NewValidationError(msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return goerrors.Wrap(prolink.ErrNotAuthenticated, goerrors.CategoryAuth, "request not authorized").
			WithMetadata(map[string]any{"status": status, "detail": msg})
	default:
		return wrapUnavailable(status, msg)
	}
}

func wrapUnavailable(status int, detail string) error {
	return goerrors.Wrap(prolink.ErrBackendUnavailable, goerrors.CategoryOperation, "service request failed").
		WithMetadata(map[string]any{"status": status, "detail": detail})
}

// wrapTransport marks a network-level failure, request never reached
// the service.
func wrapTransport(err error) error {
	return goerrors.Wrap(prolink.ErrBackendUnavailable, goerrors.CategoryOperation, "transport failure").
		WithMetadata(map[string]any{"cause": err.Error()})
}

// internal/app/features/errors/errors.go
package errors

import (
	goerrors "errors"
	"net/http"

	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"go.uber.org/zap"
)

// Body is the JSON error envelope returned by every API endpoint.
type Body struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields []apperr.FieldError `json:"fields,omitempty"`
}

type kind struct {
	target error
	status int
	code   string
	msg    string
}

// kinds is checked in order; the first match wins.
var kinds = []kind{
	{apperr.ErrValidationFailed, http.StatusBadRequest, "validation_failed", "The request is invalid."},
	{apperr.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "unsupported_media_type", "Request body must be application/json."},
	{apperr.ErrPasswordTooWeak, http.StatusBadRequest, "password_too_weak", ""},
	{apperr.ErrDuplicateIdentity, http.StatusConflict, "duplicate_identity", "An account with this email or username already exists."},
	{apperr.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Invalid email/username or password."},
	{apperr.ErrTokenExpiredOrInvalid, http.StatusUnauthorized, "token_invalid", "The token is invalid or has expired."},
	{apperr.ErrAccountUnverified, http.StatusForbidden, "account_unverified", "Please verify your email before logging in."},
	{apperr.ErrExternalIdentityUnverified, http.StatusForbidden, "identity_unverified", "Your identity provider has not verified this email address."},
	{apperr.ErrNotFound, http.StatusNotFound, "not_found", "Not found."},
	{apperr.ErrUpstreamUnavailable, http.StatusBadGateway, "upstream_unavailable", "A required service is unavailable. Please try again later."},
	{apperr.ErrPersistence, http.StatusInternalServerError, "internal", "Something went wrong. Please try again."},
}

// Describe maps err to a status code and the body sent to the client.
// Unknown errors are 500 with a generic message.
func Describe(err error) (int, Body) {
	for _, k := range kinds {
		if !goerrors.Is(err, k.target) {
			continue
		}
		body := Body{Error: k.msg, Code: k.code}
		switch k.target {
		case apperr.ErrValidationFailed:
			body.Fields = apperr.Fields(err)
			if len(body.Fields) > 0 {
				body.Error = body.Fields[0].Message
			}
		case apperr.ErrPasswordTooWeak:
			// the wrapped rule violation is safe to show
			body.Error = err.Error()
		}
		return k.status, body
	}
	return http.StatusInternalServerError, Body{Error: "Something went wrong. Please try again.", Code: "internal"}
}

// ErrorLogger writes API errors and logs the ones that are the server's fault.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger returns an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

// Write maps err to a response. 5xx responses are logged with the request
// path; their detail never reaches the client.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	status, body := Describe(err)
	if status >= 500 {
		e.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	WriteJSON(w, status, body)
}

// LogBadRequest logs at warn level and writes a 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Warn(msg, zap.String("path", r.URL.Path), zap.Error(err))
	WriteJSON(w, http.StatusBadRequest, Body{Error: userMsg, Code: "bad_request"})
}

// LogServerError logs at error level and writes a 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	WriteJSON(w, http.StatusInternalServerError, Body{Error: userMsg, Code: "internal"})
}

// Handler serves the router's fallback responses.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// NotFound is the router's 404 handler.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, Body{Error: "Not found.", Code: "not_found"})
}

// MethodNotAllowed is the router's 405 handler.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusMethodNotAllowed, Body{Error: "Method not allowed.", Code: "method_not_allowed"})
}

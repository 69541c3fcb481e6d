// internal/app/features/accounts/handler.go
package accounts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/globaltrotter/globaltrotter/internal/app/features/errors"
	accountsvc "github.com/globaltrotter/globaltrotter/internal/app/services/accounts"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auditlog"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/globaltrotter/globaltrotter/internal/app/system/imagehost"
	"github.com/globaltrotter/globaltrotter/internal/app/system/limits"
	"github.com/globaltrotter/globaltrotter/internal/app/system/normalize"
	"github.com/globaltrotter/globaltrotter/internal/app/system/ratelimit"
	"github.com/globaltrotter/globaltrotter/internal/app/system/timeouts"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"go.uber.org/zap"
)

// Service is the account lifecycle as used by this feature
// (*accountsvc.Service).
type Service interface {
	RegisterWithPassword(ctx context.Context, req accountsvc.PasswordRegistration) (accountsvc.Session, error)
	RegisterWithExternalIdentity(ctx context.Context, token string, profile accountsvc.ExternalProfile) (accountsvc.Session, error)
	Login(ctx context.Context, identifier, password string) (accountsvc.Session, error)
	LoginWithExternalIdentity(ctx context.Context, token string) (accountsvc.Session, error)
	VerifyEmail(ctx context.Context, token string) (models.PublicUser, error)
	ResendVerification(ctx context.Context, email string) error
	Refresh(ctx context.Context, refreshToken string) (accountsvc.Session, error)
	Logout(ctx context.Context, userID string) error
}

// Handler serves /api/auth.
type Handler struct {
	Accounts   Service
	SessionMgr *auth.SessionManager // optional; when set, successful logins also get a cookie
	Limiter    *ratelimit.AuthLimiter
	Audit      *auditlog.Logger // nil disables audit events
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

// NewHandler constructs an accounts Handler.
func NewHandler(svc Service, sessionMgr *auth.SessionManager, limiter *ratelimit.AuthLimiter, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts:   svc,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		Audit:      audit,
		ErrLog:     errLog,
		Log:        logger,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// allow applies the auth rate limits and writes 429 when they trip.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, identifier string) bool {
	if h.Limiter == nil {
		return true
	}
	ok, reason := h.Limiter.Check(r, identifier)
	if ok {
		return true
	}
	h.Log.Warn("auth rate limit exceeded",
		zap.String("ip", ratelimit.ClientIP(r)),
		zap.String("identifier", identifier))
	h.Audit.LoginRateLimited(r.Context(), r, identifier)
	if reason == "" {
		reason = "Too many attempts. Please try again later."
	}
	uierrors.WriteJSON(w, http.StatusTooManyRequests, uierrors.Body{Error: reason, Code: "rate_limited"})
	return false
}

// signedIn writes the session, mirrors it into the cookie session and
// responds with status.
func (h *Handler) signedIn(w http.ResponseWriter, r *http.Request, status int, sess accountsvc.Session) {
	if h.SessionMgr != nil {
		err := h.SessionMgr.SignIn(w, r, auth.SessionUser{
			ID:       sess.User.ID,
			Username: sess.User.Username,
			Email:    sess.User.Email,
		})
		if err != nil {
			h.Log.Warn("save session cookie failed", zap.Error(err), zap.String("user_id", sess.User.ID))
		}
	}
	uierrors.WriteJSON(w, status, sess)
}

// failureReason is the audit reason for a rejected login: the error code
// the client sees, never internal error text.
func failureReason(err error) string {
	_, body := uierrors.Describe(err)
	return body.Code
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// readImage returns the optional profileImage part of a multipart form.
func readImage(r *http.Request) (*imagehost.Image, error) {
	f, hdr, err := r.FormFile(imagehost.Field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Invalid(imagehost.Field, "file", "profileImage could not be read.")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, imagehost.MaxImageBytes+1))
	if err != nil {
		return nil, apperr.Invalid(imagehost.Field, "file", "profileImage could not be read.")
	}
	return &imagehost.Image{Filename: hdr.Filename, Data: data}, nil
}

func parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(limits.MaxRegisterMemory); err != nil {
		return apperr.Invalid("", "multipart", fmt.Sprintf("Request form could not be parsed: %v", err))
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/auth/register                                                     |
| JSON body, or multipart form with an optional profileImage file.            |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req accountsvc.PasswordRegistration

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, limits.MaxRegisterBody)
		if err := parseMultipart(r); err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		req = accountsvc.PasswordRegistration{
			Username:       r.FormValue("username"),
			Email:          r.FormValue("email"),
			Password:       r.FormValue("password"),
			Phone:          r.FormValue("phone"),
			City:           r.FormValue("city"),
			Country:        r.FormValue("country"),
			AdditionalInfo: r.FormValue("additional_info"),
		}
		img, err := readImage(r)
		if err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		req.ProfileImage = img
	} else if err := uierrors.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	if !h.allow(w, r, req.Email) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	sess, err := h.Accounts.RegisterWithPassword(ctx, req)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Registered(ctx, r, sess.User.ID, sess.User.Email, models.AuthProviderEmail)
	h.signedIn(w, r, http.StatusCreated, sess)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/auth/external, POST /api/auth/external/login                      |
*─────────────────────────────────────────────────────────────────────────────*/

type externalRequest struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (h *Handler) HandleExternalRegister(w http.ResponseWriter, r *http.Request) {
	var in externalRequest
	var img *imagehost.Image

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, limits.MaxRegisterBody)
		if err := parseMultipart(r); err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		in = externalRequest{Token: r.FormValue("token"), Username: r.FormValue("username")}
		var err error
		if img, err = readImage(r); err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
	} else if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	if !h.allow(w, r, in.Username) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	sess, err := h.Accounts.RegisterWithExternalIdentity(ctx, in.Token, accountsvc.ExternalProfile{
		Username:     in.Username,
		ProfileImage: img,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Registered(ctx, r, sess.User.ID, sess.User.Email, models.AuthProviderExternal)
	h.signedIn(w, r, http.StatusCreated, sess)
}

func (h *Handler) HandleExternalLogin(w http.ResponseWriter, r *http.Request) {
	var in externalRequest
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if !h.allow(w, r, "") {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sess, err := h.Accounts.LoginWithExternalIdentity(ctx, in.Token)
	if err != nil {
		h.Audit.LoginFailed(ctx, r, "", models.AuthProviderExternal, failureReason(err))
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.LoginSuccess(ctx, r, sess.User.ID, sess.User.Email, models.AuthProviderExternal)
	h.signedIn(w, r, http.StatusOK, sess)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/auth/login                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"` // accepted in place of identifier
	Password   string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	identifier := in.Identifier
	if identifier == "" {
		identifier = in.Email
	}
	identifier = normalize.Identifier(identifier)

	if !h.allow(w, r, identifier) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sess, err := h.Accounts.Login(ctx, identifier, in.Password)
	if err != nil {
		h.Audit.LoginFailed(ctx, r, identifier, models.AuthProviderEmail, failureReason(err))
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.LoginSuccess(ctx, r, sess.User.ID, sess.User.Email, models.AuthProviderEmail)
	if h.Limiter != nil {
		h.Limiter.ResetIdentifier(identifier)
	}
	h.signedIn(w, r, http.StatusOK, sess)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Email verification                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleVerify serves GET /api/auth/verify?token=…, the link sent by email.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Accounts.VerifyEmail(ctx, query.Get(r, "token"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.EmailVerified(ctx, r, u.ID, u.Email)
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Email verified. You can now log in.",
		"user":    u,
	})
}

type resendRequest struct {
	Email string `json:"email"`
}

// HandleResend serves POST /api/auth/verify/resend. The response does not
// reveal whether the email has an account.
func (h *Handler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var in resendRequest
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	email := normalize.Email(in.Email)
	if !h.allow(w, r, email) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Accounts.ResendVerification(ctx, email); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.VerificationResent(ctx, r, email)
	uierrors.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If that account needs verification, a new link has been sent.",
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Token refresh and logout                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := uierrors.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	sess, err := h.Accounts.Refresh(ctx, in.RefreshToken)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.TokenRefreshed(ctx, r, sess.User.ID)
	uierrors.WriteJSON(w, http.StatusOK, sess)
}

// HandleLogout revokes the caller's refresh token and clears the cookie.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.ErrTokenExpiredOrInvalid)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Accounts.Logout(ctx, u.ID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if h.SessionMgr != nil {
		if err := h.SessionMgr.SignOut(w, r); err != nil {
			h.Log.Warn("clear session cookie failed", zap.Error(err), zap.String("user_id", u.ID))
		}
	}
	h.Audit.Logout(ctx, r, u.ID)
	h.Log.Info("user logged out", zap.String("user_id", u.ID))
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the signed-in caller.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.ErrTokenExpiredOrInvalid)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]string{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
	})
}

// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	accountsvc "github.com/globaltrotter/globaltrotter/internal/app/services/accounts"
	"github.com/globaltrotter/globaltrotter/internal/app/store/oauthstate"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auditlog"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/globaltrotter/globaltrotter/internal/app/system/normalize"
	"github.com/globaltrotter/globaltrotter/internal/app/system/timeouts"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"go.uber.org/zap"
)

// stateTTL is how long a user has to finish the consent screen.
const stateTTL = 10 * time.Minute

// Provider drives the OAuth redirect flow (*identity.Google).
type Provider interface {
	IsConfigured() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// StateStore persists one-time state tokens (*oauthstate.Store).
type StateStore interface {
	Save(ctx context.Context, st oauthstate.State) error
	Consume(ctx context.Context, state string) (oauthstate.State, bool, error)
}

// Accounts is the part of the account service the callback needs.
type Accounts interface {
	RegisterWithExternalIdentity(ctx context.Context, token string, profile accountsvc.ExternalProfile) (accountsvc.Session, error)
	LoginWithExternalIdentity(ctx context.Context, token string) (accountsvc.Session, error)
}

// Handler handles Google OAuth authentication.
type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	StateStore StateStore
	Google     Provider
	Accounts   Accounts
	Audit      *auditlog.Logger // optional

	// LoginPath is where failures are sent, with ?error=<code>.
	LoginPath string
	// DefaultReturn is used when the flow did not ask for a return path.
	DefaultReturn string
}

// NewHandler creates a new Google OAuth handler.
func NewHandler(
	sessionMgr *auth.SessionManager,
	stateStore StateStore,
	google Provider,
	accounts Accounts,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:           logger,
		SessionMgr:    sessionMgr,
		StateStore:    stateStore,
		Google:        google,
		Accounts:      accounts,
		LoginPath:     "/login",
		DefaultReturn: "/trips",
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.Google != nil && h.Google.IsConfigured()
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google?flow=login|register&username=…&return=…                     |
| Initiates the Google OAuth flow by redirecting to Google's consent screen.   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.redirectToLogin(w, r, "google_not_configured")
		return
	}

	st := oauthstate.State{
		Flow:      oauthstate.FlowLogin,
		ReturnURL: query.Get(r, "return"),
		ExpiresAt: time.Now().UTC().Add(stateTTL),
	}
	if query.Get(r, "flow") == string(oauthstate.FlowRegister) {
		st.Flow = oauthstate.FlowRegister
		st.Username = normalize.Username(query.Get(r, "username"))
		if st.Username == "" {
			h.redirectToLogin(w, r, "username_required")
			return
		}
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		h.redirectToLogin(w, r, "internal")
		return
	}
	st.State = state

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.StateStore.Save(ctx, st); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		h.redirectToLogin(w, r, "internal")
		return
	}

	dest := h.Google.AuthCodeURL(state)
	h.Log.Debug("initiating Google OAuth flow",
		zap.String("flow", string(st.Flow)),
		zap.String("return_url", st.ReturnURL))

	http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Validates state, exchanges the code and registers or logs the user in.       |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		h.redirectToLogin(w, r, "google_denied")
		return
	}

	state := query.Get(r, "state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		h.redirectToLogin(w, r, "invalid_state")
		return
	}

	stateCtx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	st, valid, err := h.StateStore.Consume(stateCtx, state)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		h.redirectToLogin(w, r, "internal")
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		h.redirectToLogin(w, r, "invalid_state")
		return
	}

	code := query.Get(r, "code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		h.redirectToLogin(w, r, "invalid_code")
		return
	}

	ctx, cancel2 := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel2()

	token, err := h.Google.Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.redirectToLogin(w, r, "token_exchange")
		return
	}

	var sess accountsvc.Session
	if st.Flow == oauthstate.FlowRegister {
		sess, err = h.Accounts.RegisterWithExternalIdentity(ctx, token, accountsvc.ExternalProfile{Username: st.Username})
	} else {
		sess, err = h.Accounts.LoginWithExternalIdentity(ctx, token)
	}
	if err != nil {
		code := errorCode(err)
		if code == "internal" {
			h.Log.Error("Google OAuth sign-in failed", zap.String("flow", string(st.Flow)), zap.Error(err))
		} else {
			h.Log.Info("Google OAuth sign-in rejected", zap.String("flow", string(st.Flow)), zap.String("reason", code))
		}
		h.Audit.LoginFailed(ctx, r, "", "google", code)
		h.redirectToLogin(w, r, code)
		return
	}

	if st.Flow == oauthstate.FlowRegister {
		h.Audit.Registered(ctx, r, sess.User.ID, sess.User.Email, "google")
	} else {
		h.Audit.LoginSuccess(ctx, r, sess.User.ID, sess.User.Email, "google")
	}
	h.createSessionAndRedirect(w, r, sess, st.ReturnURL)
}

// errorCode maps an account error to the ?error= value shown on the login page.
func errorCode(err error) string {
	switch {
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return "no_account"
	case errors.Is(err, apperr.ErrDuplicateIdentity):
		return "account_exists"
	case errors.Is(err, apperr.ErrExternalIdentityUnverified):
		return "email_unverified"
	case errors.Is(err, apperr.ErrValidationFailed):
		return "invalid_username"
	case errors.Is(err, apperr.ErrTokenExpiredOrInvalid):
		return "token_exchange"
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		return "google_unavailable"
	default:
		return "internal"
	}
}

// redirectToLogin redirects to the login page with an error code.
func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, errorCode string) {
	http.Redirect(w, r, h.LoginPath+"?error="+url.QueryEscape(errorCode), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session creation                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// createSessionAndRedirect sets the session cookie and sends the browser to
// the return path with the token pair in the URL fragment.
func (h *Handler) createSessionAndRedirect(w http.ResponseWriter, r *http.Request, sess accountsvc.Session, returnURL string) {
	if h.SessionMgr != nil {
		err := h.SessionMgr.SignIn(w, r, auth.SessionUser{
			ID:       sess.User.ID,
			Username: sess.User.Username,
			Email:    sess.User.Email,
		})
		if err != nil {
			h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", sess.User.ID))
			h.redirectToLogin(w, r, "session")
			return
		}
	}

	h.Log.Info("user signed in via Google OAuth", zap.String("user_id", sess.User.ID))

	safePath := urlutil.SafeReturn(returnURL, "", h.DefaultReturn)
	frag := url.Values{
		"access_token":  {sess.Tokens.AccessToken},
		"refresh_token": {sess.Tokens.RefreshToken},
	}
	http.Redirect(w, r, safePath+"#"+frag.Encode(), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

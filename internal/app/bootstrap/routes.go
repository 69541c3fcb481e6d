// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	accountsfeature "github.com/globaltrotter/globaltrotter/internal/app/features/accounts"
	analyticsfeature "github.com/globaltrotter/globaltrotter/internal/app/features/analytics"
	auditlogfeature "github.com/globaltrotter/globaltrotter/internal/app/features/auditlog"
	authgooglefeature "github.com/globaltrotter/globaltrotter/internal/app/features/authgoogle"
	errorsfeature "github.com/globaltrotter/globaltrotter/internal/app/features/errors"
	healthfeature "github.com/globaltrotter/globaltrotter/internal/app/features/health"
	suggestionsfeature "github.com/globaltrotter/globaltrotter/internal/app/features/suggestions"
	tripsfeature "github.com/globaltrotter/globaltrotter/internal/app/features/trips"
	userstore "github.com/globaltrotter/globaltrotter/internal/app/store/users"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for GlobalTrotter.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. The JSON API lives under /api; the Google
// redirect flow under /auth/google.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("BuildHandler called before Startup")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain,
		appCfg.RefreshTokenTTL, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.UseTokens(svc.tokens).UseFetcher(userstore.NewFetcher(deps.MongoDatabase))
	sessionMgr.SetAdmins(appCfg.AdminEmails)

	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Global auth middleware: resolves the caller from a bearer token or the
	// session cookie and makes it available via auth.CurrentUser(r).
	r.Use(sessionMgr.LoadSessionUser)

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Locally stored profile pictures
	if appCfg.StorageType != "s3" {
		r.Handle(appCfg.StorageLocalURL+"/*", fileserver.Handler(appCfg.StorageLocalURL, appCfg.StorageLocalPath))
	}

	// Accounts: registration, verification, login and tokens
	accountsHandler := accountsfeature.NewHandler(svc.accounts, sessionMgr, svc.limiter, svc.audit, errLog, logger)
	r.Mount("/api/auth", accountsfeature.Routes(accountsHandler, sessionMgr))

	// Google sign-in redirect flow
	googleHandler := authgooglefeature.NewHandler(sessionMgr, svc.states, svc.google, svc.accounts, logger)
	googleHandler.Audit = svc.audit
	r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))

	// Trips
	tripsHandler := tripsfeature.NewHandler(svc.tripSvc, sessionMgr, svc.audit, errLog, logger)
	r.Mount("/api/trips", tripsfeature.Routes(tripsHandler, sessionMgr))
	r.Mount("/api/admin/trips", tripsfeature.AdminRoutes(tripsHandler, sessionMgr))

	// Analytics over the caller's trips (and all trips for admins)
	analyticsHandler := analyticsfeature.NewHandler(svc.tripSvc, errLog, logger)
	r.Mount("/api/analytics", analyticsfeature.Routes(analyticsHandler, sessionMgr))

	// Audit trail of account and trip events
	auditHandler := auditlogfeature.NewHandler(svc.events, errLog, logger)
	r.Mount("/api/admin/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	// Itinerary suggestions
	suggestionsHandler := suggestionsfeature.NewHandler(svc.suggest, svc.suggestLimiter, errLog, logger)
	r.Mount("/api/suggestions", suggestionsfeature.Routes(suggestionsHandler, sessionMgr))

	return r, nil
}

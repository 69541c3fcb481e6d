// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/storage"
	accountsvc "github.com/globaltrotter/globaltrotter/internal/app/services/accounts"
	tripsvc "github.com/globaltrotter/globaltrotter/internal/app/services/trips"
	"github.com/globaltrotter/globaltrotter/internal/app/store/audit"
	"github.com/globaltrotter/globaltrotter/internal/app/store/oauthstate"
	tripstore "github.com/globaltrotter/globaltrotter/internal/app/store/trips"
	userstore "github.com/globaltrotter/globaltrotter/internal/app/store/users"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auditlog"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/globaltrotter/globaltrotter/internal/app/system/authutil"
	"github.com/globaltrotter/globaltrotter/internal/app/system/identity"
	"github.com/globaltrotter/globaltrotter/internal/app/system/imagehost"
	"github.com/globaltrotter/globaltrotter/internal/app/system/inputval"
	"github.com/globaltrotter/globaltrotter/internal/app/system/mailer"
	"github.com/globaltrotter/globaltrotter/internal/app/system/ratelimit"
	"github.com/globaltrotter/globaltrotter/internal/app/system/suggest"
	"github.com/globaltrotter/globaltrotter/internal/app/system/tasks"
	"github.com/globaltrotter/globaltrotter/internal/app/system/timeouts"
	"github.com/globaltrotter/globaltrotter/internal/app/system/workers"
	"go.uber.org/zap"
)

// services holds the long-lived components built once in Startup and shared
// by BuildHandler and Shutdown.
type services struct {
	users    *userstore.Store
	trips    *tripstore.Store
	states   *oauthstate.Store
	tokens   *auth.Tokens
	google   *identity.Google
	suggest  suggest.Client
	accounts *accountsvc.Service
	tripSvc  *tripsvc.Service
	events   *audit.Store
	audit    *auditlog.Logger

	limiter        *ratelimit.AuthLimiter
	suggestLimiter *ratelimit.Limiter
	mail           mailer.Dispatcher
	mailQueue      *mailer.Queue // nil when SMTP is not configured
	scheduler      *workers.Scheduler
}

var svc *services

// Startup builds stores, services and background workers after the
// database is connected and the schema is in place.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts configured from environment", zap.Int("count", n))
	}

	s := &services{
		users:  userstore.New(deps.MongoDatabase),
		trips:  tripstore.New(deps.MongoDatabase),
		states: oauthstate.New(deps.MongoDatabase),
		tokens: auth.NewTokens(appCfg.JWTSecret, appCfg.AccessTokenTTL, appCfg.RefreshTokenTTL),
		google: identity.NewGoogle(appCfg.GoogleClientID, appCfg.GoogleClientSecret,
			appCfg.BaseURL+"/auth/google/callback"),
		limiter: ratelimit.NewAuthLimiter(),
		events:  audit.New(deps.MongoDatabase),
	}
	s.audit = auditlog.New(s.events, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Trips: appCfg.AuditLogTrips,
	})

	images, err := newImageUploader(ctx, appCfg)
	if err != nil {
		logger.Error("image storage init failed", zap.Error(err))
		return err
	}
	trustUploadHost(appCfg)

	s.mail = newMailer(appCfg, logger)
	if q, ok := s.mail.(*mailer.Queue); ok {
		q.Start()
		s.mailQueue = q
	}

	s.suggest = newSuggestClient(appCfg, logger)
	s.suggestLimiter = ratelimit.New(appCfg.SuggestRateLimit, time.Minute)

	s.accounts = accountsvc.New(accountsvc.Deps{
		Users:    s.users,
		Tokens:   s.tokens,
		Hasher:   authutil.NewHasher(appCfg.BcryptCost),
		Verifier: s.google,
		Images:   images,
		Mail:     s.mail,
	}, accountsvc.Config{
		SiteName:              appCfg.MailFromName,
		BaseURL:               appCfg.BaseURL,
		VerifyExpiry:          appCfg.EmailVerifyExpiry,
		DefaultProfilePicture: appCfg.DefaultProfilePicture,
	}, logger)

	s.tripSvc = tripsvc.New(s.trips, s.users, tripsvc.Config{MinSections: appCfg.MinTripSections}, logger)

	s.scheduler = workers.NewScheduler(logger, appCfg.CleanupTimeout,
		tasks.OAuthStateCleanupJob(s.states, logger),
		tasks.VerifyTokenCleanupJob(s.users, logger, time.Now),
	)
	s.scheduler.Start()

	svc = s
	logger.Info("startup complete",
		zap.String("storage", appCfg.StorageType),
		zap.Bool("google", s.google.IsConfigured()),
		zap.Bool("suggest_service", appCfg.SuggestURL != ""),
		zap.Int("admins", len(appCfg.AdminEmails)))
	return nil
}

// newImageUploader puts profile images in S3 or on local disk.
func newImageUploader(ctx context.Context, appCfg AppConfig) (*imagehost.Host, error) {
	store, err := newImageStore(ctx, appCfg)
	if err != nil {
		return nil, err
	}
	return imagehost.New(store), nil
}

func newImageStore(ctx context.Context, appCfg AppConfig) (storage.Store, error) {
	switch appCfg.StorageType {
	case "s3":
		return storage.NewS3(ctx, storage.S3Config{
			Bucket:          appCfg.StorageS3Bucket,
			Region:          appCfg.StorageS3Region,
			AccessKeyID:     appCfg.StorageS3AccessKey,
			SecretAccessKey: appCfg.StorageS3SecretKey,
			Endpoint:        appCfg.StorageS3Endpoint,
			UsePathStyle:    appCfg.StorageS3Endpoint != "",
			Prefix:          appCfg.StorageS3Prefix,
			BaseURL:         s3BaseURL(appCfg),
		})
	case "local", "":
		return storage.NewLocal(storage.LocalConfig{
			BasePath: appCfg.StorageLocalPath,
			BaseURL:  appCfg.BaseURL + appCfg.StorageLocalURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage_type %q", appCfg.StorageType)
	}
}

// s3BaseURL is where objects are publicly served from. Blank lets the S3
// backend use the AWS virtual-hosted URL.
func s3BaseURL(appCfg AppConfig) string {
	switch {
	case appCfg.StoragePublicURL != "":
		return strings.TrimRight(appCfg.StoragePublicURL, "/")
	case appCfg.StorageS3Endpoint != "":
		return strings.TrimRight(appCfg.StorageS3Endpoint, "/") + "/" + appCfg.StorageS3Bucket
	default:
		return ""
	}
}

// trustUploadHost lets profile pictures point at the host uploads are
// served from, whatever their extension.
func trustUploadHost(appCfg AppConfig) {
	raw := appCfg.StoragePublicURL
	if appCfg.StorageType != "s3" || raw == "" {
		raw = appCfg.BaseURL
	}
	if u, err := url.Parse(raw); err == nil {
		inputval.TrustImageHost(u.Hostname())
	}
}

// newMailer queues mail for SMTP delivery when a host is configured and logs
// it otherwise.
func newMailer(appCfg AppConfig, logger *zap.Logger) mailer.Dispatcher {
	if strings.TrimSpace(appCfg.MailSMTPHost) == "" {
		return mailer.LogOnly{Log: logger}
	}
	sender := mailer.NewSender(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		Username: appCfg.MailSMTPUser,
		Password: appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	})
	return mailer.NewQueue(sender, mailer.QueueConfig{
		Workers:    appCfg.MailWorkers,
		MaxRetries: appCfg.MailRetries,
	}, logger)
}

// newSuggestClient wraps the remote service (if any) so callers always get
// suggestions, falling back to built-in samples.
func newSuggestClient(appCfg AppConfig, logger *zap.Logger) suggest.Client {
	fb := suggest.Fallback{Log: logger}
	if appCfg.SuggestURL != "" {
		fb.Primary = suggest.NewHTTPClient(appCfg.SuggestURL, appCfg.SuggestAPIKey, appCfg.SuggestTimeout)
	}
	return fb
}

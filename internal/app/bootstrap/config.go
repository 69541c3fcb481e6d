// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/globaltrotter/globaltrotter/internal/app/system/auditlog"
	"go.uber.org/zap"
)

const (
	devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"
	devJWTSecret  = "dev-only-jwt-secret-change-me-0123456789"
)

// appConfigKeys defines the configuration keys for GlobalTrotter.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: GLOBALTROTTER_MONGO_URI, GLOBALTROTTER_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "globaltrotter", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "globaltrotter-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Tokens
	{Name: "jwt_secret", Default: devJWTSecret, Desc: "HMAC secret for access and refresh tokens"},
	{Name: "access_token_ttl", Default: "15m", Desc: "Access token lifetime"},
	{Name: "refresh_token_ttl", Default: "168h", Desc: "Refresh token lifetime"},

	// Accounts
	{Name: "email_verify_expiry", Default: "24h", Desc: "Email verification link expiry (e.g., 24h, 90m)"},
	{Name: "bcrypt_cost", Default: 12, Desc: "bcrypt cost for password hashes"},
	{Name: "default_profile_picture", Default: "", Desc: "Profile picture used when none is supplied"},
	{Name: "admin_emails", Default: "", Desc: "Comma-separated emails allowed on admin routes"},

	// Trips
	{Name: "min_trip_sections", Default: 1, Desc: "Minimum number of sections a trip must have"},

	// Profile image storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads/profiles", Desc: "Local storage path for uploaded images"},
	{Name: "storage_local_url", Default: "/files/profiles", Desc: "URL prefix for serving local images"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "profiles/", Desc: "S3 key prefix"},
	{Name: "storage_s3_endpoint", Default: "", Desc: "Custom S3 endpoint (S3-compatible stores)"},
	{Name: "storage_s3_access_key", Default: "", Desc: "S3 access key (blank uses the default credential chain)"},
	{Name: "storage_s3_secret_key", Default: "", Desc: "S3 secret key"},
	{Name: "storage_public_url", Default: "", Desc: "Public base URL uploaded images are served from"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank logs emails instead of sending)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@globaltrotter.app", Desc: "From email address"},
	{Name: "mail_from_name", Default: "GlobalTrotter", Desc: "From display name"},
	{Name: "mail_retries", Default: 3, Desc: "Delivery attempts per outgoing email"},
	{Name: "mail_workers", Default: 2, Desc: "Outgoing email workers"},

	// Base URL for email links
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for email links"},

	// Google sign-in
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Suggestions
	{Name: "suggest_url", Default: "", Desc: "Itinerary suggestion service base URL (blank uses built-in samples)"},
	{Name: "suggest_api_key", Default: "", Desc: "Itinerary suggestion service API key"},
	{Name: "suggest_timeout", Default: "10s", Desc: "Per-request timeout for the suggestion service"},
	{Name: "suggest_rate_limit", Default: 30, Desc: "Suggestion requests allowed per user per minute"},

	// Maintenance
	{Name: "cleanup_timeout", Default: "30s", Desc: "Timeout for each background cleanup run"},

	// Audit logging
	{Name: "audit_log_auth", Default: "all", Desc: "Account event audit logging: all, db, log, off"},
	{Name: "audit_log_trips", Default: "all", Desc: "Trip event audit logging: all, db, log, off"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, GLOBALTROTTER_* for app) and
// flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "GLOBALTROTTER", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),

		// Tokens
		JWTSecret:       appValues.String("jwt_secret"),
		AccessTokenTTL:  appValues.Duration("access_token_ttl", 15*time.Minute),
		RefreshTokenTTL: appValues.Duration("refresh_token_ttl", 7*24*time.Hour),

		// Accounts
		EmailVerifyExpiry:     appValues.Duration("email_verify_expiry", 24*time.Hour),
		BcryptCost:            appValues.Int("bcrypt_cost"),
		DefaultProfilePicture: appValues.String("default_profile_picture"),
		AdminEmails:           splitList(appValues.String("admin_emails")),

		MinTripSections: appValues.Int("min_trip_sections"),

		// Storage
		StorageType:        appValues.String("storage_type"),
		StorageLocalPath:   appValues.String("storage_local_path"),
		StorageLocalURL:    appValues.String("storage_local_url"),
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageS3Endpoint:  appValues.String("storage_s3_endpoint"),
		StorageS3AccessKey: appValues.String("storage_s3_access_key"),
		StorageS3SecretKey: appValues.String("storage_s3_secret_key"),
		StoragePublicURL:   appValues.String("storage_public_url"),

		// Email/SMTP
		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),
		MailRetries:  appValues.Int("mail_retries"),
		MailWorkers:  appValues.Int("mail_workers"),

		BaseURL: strings.TrimRight(appValues.String("base_url"), "/"),

		// Google
		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		// Suggestions
		SuggestURL:       appValues.String("suggest_url"),
		SuggestAPIKey:    appValues.String("suggest_api_key"),
		SuggestTimeout:   appValues.Duration("suggest_timeout", 10*time.Second),
		SuggestRateLimit: appValues.Int("suggest_rate_limit"),

		CleanupTimeout: appValues.Duration("cleanup_timeout", 30*time.Second),

		AuditLogAuth:  strings.ToLower(strings.TrimSpace(appValues.String("audit_log_auth"))),
		AuditLogTrips: strings.ToLower(strings.TrimSpace(appValues.String("audit_log_trips"))),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is checked before connecting. In production the
// development secrets are refused and S3 storage must name a bucket.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must be set")
	}
	if appCfg.AccessTokenTTL <= 0 || appCfg.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if appCfg.MinTripSections < 0 {
		return fmt.Errorf("min_trip_sections must not be negative")
	}

	if appCfg.SuggestRateLimit <= 0 {
		return fmt.Errorf("suggest_rate_limit must be positive")
	}

	switch appCfg.StorageType {
	case "local", "":
	case "s3":
		if appCfg.StorageS3Bucket == "" {
			return fmt.Errorf("storage_type s3 requires storage_s3_bucket")
		}
	default:
		return fmt.Errorf("unknown storage_type %q (want local or s3)", appCfg.StorageType)
	}

	for name, v := range map[string]string{"audit_log_auth": appCfg.AuditLogAuth, "audit_log_trips": appCfg.AuditLogTrips} {
		if v != "" && !auditlog.Valid(v) {
			return fmt.Errorf("%s %q must be one of all, db, log, off", name, v)
		}
	}

	if coreCfg != nil && coreCfg.Env == "prod" {
		if appCfg.JWTSecret == devJWTSecret {
			return fmt.Errorf("jwt_secret must be changed in production")
		}
		if appCfg.SessionKey == devSessionKey {
			return fmt.Errorf("session_key must be changed in production")
		}
	}

	if appCfg.GoogleClientID == "" {
		logger.Info("Google sign-in disabled (no google_client_id)")
	}
	if appCfg.MailSMTPHost == "" {
		logger.Info("no SMTP host configured; verification emails will be logged")
	}

	return nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for GlobalTrotter.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS, body limits); this
// struct holds everything specific to trips and accounts.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Cookie sessions (browser clients and the Google redirect flow)
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: globaltrotter-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Signed access/refresh tokens
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Accounts
	EmailVerifyExpiry     time.Duration // lifetime of a verification link
	BcryptCost            int
	DefaultProfilePicture string
	AdminEmails           []string // accounts allowed on /api/admin routes

	// Trips
	MinTripSections int

	// Profile image storage
	StorageType      string // "local" or "s3"
	StorageLocalPath string // directory uploads are written to
	StorageLocalURL  string // URL prefix local uploads are served from

	// S3 configuration (only used if StorageType is "s3")
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageS3Endpoint  string // custom endpoint for S3-compatible stores
	StorageS3AccessKey string // blank uses the default AWS credential chain
	StorageS3SecretKey string
	StoragePublicURL   string // public base URL objects are served from

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (blank logs emails instead of sending)
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string
	MailRetries  int // delivery attempts per message
	MailWorkers  int

	// Base URL for email links
	BaseURL string // e.g., "https://globaltrotter.app" or "http://localhost:3000"

	// Google sign-in
	GoogleClientID     string
	GoogleClientSecret string

	// Itinerary suggestion service (blank uses built-in samples)
	SuggestURL       string
	SuggestAPIKey    string
	SuggestTimeout   time.Duration
	SuggestRateLimit int // requests per user per minute

	// Background maintenance
	CleanupTimeout time.Duration

	// Audit logging destinations: "all", "db", "log" or "off"
	AuditLogAuth  string
	AuditLogTrips string
}

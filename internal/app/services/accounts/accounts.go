// Package accounts implements account registration, email verification and
// token-based login.
package accounts

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/globaltrotter/globaltrotter/internal/app/system/authutil"
	"github.com/globaltrotter/globaltrotter/internal/app/system/identity"
	"github.com/globaltrotter/globaltrotter/internal/app/system/imagehost"
	"github.com/globaltrotter/globaltrotter/internal/app/system/mailer"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserRepository is the subset of userstore.Store the service needs.
type UserRepository interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error
	SetVerifyToken(ctx context.Context, id primitive.ObjectID, token string, expiry time.Time) error
	SetExternalID(ctx context.Context, id primitive.ObjectID, externalID string) error
	ConsumeVerifyToken(ctx context.Context, token string, now time.Time) (*models.User, error)
}

// Config holds the settings that shape account emails and defaults.
type Config struct {
	SiteName              string
	BaseURL               string        // used to build verification links
	VerifyExpiry          time.Duration // lifetime of an email verification token
	DefaultProfilePicture string
}

// Session is returned by every operation that signs a user in.
type Session struct {
	User   models.PublicUser `json:"user"`
	Tokens auth.TokenPair    `json:"tokens"`
}

// Service implements the account lifecycle.
type Service struct {
	users    UserRepository
	tokens   *auth.Tokens
	hasher   *authutil.Hasher
	verifier identity.Verifier
	images   imagehost.Uploader
	mail     mailer.Dispatcher
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

// Deps groups the collaborators of a Service. Images and Mail may be nil:
// uploads are then skipped and verification links are only logged.
type Deps struct {
	Users    UserRepository
	Tokens   *auth.Tokens
	Hasher   *authutil.Hasher
	Verifier identity.Verifier
	Images   imagehost.Uploader
	Mail     mailer.Dispatcher
}

// New builds a Service.
func New(d Deps, cfg Config, logger *zap.Logger) *Service {
	if cfg.VerifyExpiry <= 0 {
		cfg.VerifyExpiry = 24 * time.Hour
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "GlobalTrotter"
	}
	if d.Hasher == nil {
		d.Hasher = authutil.NewHasher(authutil.DefaultBcryptCost)
	}
	return &Service{
		users:    d.Users,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		verifier: d.Verifier,
		images:   d.Images,
		mail:     d.Mail,
		cfg:      cfg,
		log:      logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// issueFor mints a token pair for u and records the refresh token on it.
// New accounts get their ID here so the pair can go out with the insert.
func (s *Service) issueFor(u *models.User) (auth.TokenPair, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	pair, err := s.tokens.IssuePair(auth.Subject{
		UserID:   u.ID.Hex(),
		Email:    u.Email,
		Username: u.Username,
	})
	if err != nil {
		return auth.TokenPair{}, err
	}
	u.RefreshToken = pair.RefreshToken
	return pair, nil
}

// createSignedIn inserts u together with its first refresh token, so a
// failed registration leaves nothing behind.
func (s *Service) createSignedIn(ctx context.Context, u models.User) (Session, models.User, error) {
	pair, err := s.issueFor(&u)
	if err != nil {
		return Session{}, models.User{}, err
	}
	created, err := s.users.Create(ctx, u)
	if err != nil {
		return Session{}, models.User{}, s.storeErr("create user", err, zap.String("email", u.Email))
	}
	return Session{User: created.Public(), Tokens: pair}, created, nil
}

// startSession issues a fresh token pair for an existing user and stores its
// refresh token, replacing any previous one.
func (s *Service) startSession(ctx context.Context, u *models.User) (Session, error) {
	pair, err := s.tokens.IssuePair(auth.Subject{
		UserID:   u.ID.Hex(),
		Email:    u.Email,
		Username: u.Username,
	})
	if err != nil {
		return Session{}, err
	}
	if err := s.users.SetRefreshToken(ctx, u.ID, pair.RefreshToken); err != nil {
		return Session{}, s.storeErr("store refresh token", err, zap.String("user_id", u.ID.Hex()))
	}
	u.RefreshToken = pair.RefreshToken
	return Session{User: u.Public(), Tokens: pair}, nil
}

// storeErr passes domain kinds through and hides everything else behind
// ErrPersistence after logging it.
func (s *Service) storeErr(op string, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, apperr.ErrDuplicateIdentity),
		errors.Is(err, apperr.ErrNotFound):
		return err
	}
	s.log.Error(op, append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", op, apperr.ErrPersistence)
}

// ensureAvailable returns ErrDuplicateIdentity when email or username is taken.
func (s *Service) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return apperr.ErrDuplicateIdentity
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return s.storeErr("lookup email", err)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return apperr.ErrDuplicateIdentity
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return s.storeErr("lookup username", err)
	}
	return nil
}

// uploadPicture stores img and returns its URL. Transport failures degrade
// to "" so registration continues without a picture.
func (s *Service) uploadPicture(ctx context.Context, img *imagehost.Image, email string) string {
	if img == nil || s.images == nil {
		return ""
	}
	u, err := s.images.Upload(ctx, *img)
	if err != nil {
		s.log.Warn("profile image upload failed; continuing without picture",
			zap.String("email", email), zap.Error(err))
		return ""
	}
	return u
}

// newVerifyToken returns a token and its expiry.
func (s *Service) newVerifyToken() (string, time.Time, error) {
	tok, err := authutil.NewVerifyToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate verify token: %w", err)
	}
	return tok, s.now().UTC().Add(s.cfg.VerifyExpiry), nil
}

// sendVerification queues the verification email. Delivery is asynchronous;
// failures are logged by the dispatcher and never reach the caller.
func (s *Service) sendVerification(u *models.User, token string) {
	link := strings.TrimRight(s.cfg.BaseURL, "/") + "/api/auth/verify?token=" + url.QueryEscape(token)
	if s.mail == nil {
		s.log.Info("mail not configured; verification email skipped",
			zap.String("email", u.Email), zap.String("link", mailer.Redact(link)))
		return
	}
	msg, err := mailer.BuildVerificationEmail(mailer.VerificationEmailData{
		SiteName:   s.cfg.SiteName,
		Username:   u.Username,
		VerifyLink: link,
		ExpiresIn:  mailer.FormatExpiry(s.cfg.VerifyExpiry),
	})
	if err != nil {
		s.log.Error("verification email not sent", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		return
	}
	msg.To = u.Email
	s.mail.Dispatch(msg)
}

// VerifyEmail marks the holder of an unexpired token as verified. A token
// works once; later calls fail with ErrTokenExpiredOrInvalid.
func (s *Service) VerifyEmail(ctx context.Context, token string) (models.PublicUser, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.PublicUser{}, apperr.ErrTokenExpiredOrInvalid
	}
	u, err := s.users.ConsumeVerifyToken(ctx, token, s.now())
	if errors.Is(err, apperr.ErrNotFound) {
		return models.PublicUser{}, apperr.ErrTokenExpiredOrInvalid
	}
	if err != nil {
		return models.PublicUser{}, s.storeErr("verify email", err)
	}
	s.log.Info("email verified", zap.String("user_id", u.ID.Hex()))
	return u.Public(), nil
}

// ResendVerification issues a new verification link for an unverified
// password account. Unknown or already verified emails succeed silently.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return s.storeErr("lookup email", err)
	}
	if u.IsVerified || !u.UsesPassword() {
		return nil
	}

	tok, exp, err := s.newVerifyToken()
	if err != nil {
		return err
	}
	if err := s.users.SetVerifyToken(ctx, u.ID, tok, exp); err != nil {
		return s.storeErr("store verify token", err, zap.String("user_id", u.ID.Hex()))
	}
	s.sendVerification(u, tok)
	return nil
}

// Refresh rotates a session. The presented refresh token must be valid and
// equal to the one stored at the last login or refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.RefreshToken)
	if err != nil {
		return Session{}, apperr.ErrTokenExpiredOrInvalid
	}
	oid, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return Session{}, apperr.ErrTokenExpiredOrInvalid
	}
	u, err := s.users.GetByID(ctx, oid)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, apperr.ErrTokenExpiredOrInvalid
	}
	if err != nil {
		return Session{}, s.storeErr("lookup user", err)
	}
	if u.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(u.RefreshToken), []byte(refreshToken)) != 1 {
		return Session{}, apperr.ErrTokenExpiredOrInvalid
	}
	return s.startSession(ctx, u)
}

// Logout clears the stored refresh token so it can no longer be used.
func (s *Service) Logout(ctx context.Context, userID string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return apperr.ErrNotFound
	}
	if err := s.users.SetRefreshToken(ctx, oid, ""); err != nil {
		return s.storeErr("clear refresh token", err, zap.String("user_id", userID))
	}
	return nil
}

package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/globaltrotter/globaltrotter/internal/app/system/authutil"
	"github.com/globaltrotter/globaltrotter/internal/app/system/htmlsanitize"
	"github.com/globaltrotter/globaltrotter/internal/app/system/imagehost"
	"github.com/globaltrotter/globaltrotter/internal/app/system/inputval"
	"github.com/globaltrotter/globaltrotter/internal/app/system/normalize"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"go.uber.org/zap"
)

// PasswordRegistration is the input to RegisterWithPassword.
type PasswordRegistration struct {
	Username       string `json:"username" validate:"required,max=50,username"`
	Email          string `json:"email" validate:"required,max=254,looseemail"`
	Password       string `json:"password" validate:"required"`
	Phone          string `json:"phone" validate:"omitempty,max=30,phone"`
	City           string `json:"city" validate:"max=100"`
	Country        string `json:"country" validate:"max=100"`
	AdditionalInfo string `json:"additional_info" validate:"max=500"`

	// ProfileImage is an optional uploaded picture.
	ProfileImage *imagehost.Image `json:"-"`
}

func (r *PasswordRegistration) normalize() {
	r.Username = normalize.Username(r.Username)
	r.Email = normalize.Email(r.Email)
	r.Phone = normalize.Text(r.Phone)
	r.City = normalize.Text(htmlsanitize.StripTags(r.City))
	r.Country = normalize.Text(htmlsanitize.StripTags(r.Country))
	r.AdditionalInfo = htmlsanitize.StripTags(r.AdditionalInfo)
}

// ExternalProfile is what the user adds to an identity-provider signup.
type ExternalProfile struct {
	Username     string           `json:"username" validate:"required,max=50,username"`
	ProfileImage *imagehost.Image `json:"-"`
}

// RegisterWithPassword creates an unverified email account, signs it in and
// queues a verification email.
func (s *Service) RegisterWithPassword(ctx context.Context, req PasswordRegistration) (Session, error) {
	req.normalize()

	res := inputval.Validate(req)
	if req.ProfileImage != nil {
		if err := imagehost.Validate(req.ProfileImage); err != nil {
			res.Merge(inputval.Result{Errors: apperr.Fields(err)})
		}
	}
	if res.HasErrors() {
		return Session{}, res.Err()
	}
	if err := authutil.ValidatePassword(req.Password); err != nil {
		return Session{}, fmt.Errorf("%w: %w", apperr.ErrPasswordTooWeak, err)
	}
	if err := s.ensureAvailable(ctx, req.Email, req.Username); err != nil {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	tok, exp, err := s.newVerifyToken()
	if err != nil {
		return Session{}, err
	}

	sess, u, err := s.createSignedIn(ctx, models.User{
		Username:          req.Username,
		Email:             req.Email,
		Phone:             req.Phone,
		Location:          models.Location{City: req.City, Country: req.Country},
		AdditionalInfo:    req.AdditionalInfo,
		ProfilePicture:    s.uploadPicture(ctx, req.ProfileImage, req.Email),
		AuthProvider:      models.AuthProviderEmail,
		PasswordHash:      hash,
		IsVerified:        false,
		VerifyToken:       tok,
		VerifyTokenExpiry: &exp,
	})
	if err != nil {
		return Session{}, err
	}
	s.sendVerification(&u, tok)
	s.log.Info("user registered",
		zap.String("user_id", u.ID.Hex()),
		zap.String("provider", u.AuthProvider))
	return sess, nil
}

// RegisterWithExternalIdentity creates a verified account from an
// identity-provider token. The picture is the uploaded image if any, else the
// provider's picture, else the configured default.
func (s *Service) RegisterWithExternalIdentity(ctx context.Context, token string, profile ExternalProfile) (Session, error) {
	profile.Username = normalize.Username(profile.Username)

	res := inputval.Validate(profile)
	if profile.ProfileImage != nil {
		if err := imagehost.Validate(profile.ProfileImage); err != nil {
			res.Merge(inputval.Result{Errors: apperr.Fields(err)})
		}
	}
	if res.HasErrors() {
		return Session{}, res.Err()
	}

	id, err := s.verifyIdentity(ctx, token)
	if err != nil {
		return Session{}, err
	}
	email := normalize.Email(id.Email)

	if _, err := s.users.GetByExternalID(ctx, id.ExternalID); err == nil {
		return Session{}, apperr.ErrDuplicateIdentity
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return Session{}, s.storeErr("lookup external id", err)
	}
	if err := s.ensureAvailable(ctx, email, profile.Username); err != nil {
		return Session{}, err
	}

	picture := s.uploadPicture(ctx, profile.ProfileImage, email)
	if picture == "" && inputval.IsImageURL(id.Picture) {
		picture = id.Picture
	}
	if picture == "" {
		picture = s.cfg.DefaultProfilePicture
	}

	extID := id.ExternalID
	sess, u, err := s.createSignedIn(ctx, models.User{
		Username:       profile.Username,
		Email:          email,
		ProfilePicture: picture,
		AuthProvider:   models.AuthProviderExternal,
		ExternalID:     &extID,
		IsVerified:     true,
	})
	if err != nil {
		return Session{}, err
	}

	s.log.Info("user registered",
		zap.String("user_id", u.ID.Hex()),
		zap.String("provider", u.AuthProvider))
	return sess, nil
}

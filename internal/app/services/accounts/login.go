package accounts

import (
	"context"
	"errors"

	"github.com/globaltrotter/globaltrotter/internal/app/system/identity"
	"github.com/globaltrotter/globaltrotter/internal/app/system/normalize"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/globaltrotter/globaltrotter/internal/domain/models"
	"go.uber.org/zap"
)

// Login authenticates a password account by email or username.
func (s *Service) Login(ctx context.Context, identifier, password string) (Session, error) {
	identifier = normalize.Identifier(identifier)
	if identifier == "" || password == "" {
		s.hasher.CheckMissing(password)
		return Session{}, apperr.ErrInvalidCredentials
	}

	var (
		u   *models.User
		err error
	)
	if normalize.IsEmailLike(identifier) {
		u, err = s.users.GetByEmail(ctx, identifier)
	} else {
		u, err = s.users.GetByUsername(ctx, identifier)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		s.hasher.CheckMissing(password)
		return Session{}, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, s.storeErr("lookup user", err)
	}

	if !u.UsesPassword() || u.PasswordHash == "" {
		s.hasher.CheckMissing(password)
		return Session{}, apperr.ErrInvalidCredentials
	}
	if !s.hasher.Check(u.PasswordHash, password) {
		return Session{}, apperr.ErrInvalidCredentials
	}
	if !u.IsVerified {
		return Session{}, apperr.ErrAccountUnverified
	}

	sess, err := s.startSession(ctx, u)
	if err != nil {
		return Session{}, err
	}
	s.log.Info("user logged in", zap.String("user_id", u.ID.Hex()))
	return sess, nil
}

// LoginWithExternalIdentity signs in the account linked to an
// identity-provider token. An account with the same (provider-verified) email
// but no external id is linked on first use.
func (s *Service) LoginWithExternalIdentity(ctx context.Context, token string) (Session, error) {
	id, err := s.verifyIdentity(ctx, token)
	if err != nil {
		return Session{}, err
	}

	u, err := s.users.GetByExternalID(ctx, id.ExternalID)
	if errors.Is(err, apperr.ErrNotFound) {
		u, err = s.users.GetByEmail(ctx, id.Email)
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, apperr.ErrInvalidCredentials
		}
		if err != nil {
			return Session{}, s.storeErr("lookup email", err)
		}
		if u.ExternalID != nil {
			// email belongs to a different external identity
			return Session{}, apperr.ErrInvalidCredentials
		}
		if err := s.users.SetExternalID(ctx, u.ID, id.ExternalID); err != nil {
			return Session{}, s.storeErr("link external id", err, zap.String("user_id", u.ID.Hex()))
		}
		ext := id.ExternalID
		u.ExternalID = &ext
		s.log.Info("linked external identity", zap.String("user_id", u.ID.Hex()))
	} else if err != nil {
		return Session{}, s.storeErr("lookup external id", err)
	}

	sess, err := s.startSession(ctx, u)
	if err != nil {
		return Session{}, err
	}
	s.log.Info("user logged in", zap.String("user_id", u.ID.Hex()), zap.String("provider", "external"))
	return sess, nil
}

// verifyIdentity resolves token and requires a provider-verified email.
func (s *Service) verifyIdentity(ctx context.Context, token string) (identity.Identity, error) {
	if s.verifier == nil {
		return identity.Identity{}, apperr.ErrUpstreamUnavailable
	}
	id, err := s.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, apperr.ErrUpstreamUnavailable) {
			s.log.Warn("identity provider unavailable", zap.Error(err))
		}
		return identity.Identity{}, err
	}
	if !id.EmailVerified {
		return identity.Identity{}, apperr.ErrExternalIdentityUnverified
	}
	return id, nil
}

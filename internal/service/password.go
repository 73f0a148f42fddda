package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"vmail/backend/internal/domain"
	"vmail/backend/internal/storage"
)

// SetPassword stores a fresh credential for the mailbox addressed by email.
func (s *DirectoryService) SetPassword(ctx context.Context, email, newPassword string) error {
	u, err := s.ResolveMailUser(ctx, email)
	if err != nil {
		return err
	}

	err = s.store.LockMailUser(ctx, u.ID, func(repo storage.MailUserRepository, locked *domain.MailUser) error {
		cred, err := s.generate(newPassword)
		if err != nil {
			return err
		}
		return repo.UpdateCredential(ctx, locked.ID, cred.Salt, cred.Digest)
	})
	s.record("set_password", err)
	if err != nil {
		return err
	}

	s.logger.Info("password set", zap.String("email", u.Email()))
	return nil
}

// ChangePassword replaces the credential after verifying currentPassword. The check
// and the write share one row lock, so concurrent changes for a user serialize and
// never verify against a stale salt.
func (s *DirectoryService) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	u, err := s.ResolveMailUser(ctx, email)
	if err != nil {
		return err
	}

	err = s.store.LockMailUser(ctx, u.ID, func(repo storage.MailUserRepository, locked *domain.MailUser) error {
		ok, err := s.verify(currentPassword, locked)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrIncorrectPassword
		}

		cred, err := s.generate(newPassword)
		if err != nil {
			return err
		}
		return repo.UpdateCredential(ctx, locked.ID, cred.Salt, cred.Digest)
	})
	s.record("change_password", err)
	if err != nil {
		if errors.Is(err, domain.ErrIncorrectPassword) {
			s.logger.Warn("password change rejected", zap.String("email", u.Email()))
		}
		return err
	}

	s.logger.Info("password changed", zap.String("email", u.Email()))
	return nil
}

// Authenticate checks a login the way the mail server's passdb does: the mailbox
// and its domain must be active and the password must verify. Every attempt
// counts against the address's limit; a success clears it.
func (s *DirectoryService) Authenticate(ctx context.Context, email, password string) (*domain.MailUser, error) {
	key := domain.NormalizeAddress(email)

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, key); err != nil {
			if errors.Is(err, domain.ErrTooManyAttempts) {
				s.authResult("rate_limited")
				if s.metrics != nil {
					s.metrics.RecordRateLimitBlock("auth")
				}
				s.logger.Warn("authentication rate limited", zap.String("email", key))
			}
			return nil, err
		}
	}

	u, err := s.ResolveMailUser(ctx, email)
	if err != nil {
		s.authResult("unknown")
		return nil, err
	}

	if !u.Active || (u.Domain != nil && !u.Domain.Active) {
		s.authResult("inactive")
		return nil, domain.ErrInactive
	}

	ok, err := s.verify(password, u)
	if err != nil {
		s.authResult("error")
		return nil, err
	}
	if !ok {
		s.authResult("failure")
		s.logger.Info("authentication failed", zap.String("email", u.Email()))
		return nil, domain.ErrIncorrectPassword
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.logger.Warn("failed to reset attempt counter", zap.String("email", key), zap.Error(err))
		}
	}
	s.authResult("success")
	return u, nil
}

func (s *DirectoryService) authResult(result string) {
	if s.metrics != nil {
		s.metrics.RecordAuthAttempt(result)
	}
}

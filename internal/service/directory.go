package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vmail/backend/internal/credential"
	"vmail/backend/internal/domain"
	"vmail/backend/internal/monitoring"
	"vmail/backend/internal/storage"
)

// AttemptLimiter bounds credential checks per address.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// DirectoryService owns the domain, mailbox and alias records. Every write runs
// the record's Normalize method first; uniqueness itself is left to the store.
type DirectoryService struct {
	store   storage.Store
	engine  *credential.Engine
	limiter AttemptLimiter
	metrics *monitoring.Metrics
	logger  *zap.Logger
	newID   func() string
}

// Option customizes a DirectoryService.
type Option func(*DirectoryService)

// WithLimiter enables attempt limiting in Authenticate.
func WithLimiter(l AttemptLimiter) Option {
	return func(s *DirectoryService) { s.limiter = l }
}

// WithMetrics records operation and authentication metrics.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *DirectoryService) { s.metrics = m }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *DirectoryService) { s.logger = l }
}

// NewDirectoryService creates the directory service.
func NewDirectoryService(store storage.Store, engine *credential.Engine, opts ...Option) *DirectoryService {
	s := &DirectoryService{
		store:  store,
		engine: engine,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ========== Domains ==========

// CreateDomain adds a domain. Domains differing only in case collide with
// domain.ErrDuplicateKey.
func (s *DirectoryService) CreateDomain(ctx context.Context, fqdn string) (*domain.Domain, error) {
	d := &domain.Domain{ID: s.newID(), Fqdn: fqdn, Active: true}
	if err := d.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %q", err, fqdn)
	}

	err := s.store.CreateDomain(ctx, d)
	s.record("create_domain", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("domain created", zap.String("domain", d.Fqdn), zap.String("id", d.ID))
	return d, nil
}

// EnsureDomain returns the domain with this fqdn, creating it when absent. The
// boolean reports whether it was created.
func (s *DirectoryService) EnsureDomain(ctx context.Context, fqdn string) (*domain.Domain, bool, error) {
	d, err := s.GetDomain(ctx, fqdn)
	if err == nil {
		return d, false, nil
	}
	if !errors.Is(err, domain.ErrDomainNotFound) {
		return nil, false, err
	}

	d, err = s.CreateDomain(ctx, fqdn)
	if errors.Is(err, domain.ErrDuplicateKey) {
		// created concurrently
		d, err = s.GetDomain(ctx, fqdn)
		return d, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// GetDomain looks a domain up by fqdn, case-insensitively.
func (s *DirectoryService) GetDomain(ctx context.Context, fqdn string) (*domain.Domain, error) {
	name := domain.NormalizeAddress(fqdn)
	if err := domain.ValidateDomainName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, fqdn)
	}

	d, err := s.store.GetDomainByFqdn(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrDomainNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDomainNotFound, name)
		}
		return nil, err
	}
	return d, nil
}

// ListDomains returns every domain with its record counts.
func (s *DirectoryService) ListDomains(ctx context.Context) ([]domain.DomainSummary, error) {
	domains, err := s.store.ListDomains(ctx)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		var users, aliases int
		for _, d := range domains {
			users += d.MailUserCount
			aliases += d.AliasCount
		}
		s.metrics.UpdateDirectorySize(len(domains), users, aliases)
	}
	return domains, nil
}

// SetDomainActive activates or deactivates a domain.
func (s *DirectoryService) SetDomainActive(ctx context.Context, fqdn string, active bool) (*domain.Domain, error) {
	d, err := s.GetDomain(ctx, fqdn)
	if err != nil {
		return nil, err
	}

	err = s.store.SetDomainActive(ctx, d.ID, active)
	s.record("set_domain_active", err)
	if err != nil {
		return nil, err
	}

	d.Active = active
	s.logger.Info("domain status changed", zap.String("domain", d.Fqdn), zap.Bool("active", active))
	return d, nil
}

// DeleteDomain removes a domain that no longer owns mail users or aliases.
func (s *DirectoryService) DeleteDomain(ctx context.Context, fqdn string) error {
	d, err := s.GetDomain(ctx, fqdn)
	if err != nil {
		return err
	}

	err = s.store.DeleteDomain(ctx, d.ID)
	s.record("delete_domain", err)
	if err != nil {
		if errors.Is(err, domain.ErrDomainInUse) {
			return fmt.Errorf("%w: %s", domain.ErrDomainInUse, d.Fqdn)
		}
		return err
	}

	s.logger.Info("domain deleted", zap.String("domain", d.Fqdn))
	return nil
}

// ========== Mail users ==========

// ResolveMailUser finds the mail user addressed by email. It never creates anything.
//
// Syntax errors fail with domain.ErrInvalidEmailFormat, an unknown domain with
// domain.ErrDomainNotFound and an unknown user with domain.ErrMailUserNotFound.
func (s *DirectoryService) ResolveMailUser(ctx context.Context, email string) (*domain.MailUser, error) {
	username, fqdn, err := domain.SplitEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, email)
	}

	d, err := s.store.GetDomainByFqdn(ctx, fqdn)
	if err != nil {
		if errors.Is(err, domain.ErrDomainNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDomainNotFound, fqdn)
		}
		return nil, err
	}

	u, err := s.store.GetMailUser(ctx, username, d.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMailUserNotFound) {
			return nil, fmt.Errorf("%w: %s@%s", domain.ErrMailUserNotFound, username, fqdn)
		}
		return nil, err
	}
	if u.Domain == nil {
		u.Domain = d
	}
	return u, nil
}

// CreateMailUserInput describes a new mailbox. A nil Password leaves the mailbox
// without credentials until one is set.
type CreateMailUserInput struct {
	Username string
	Domain   string
	Password *string
}

// CreateMailUser adds a mailbox to an existing domain.
func (s *DirectoryService) CreateMailUser(ctx context.Context, input CreateMailUserInput) (*domain.MailUser, error) {
	u := &domain.MailUser{ID: s.newID(), Username: input.Username, Active: true}
	if err := u.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %q", err, input.Username)
	}

	d, err := s.GetDomain(ctx, input.Domain)
	if err != nil {
		return nil, err
	}
	u.DomainID = d.ID

	if input.Password != nil {
		cred, err := s.generate(*input.Password)
		if err != nil {
			return nil, err
		}
		u.Salt = cred.Salt
		u.ShaDigest = cred.Digest
	}

	err = s.store.CreateMailUser(ctx, u)
	s.record("create_mail_user", err)
	if err != nil {
		return nil, err
	}
	if u.Domain == nil {
		u.Domain = d
	}

	s.logger.Info("mail user created",
		zap.String("email", u.Email()),
		zap.Bool("has_password", u.HasPassword()),
	)
	return u, nil
}

// AddMailbox creates the mailbox for email, first creating its domain when
// createDomain is set. A created domain stays even if the mailbox step fails.
func (s *DirectoryService) AddMailbox(ctx context.Context, email string, createDomain bool, password *string) (*domain.MailUser, error) {
	username, fqdn, err := domain.SplitEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, email)
	}

	if createDomain {
		if _, _, err := s.EnsureDomain(ctx, fqdn); err != nil {
			return nil, err
		}
	}

	return s.CreateMailUser(ctx, CreateMailUserInput{
		Username: username,
		Domain:   fqdn,
		Password: password,
	})
}

// ListMailUsers lists the mailboxes of fqdn, or of every domain when fqdn is empty.
func (s *DirectoryService) ListMailUsers(ctx context.Context, fqdn string) ([]domain.MailUser, error) {
	domainID := ""
	if fqdn != "" {
		d, err := s.GetDomain(ctx, fqdn)
		if err != nil {
			return nil, err
		}
		domainID = d.ID
	}
	return s.store.ListMailUsers(ctx, domainID)
}

// SetMailUserActive activates or deactivates a mailbox.
func (s *DirectoryService) SetMailUserActive(ctx context.Context, email string, active bool) (*domain.MailUser, error) {
	u, err := s.ResolveMailUser(ctx, email)
	if err != nil {
		return nil, err
	}

	err = s.store.SetMailUserActive(ctx, u.ID, active)
	s.record("set_mail_user_active", err)
	if err != nil {
		return nil, err
	}

	u.Active = active
	s.logger.Info("mail user status changed", zap.String("email", u.Email()), zap.Bool("active", active))
	return u, nil
}

// DeleteMailUser removes a mailbox.
func (s *DirectoryService) DeleteMailUser(ctx context.Context, email string) error {
	u, err := s.ResolveMailUser(ctx, email)
	if err != nil {
		return err
	}

	err = s.store.DeleteMailUser(ctx, u.ID)
	s.record("delete_mail_user", err)
	if err != nil {
		return err
	}

	s.logger.Info("mail user deleted", zap.String("email", u.Email()))
	return nil
}

// ========== Aliases ==========

// CreateAliasInput describes a forward. Domain is the administrative owner and is
// not compared with either endpoint.
type CreateAliasInput struct {
	Domain      string
	Source      string
	Destination string
}

// CreateAlias adds a forward from Source to Destination. The destination must be a
// full address; an empty source local part makes a catch-all.
func (s *DirectoryService) CreateAlias(ctx context.Context, input CreateAliasInput) (*domain.Alias, error) {
	a := &domain.Alias{
		ID:          s.newID(),
		Source:      input.Source,
		Destination: input.Destination,
		Active:      true,
	}
	if err := a.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: destination %q", err, input.Destination)
	}

	d, err := s.GetDomain(ctx, aliasOwner(input.Domain))
	if err != nil {
		return nil, err
	}
	a.DomainID = d.ID

	err = s.store.CreateAlias(ctx, a)
	s.record("create_alias", err)
	if err != nil {
		return nil, err
	}
	if a.Domain == nil {
		a.Domain = d
	}

	s.logger.Info("alias created",
		zap.String("domain", d.Fqdn),
		zap.String("source", a.Source),
		zap.String("destination", a.Destination),
		zap.Bool("catch_all", a.IsCatchAll()),
	)
	return a, nil
}

// AddAlias creates an alias owned by ownerDomain, first creating the domain when
// createDomain is set.
func (s *DirectoryService) AddAlias(ctx context.Context, ownerDomain, source, destination string, createDomain bool) (*domain.Alias, error) {
	ownerDomain = aliasOwner(ownerDomain)
	if createDomain {
		if _, _, err := s.EnsureDomain(ctx, ownerDomain); err != nil {
			return nil, err
		}
	}
	return s.CreateAlias(ctx, CreateAliasInput{
		Domain:      ownerDomain,
		Source:      source,
		Destination: destination,
	})
}

// aliasOwner accepts the owner domain written like a catch-all source, "@example.org".
func aliasOwner(fqdn string) string {
	return strings.TrimPrefix(domain.NormalizeAddress(fqdn), "@")
}

// GetAlias returns an alias by id.
func (s *DirectoryService) GetAlias(ctx context.Context, id string) (*domain.Alias, error) {
	return s.store.GetAlias(ctx, id)
}

// ListAliases lists the aliases owned by fqdn, or every alias when fqdn is empty.
func (s *DirectoryService) ListAliases(ctx context.Context, fqdn string) ([]domain.Alias, error) {
	domainID := ""
	if fqdn != "" {
		d, err := s.GetDomain(ctx, fqdn)
		if err != nil {
			return nil, err
		}
		domainID = d.ID
	}
	return s.store.ListAliases(ctx, domainID)
}

// SetAliasActive activates or deactivates an alias.
func (s *DirectoryService) SetAliasActive(ctx context.Context, id string, active bool) (*domain.Alias, error) {
	a, err := s.store.GetAlias(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.store.SetAliasActive(ctx, id, active)
	s.record("set_alias_active", err)
	if err != nil {
		return nil, err
	}

	a.Active = active
	s.logger.Info("alias status changed", zap.String("id", id), zap.Bool("active", active))
	return a, nil
}

// DeleteAlias removes an alias.
func (s *DirectoryService) DeleteAlias(ctx context.Context, id string) error {
	err := s.store.DeleteAlias(ctx, id)
	s.record("delete_alias", err)
	if err != nil {
		return err
	}

	s.logger.Info("alias deleted", zap.String("id", id))
	return nil
}

// ========== helpers ==========

func (s *DirectoryService) record(operation string, err error) {
	if s.metrics != nil {
		s.metrics.RecordOperation(operation, err)
	}
}

func (s *DirectoryService) generate(raw string) (credential.Credential, error) {
	start := time.Now()
	cred, err := s.engine.GenerateCredential(raw)
	if s.metrics != nil {
		s.metrics.RecordCredentialDuration("generate", time.Since(start))
	}
	return cred, err
}

func (s *DirectoryService) verify(raw string, u *domain.MailUser) (bool, error) {
	start := time.Now()
	ok, err := s.engine.VerifyCredential(raw, u.Salt, u.ShaDigest)
	if s.metrics != nil {
		s.metrics.RecordCredentialDuration("verify", time.Since(start))
	}
	return ok, err
}

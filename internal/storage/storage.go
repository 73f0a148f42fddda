package storage

import (
	"context"
	"time"

	"vmail/backend/internal/domain"
)

// DomainRepository defines domain persistence.
//
// CreateDomain returns domain.ErrDuplicateKey when the fqdn is taken; lookups return
// domain.ErrDomainNotFound.
type DomainRepository interface {
	CreateDomain(ctx context.Context, d *domain.Domain) error
	GetDomain(ctx context.Context, id string) (*domain.Domain, error)
	GetDomainByFqdn(ctx context.Context, fqdn string) (*domain.Domain, error)
	ListDomains(ctx context.Context) ([]domain.DomainSummary, error)
	SetDomainActive(ctx context.Context, id string, active bool) error
	DeleteDomain(ctx context.Context, id string) error // domain.ErrDomainInUse while owning records
}

// MailUserRepository defines mailbox persistence. Returned users have Domain loaded.
type MailUserRepository interface {
	CreateMailUser(ctx context.Context, u *domain.MailUser) error
	GetMailUser(ctx context.Context, username, domainID string) (*domain.MailUser, error)
	ListMailUsers(ctx context.Context, domainID string) ([]domain.MailUser, error) // "" lists all
	UpdateCredential(ctx context.Context, id, salt, digest string) error
	SetMailUserActive(ctx context.Context, id string, active bool) error
	DeleteMailUser(ctx context.Context, id string) error

	// LockMailUser runs fn in a transaction holding an exclusive lock on the mail user
	// row, so concurrent credential updates for one user serialize. Writes made through
	// repo commit together when fn returns nil.
	LockMailUser(ctx context.Context, id string, fn func(repo MailUserRepository, u *domain.MailUser) error) error
}

// AliasRepository defines alias persistence. CreateAlias returns
// domain.ErrDuplicateKey for a repeated (source, destination) pair.
type AliasRepository interface {
	CreateAlias(ctx context.Context, a *domain.Alias) error
	GetAlias(ctx context.Context, id string) (*domain.Alias, error)
	ListAliases(ctx context.Context, domainID string) ([]domain.Alias, error) // "" lists all
	SetAliasActive(ctx context.Context, id string, active bool) error
	DeleteAlias(ctx context.Context, id string) error
}

// RateLimitRepository counts events per key inside a fixed window.
type RateLimitRepository interface {
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error)
	ResetRateLimit(ctx context.Context, key string) error
}

// Store aggregates the directory repositories.
type Store interface {
	DomainRepository
	MailUserRepository
	AliasRepository

	Close() error
	Health() error
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vmail/backend/internal/domain"
	"vmail/backend/internal/storage"
)

// Store keeps the directory in memory, mainly for development and tests. Unique
// indexes are maintained under the same lock as the records, so uniqueness checks
// are atomic with inserts.
type Store struct {
	mu         sync.RWMutex
	domains    map[string]*domain.Domain   // domainID -> domain
	byFqdn     map[string]string           // fqdn -> domainID
	users      map[string]*domain.MailUser // userID -> mail user
	byUserKey  map[string]string           // username\x00domainID -> userID
	aliases    map[string]*domain.Alias    // aliasID -> alias
	byAliasKey map[string]string           // source\x00destination -> aliasID

	locksMu   sync.Mutex
	userLocks map[string]*userLock // held or awaited locks only

	// rate limiting
	rateLimits        map[string]*rateLimitEntry
	rateLimitsCleanup time.Time

	now func() time.Time
}

type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

var (
	_ storage.Store               = (*Store)(nil)
	_ storage.RateLimitRepository = (*Store)(nil)
)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		domains:           make(map[string]*domain.Domain),
		byFqdn:            make(map[string]string),
		users:             make(map[string]*domain.MailUser),
		byUserKey:         make(map[string]string),
		aliases:           make(map[string]*domain.Alias),
		byAliasKey:        make(map[string]string),
		userLocks:         make(map[string]*userLock),
		rateLimits:        make(map[string]*rateLimitEntry),
		rateLimitsCleanup: time.Now().UTC().Add(5 * time.Minute),
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func userKey(username, domainID string) string { return username + "\x00" + domainID }

func aliasKey(source, destination string) string { return source + "\x00" + destination }

// ========== Domain Repository ==========

// CreateDomain inserts a domain. The fqdn index rejects duplicates.
func (s *Store) CreateDomain(_ context.Context, d *domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byFqdn[d.Fqdn]; ok {
		return fmt.Errorf("domain %s: %w", d.Fqdn, domain.ErrDuplicateKey)
	}
	if d.Created.IsZero() {
		d.Created = s.now()
	}

	stored := *d
	s.domains[d.ID] = &stored
	s.byFqdn[d.Fqdn] = d.ID
	return nil
}

// GetDomain returns a domain by id.
func (s *Store) GetDomain(_ context.Context, id string) (*domain.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.domains[id]
	if !ok {
		return nil, domain.ErrDomainNotFound
	}
	out := *d
	return &out, nil
}

// GetDomainByFqdn returns a domain by its normalized fqdn.
func (s *Store) GetDomainByFqdn(_ context.Context, fqdn string) (*domain.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byFqdn[fqdn]
	if !ok {
		return nil, domain.ErrDomainNotFound
	}
	out := *s.domains[id]
	return &out, nil
}

// ListDomains returns every domain with its record counts, ordered by fqdn.
func (s *Store) ListDomains(_ context.Context) ([]domain.DomainSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userCounts := make(map[string]int)
	for _, u := range s.users {
		userCounts[u.DomainID]++
	}
	aliasCounts := make(map[string]int)
	for _, a := range s.aliases {
		aliasCounts[a.DomainID]++
	}

	result := make([]domain.DomainSummary, 0, len(s.domains))
	for id, d := range s.domains {
		result = append(result, domain.DomainSummary{
			Domain:        *d,
			MailUserCount: userCounts[id],
			AliasCount:    aliasCounts[id],
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Fqdn < result[j].Fqdn })
	return result, nil
}

// SetDomainActive activates or deactivates a domain.
func (s *Store) SetDomainActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.domains[id]
	if !ok {
		return domain.ErrDomainNotFound
	}
	d.Active = active
	return nil
}

// DeleteDomain removes a domain that owns no mail users or aliases.
func (s *Store) DeleteDomain(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.domains[id]
	if !ok {
		return domain.ErrDomainNotFound
	}
	for _, u := range s.users {
		if u.DomainID == id {
			return domain.ErrDomainInUse
		}
	}
	for _, a := range s.aliases {
		if a.DomainID == id {
			return domain.ErrDomainInUse
		}
	}

	delete(s.byFqdn, d.Fqdn)
	delete(s.domains, id)
	return nil
}

// ========== Mail User Repository ==========

// CreateMailUser inserts a mail user. The (username, domain) index rejects duplicates.
func (s *Store) CreateMailUser(_ context.Context, u *domain.MailUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.domains[u.DomainID]
	if !ok {
		return domain.ErrDomainNotFound
	}
	key := userKey(u.Username, u.DomainID)
	if _, ok := s.byUserKey[key]; ok {
		return fmt.Errorf("mail user %s@%s: %w", u.Username, d.Fqdn, domain.ErrDuplicateKey)
	}
	if u.Created.IsZero() {
		u.Created = s.now()
	}

	stored := *u
	stored.Domain = nil
	s.users[u.ID] = &stored
	s.byUserKey[key] = u.ID

	dom := *d
	u.Domain = &dom
	return nil
}

// GetMailUser returns the mail user with the given username in a domain.
func (s *Store) GetMailUser(_ context.Context, username, domainID string) (*domain.MailUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUserKey[userKey(username, domainID)]
	if !ok {
		return nil, domain.ErrMailUserNotFound
	}
	return s.userCopyLocked(id), nil
}

// ListMailUsers returns mail users ordered by email. An empty domainID lists all.
func (s *Store) ListMailUsers(_ context.Context, domainID string) ([]domain.MailUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.MailUser, 0)
	for id, u := range s.users {
		if domainID != "" && u.DomainID != domainID {
			continue
		}
		result = append(result, *s.userCopyLocked(id))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Domain.Fqdn != result[j].Domain.Fqdn {
			return result[i].Domain.Fqdn < result[j].Domain.Fqdn
		}
		return result[i].Username < result[j].Username
	})
	return result, nil
}

// UpdateCredential stores a new salt and digest.
func (s *Store) UpdateCredential(_ context.Context, id, salt, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.ErrMailUserNotFound
	}
	u.Salt = salt
	u.ShaDigest = digest
	return nil
}

// SetMailUserActive activates or deactivates a mail user.
func (s *Store) SetMailUserActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.ErrMailUserNotFound
	}
	u.Active = active
	return nil
}

// DeleteMailUser removes a mail user.
func (s *Store) DeleteMailUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.ErrMailUserNotFound
	}
	delete(s.byUserKey, userKey(u.Username, u.DomainID))
	delete(s.users, id)
	return nil
}

// LockMailUser serializes fn with every other LockMailUser call for the same user.
// Writes issued through repo are buffered and applied only when fn succeeds.
func (s *Store) LockMailUser(ctx context.Context, id string, fn func(repo storage.MailUserRepository, u *domain.MailUser) error) error {
	lock := s.acquireUserLock(id)
	defer s.releaseUserLock(id, lock)

	s.mu.RLock()
	_, ok := s.users[id]
	var u *domain.MailUser
	if ok {
		u = s.userCopyLocked(id)
	}
	s.mu.RUnlock()
	if !ok {
		return domain.ErrMailUserNotFound
	}

	tx := &userTx{Store: s}
	if err := fn(tx, u); err != nil {
		return err
	}
	for _, write := range tx.writes {
		if err := write(ctx); err != nil {
			return err
		}
	}
	return nil
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func (s *Store) acquireUserLock(id string) *userLock {
	s.locksMu.Lock()
	l, ok := s.userLocks[id]
	if !ok {
		l = &userLock{}
		s.userLocks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return l
}

// releaseUserLock drops the entry once no caller holds or waits for it.
func (s *Store) releaseUserLock(id string, l *userLock) {
	l.mu.Unlock()

	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.userLocks, id)
	}
}

// userCopyLocked returns a detached copy of a user with its domain attached.
// Callers hold s.mu.
func (s *Store) userCopyLocked(id string) *domain.MailUser {
	out := *s.users[id]
	if d, ok := s.domains[out.DomainID]; ok {
		dom := *d
		out.Domain = &dom
	}
	return &out
}

// userTx buffers credential and status writes made inside LockMailUser.
type userTx struct {
	*Store
	writes []func(ctx context.Context) error
}

func (tx *userTx) UpdateCredential(_ context.Context, id, salt, digest string) error {
	tx.writes = append(tx.writes, func(ctx context.Context) error {
		return tx.Store.UpdateCredential(ctx, id, salt, digest)
	})
	return nil
}

func (tx *userTx) SetMailUserActive(_ context.Context, id string, active bool) error {
	tx.writes = append(tx.writes, func(ctx context.Context) error {
		return tx.Store.SetMailUserActive(ctx, id, active)
	})
	return nil
}

// ========== Alias Repository ==========

// CreateAlias inserts an alias. The (source, destination) index rejects duplicates.
func (s *Store) CreateAlias(_ context.Context, a *domain.Alias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.domains[a.DomainID]
	if !ok {
		return domain.ErrDomainNotFound
	}
	key := aliasKey(a.Source, a.Destination)
	if _, ok := s.byAliasKey[key]; ok {
		return fmt.Errorf("alias %s -> %s: %w", a.Source, a.Destination, domain.ErrDuplicateKey)
	}
	if a.Created.IsZero() {
		a.Created = s.now()
	}

	stored := *a
	stored.Domain = nil
	s.aliases[a.ID] = &stored
	s.byAliasKey[key] = a.ID

	dom := *d
	a.Domain = &dom
	return nil
}

// GetAlias returns an alias by id.
func (s *Store) GetAlias(_ context.Context, id string) (*domain.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.aliases[id]; !ok {
		return nil, domain.ErrAliasNotFound
	}
	return s.aliasCopyLocked(id), nil
}

// ListAliases returns aliases ordered by source then destination. An empty domainID lists all.
func (s *Store) ListAliases(_ context.Context, domainID string) ([]domain.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Alias, 0)
	for id, a := range s.aliases {
		if domainID != "" && a.DomainID != domainID {
			continue
		}
		result = append(result, *s.aliasCopyLocked(id))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Source != result[j].Source {
			return result[i].Source < result[j].Source
		}
		return result[i].Destination < result[j].Destination
	})
	return result, nil
}

// SetAliasActive activates or deactivates an alias.
func (s *Store) SetAliasActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.aliases[id]
	if !ok {
		return domain.ErrAliasNotFound
	}
	a.Active = active
	return nil
}

// DeleteAlias removes an alias.
func (s *Store) DeleteAlias(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.aliases[id]
	if !ok {
		return domain.ErrAliasNotFound
	}
	delete(s.byAliasKey, aliasKey(a.Source, a.Destination))
	delete(s.aliases, id)
	return nil
}

func (s *Store) aliasCopyLocked(id string) *domain.Alias {
	out := *s.aliases[id]
	if d, ok := s.domains[out.DomainID]; ok {
		dom := *d
		out.Domain = &dom
	}
	return &out
}

// ========== Rate limiting ==========

// IncrementRateLimit increments the counter for key, starting a new window when the
// previous one has expired.
func (s *Store) IncrementRateLimit(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	// sweep expired entries every five minutes
	if now.After(s.rateLimitsCleanup) {
		for k, v := range s.rateLimits {
			if now.After(v.ExpiresAt) {
				delete(s.rateLimits, k)
			}
		}
		s.rateLimitsCleanup = now.Add(5 * time.Minute)
	}

	entry, exists := s.rateLimits[key]
	if !exists || now.After(entry.ExpiresAt) {
		s.rateLimits[key] = &rateLimitEntry{Count: 1, ExpiresAt: now.Add(window)}
		return 1, nil
	}
	entry.Count++
	return entry.Count, nil
}

// ResetRateLimit clears the counter for key.
func (s *Store) ResetRateLimit(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rateLimits, key)
	return nil
}

// ========== Utilities ==========

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// Health always succeeds for the in-memory store.
func (s *Store) Health() error { return nil }

package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (pgx)
	_ "github.com/lib/pq"              // PostgreSQL driver (lib/pq)
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"vmail/backend/internal/domain"
	"vmail/backend/internal/storage"
)

// Supported database/sql driver names.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Store is the relational directory store (PostgreSQL or MySQL 5.7+). The
// domains, mail_users and aliases tables are read directly by the mail server.
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string
}

var _ storage.Store = (*Store)(nil)

// NewStore opens the database and configures the pool. Migrate creates the schema.
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	var dialector func(*sql.DB) gorm.Dialector
	switch driverName {
	case DriverPgx, DriverPostgres:
		dialector = func(db *sql.DB) gorm.Dialector {
			return postgres.New(postgres.Config{Conn: db})
		}
	case DriverMySQL:
		dialector = func(db *sql.DB) gorm.Dialector {
			return mysql.New(mysql.Config{Conn: db})
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: pgx, postgres, mysql)", driverName)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := NewStoreWithDialector(dialector(db))
	if err != nil {
		db.Close()
		return nil, err
	}
	store.driverName = driverName
	return store, nil
}

// NewStoreWithDialector wraps an already configured gorm dialector.
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	db, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return &Store{db: db, gormDB: gormDB, driverName: dialector.Name()}, nil
}

// Migrate creates or updates the directory tables and their unique indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.gormDB.WithContext(ctx).AutoMigrate(
		&domain.Domain{},
		&domain.MailUser{},
		&domain.Alias{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health pings the database.
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}

// ========== Domain Repository ==========

func (s *Store) CreateDomain(ctx context.Context, d *domain.Domain) error {
	if err := s.gormDB.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("create domain %s: %w", d.Fqdn, translateError(err, domain.ErrDomainNotFound))
	}
	return nil
}

func (s *Store) GetDomain(ctx context.Context, id string) (*domain.Domain, error) {
	var d domain.Domain
	if err := s.gormDB.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, translateError(err, domain.ErrDomainNotFound)
	}
	return &d, nil
}

func (s *Store) GetDomainByFqdn(ctx context.Context, fqdn string) (*domain.Domain, error) {
	var d domain.Domain
	if err := s.gormDB.WithContext(ctx).Where("fqdn = ?", fqdn).First(&d).Error; err != nil {
		return nil, translateError(err, domain.ErrDomainNotFound)
	}
	return &d, nil
}

type domainCount struct {
	DomainID string
	N        int
}

func (s *Store) ListDomains(ctx context.Context) ([]domain.DomainSummary, error) {
	db := s.gormDB.WithContext(ctx)

	var domains []domain.Domain
	if err := db.Order("fqdn").Find(&domains).Error; err != nil {
		return nil, err
	}

	var userCounts, aliasCounts []domainCount
	if err := db.Model(&domain.MailUser{}).Select("domain_id, count(*) AS n").Group("domain_id").Scan(&userCounts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Alias{}).Select("domain_id, count(*) AS n").Group("domain_id").Scan(&aliasCounts).Error; err != nil {
		return nil, err
	}

	users := make(map[string]int, len(userCounts))
	for _, c := range userCounts {
		users[c.DomainID] = c.N
	}
	aliases := make(map[string]int, len(aliasCounts))
	for _, c := range aliasCounts {
		aliases[c.DomainID] = c.N
	}

	result := make([]domain.DomainSummary, 0, len(domains))
	for _, d := range domains {
		result = append(result, domain.DomainSummary{
			Domain:        d,
			MailUserCount: users[d.ID],
			AliasCount:    aliases[d.ID],
		})
	}
	return result, nil
}

// SetDomainActive updates the active flag. The column is written explicitly
// because gorm skips zero values in struct updates.
func (s *Store) SetDomainActive(ctx context.Context, id string, active bool) error {
	return s.updateColumn(ctx, &domain.Domain{}, id, "active", active, domain.ErrDomainNotFound)
}

func (s *Store) DeleteDomain(ctx context.Context, id string) error {
	return s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d domain.Domain
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&d).Error; err != nil {
			return translateError(err, domain.ErrDomainNotFound)
		}

		var users, aliases int64
		if err := tx.Model(&domain.MailUser{}).Where("domain_id = ?", id).Count(&users).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Alias{}).Where("domain_id = ?", id).Count(&aliases).Error; err != nil {
			return err
		}
		if users > 0 || aliases > 0 {
			return domain.ErrDomainInUse
		}

		return tx.Delete(&domain.Domain{}, "id = ?", id).Error
	})
}

// ========== Mail User Repository ==========

func (s *Store) CreateMailUser(ctx context.Context, u *domain.MailUser) error {
	db := s.gormDB.WithContext(ctx)

	var d domain.Domain
	if err := db.Where("id = ?", u.DomainID).First(&d).Error; err != nil {
		return translateError(err, domain.ErrDomainNotFound)
	}
	if err := db.Omit("Domain").Create(u).Error; err != nil {
		return fmt.Errorf("create mail user %s@%s: %w", u.Username, d.Fqdn, translateInsertError(err))
	}
	u.Domain = &d
	return nil
}

func (s *Store) GetMailUser(ctx context.Context, username, domainID string) (*domain.MailUser, error) {
	var u domain.MailUser
	err := s.gormDB.WithContext(ctx).
		Preload("Domain").
		Where("username = ? AND domain_id = ?", username, domainID).
		First(&u).Error
	if err != nil {
		return nil, translateError(err, domain.ErrMailUserNotFound)
	}
	return &u, nil
}

func (s *Store) ListMailUsers(ctx context.Context, domainID string) ([]domain.MailUser, error) {
	query := s.gormDB.WithContext(ctx).
		Preload("Domain").
		Joins("JOIN domains ON domains.id = mail_users.domain_id").
		Order("domains.fqdn, mail_users.username")
	if domainID != "" {
		query = query.Where("mail_users.domain_id = ?", domainID)
	}

	var users []domain.MailUser
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateCredential(ctx context.Context, id, salt, digest string) error {
	result := s.gormDB.WithContext(ctx).
		Model(&domain.MailUser{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"salt": salt, "shadigest": digest})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.exists(ctx, &domain.MailUser{}, id, domain.ErrMailUserNotFound)
	}
	return nil
}

func (s *Store) SetMailUserActive(ctx context.Context, id string, active bool) error {
	return s.updateColumn(ctx, &domain.MailUser{}, id, "active", active, domain.ErrMailUserNotFound)
}

func (s *Store) DeleteMailUser(ctx context.Context, id string) error {
	result := s.gormDB.WithContext(ctx).Delete(&domain.MailUser{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrMailUserNotFound
	}
	return nil
}

// LockMailUser selects the row FOR UPDATE and hands fn a repository bound to the
// same transaction.
func (s *Store) LockMailUser(ctx context.Context, id string, fn func(repo storage.MailUserRepository, u *domain.MailUser) error) error {
	return s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u domain.MailUser
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&u).Error; err != nil {
			return translateError(err, domain.ErrMailUserNotFound)
		}

		var d domain.Domain
		if err := tx.Where("id = ?", u.DomainID).First(&d).Error; err != nil {
			return translateError(err, domain.ErrDomainNotFound)
		}
		u.Domain = &d

		return fn(&Store{db: s.db, gormDB: tx, driverName: s.driverName}, &u)
	})
}

// ========== Alias Repository ==========

func (s *Store) CreateAlias(ctx context.Context, a *domain.Alias) error {
	db := s.gormDB.WithContext(ctx)

	var d domain.Domain
	if err := db.Where("id = ?", a.DomainID).First(&d).Error; err != nil {
		return translateError(err, domain.ErrDomainNotFound)
	}
	if err := db.Omit("Domain").Create(a).Error; err != nil {
		return fmt.Errorf("create alias %s -> %s: %w", a.Source, a.Destination, translateInsertError(err))
	}
	a.Domain = &d
	return nil
}

func (s *Store) GetAlias(ctx context.Context, id string) (*domain.Alias, error) {
	var a domain.Alias
	if err := s.gormDB.WithContext(ctx).Preload("Domain").Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translateError(err, domain.ErrAliasNotFound)
	}
	return &a, nil
}

func (s *Store) ListAliases(ctx context.Context, domainID string) ([]domain.Alias, error) {
	query := s.gormDB.WithContext(ctx).Preload("Domain").Order("source, destination")
	if domainID != "" {
		query = query.Where("domain_id = ?", domainID)
	}

	var aliases []domain.Alias
	if err := query.Find(&aliases).Error; err != nil {
		return nil, err
	}
	return aliases, nil
}

func (s *Store) SetAliasActive(ctx context.Context, id string, active bool) error {
	return s.updateColumn(ctx, &domain.Alias{}, id, "active", active, domain.ErrAliasNotFound)
}

func (s *Store) DeleteAlias(ctx context.Context, id string) error {
	result := s.gormDB.WithContext(ctx).Delete(&domain.Alias{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAliasNotFound
	}
	return nil
}

// ========== helpers ==========

// updateColumn writes a single column. MySQL reports zero affected rows when the
// value is unchanged, so a miss is confirmed with an existence check.
func (s *Store) updateColumn(ctx context.Context, model interface{}, id, column string, value interface{}, notFound error) error {
	result := s.gormDB.WithContext(ctx).Model(model).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.exists(ctx, model, id, notFound)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, model interface{}, id string, notFound error) error {
	var n int64
	if err := s.gormDB.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

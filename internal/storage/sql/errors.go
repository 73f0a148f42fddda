package sql

import (
	"errors"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"vmail/backend/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	mysqlDuplicateEntry   = 1062
	pgForeignKeyViolation = "23503"
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
)

// translateError maps driver and gorm errors onto domain sentinels. notFound is
// returned for gorm.ErrRecordNotFound.
func translateError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if isForeignKeyViolation(err) {
		return domain.ErrDomainInUse
	}
	return err
}

// translateInsertError is translateError for inserts of rows owned by a domain.
// A foreign key failure there means the parent domain vanished.
func translateInsertError(err error) error {
	if err != nil && !isDuplicateKey(err) && isForeignKeyViolation(err) {
		return domain.ErrDomainNotFound
	}
	return translateError(err, domain.ErrDomainNotFound)
}

// isDuplicateKey reports a unique-constraint violation from any supported driver.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgForeignKeyViolation
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlRowIsReferenced || myErr.Number == mysqlNoReferencedRow
	}
	return false
}

package sql

import (
	"errors"
	"fmt"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"vmail/backend/internal/domain"
)

func TestTranslateError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"record not found", gorm.ErrRecordNotFound, domain.ErrMailUserNotFound},
		{"wrapped record not found", fmt.Errorf("query: %w", gorm.ErrRecordNotFound), domain.ErrMailUserNotFound},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, domain.ErrDuplicateKey},
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, domain.ErrDuplicateKey},
		{"lib/pq unique violation", &pq.Error{Code: "23505"}, domain.ErrDuplicateKey},
		{"mysql duplicate entry", &gomysql.MySQLError{Number: 1062}, domain.ErrDuplicateKey},
		{"gorm foreign key", gorm.ErrForeignKeyViolated, domain.ErrDomainInUse},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, domain.ErrDomainInUse},
		{"mysql row referenced", &gomysql.MySQLError{Number: 1451}, domain.ErrDomainInUse},
		{"other pg error", &pgconn.PgError{Code: "40001"}, nil},
		{"unrelated", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err, domain.ErrMailUserNotFound)
			switch {
			case tt.err == nil:
				assert.NoError(t, got)
			case tt.want == nil:
				assert.Equal(t, tt.err, got)
			default:
				assert.ErrorIs(t, got, tt.want)
			}
		})
	}
}

func TestTranslateInsertError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"gorm foreign key", gorm.ErrForeignKeyViolated, domain.ErrDomainNotFound},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, domain.ErrDomainNotFound},
		{"lib/pq foreign key", &pq.Error{Code: "23503"}, domain.ErrDomainNotFound},
		{"mysql no referenced row", &gomysql.MySQLError{Number: 1452}, domain.ErrDomainNotFound},
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, domain.ErrDuplicateKey},
		{"mysql duplicate entry", &gomysql.MySQLError{Number: 1062}, domain.ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateInsertError(tt.err)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, domain.ErrDomainInUse)
		})
	}

	assert.NoError(t, translateInsertError(nil))
}

func TestNewStore_UnsupportedDriver(t *testing.T) {
	_, err := NewStore("sqlite3", "file::memory:", 1, 1, 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

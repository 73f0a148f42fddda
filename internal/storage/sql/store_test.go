package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"

	"vmail/backend/internal/domain"
	"vmail/backend/internal/storage"
)

const (
	selectDomain         = `SELECT \* FROM "domains" WHERE id = \$1`
	selectDomainLocked   = `SELECT \* FROM "domains" WHERE id = \$1 .*FOR UPDATE`
	selectMailUserLocked = `SELECT \* FROM "mail_users" WHERE id = \$1 .*FOR UPDATE`
	countMailUsers       = `SELECT count\(\*\) FROM "mail_users" WHERE domain_id = \$1`
	countAliases         = `SELECT count\(\*\) FROM "aliases" WHERE domain_id = \$1`
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStoreWithDialector(postgres.New(postgres.Config{Conn: db}))
	require.NoError(t, err)
	return store, mock
}

func domainRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "fqdn", "active"}).AddRow("d1", "example.org", true)
}

func mailUserRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "salt", "shadigest", "domain_id", "active"}).
		AddRow("u1", "alice", "old-salt", "old-digest", "d1", true)
}

func TestStore_LockMailUser(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(selectMailUserLocked).WillReturnRows(mailUserRows())
		mock.ExpectQuery(selectDomain).WillReturnRows(domainRows())
		mock.ExpectExec(`UPDATE "mail_users" SET .*"shadigest"=.* WHERE id = `).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.LockMailUser(ctx, "u1", func(repo storage.MailUserRepository, u *domain.MailUser) error {
			assert.Equal(t, "alice@example.org", u.Email())
			assert.Equal(t, "old-digest", u.ShaDigest)
			return repo.UpdateCredential(ctx, u.ID, "new-salt", "new-digest")
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		store, mock := newMockStore(t)
		errStop := errors.New("stop")

		mock.ExpectBegin()
		mock.ExpectQuery(selectMailUserLocked).WillReturnRows(mailUserRows())
		mock.ExpectQuery(selectDomain).WillReturnRows(domainRows())
		mock.ExpectRollback()

		err := store.LockMailUser(ctx, "u1", func(storage.MailUserRepository, *domain.MailUser) error {
			return errStop
		})
		assert.ErrorIs(t, err, errStop)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(selectMailUserLocked).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		called := false
		err := store.LockMailUser(ctx, "u1", func(storage.MailUserRepository, *domain.MailUser) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrMailUserNotFound)
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_CreateMailUser(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		dbErr   error
		wantErr error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, domain.ErrDuplicateKey},
		{"domain deleted before insert", &pgconn.PgError{Code: "23503"}, domain.ErrDomainNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)

			mock.ExpectQuery(selectDomain).WillReturnRows(domainRows())
			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO "mail_users"`).WillReturnError(tt.dbErr)
			mock.ExpectRollback()

			err := store.CreateMailUser(ctx, &domain.MailUser{ID: "u2", Username: "alice", DomainID: "d1", Active: true})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("inserted", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(selectDomain).WillReturnRows(domainRows())
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "mail_users"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		u := &domain.MailUser{ID: "u2", Username: "bob", DomainID: "d1", Active: true}
		require.NoError(t, store.CreateMailUser(ctx, u))
		assert.Equal(t, "bob@example.org", u.Email())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown domain", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(selectDomain).WillReturnRows(sqlmock.NewRows([]string{"id"}))

		err := store.CreateMailUser(ctx, &domain.MailUser{ID: "u2", Username: "bob", DomainID: "d9"})
		assert.ErrorIs(t, err, domain.ErrDomainNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_CreateAlias(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectQuery(selectDomain).WillReturnRows(domainRows())
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "aliases"`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := store.CreateAlias(ctx, &domain.Alias{ID: "a1", DomainID: "d1", Source: "@example.org", Destination: "john@example.org", Active: true})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteDomain(t *testing.T) {
	ctx := context.Background()

	t.Run("still owns mail users", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(selectDomainLocked).WillReturnRows(domainRows())
		mock.ExpectQuery(countMailUsers).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectQuery(countAliases).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectRollback()

		assert.ErrorIs(t, store.DeleteDomain(ctx, "d1"), domain.ErrDomainInUse)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty domain", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(selectDomainLocked).WillReturnRows(domainRows())
		mock.ExpectQuery(countMailUsers).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(countAliases).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`DELETE FROM "domains" WHERE id = \$1`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, store.DeleteDomain(ctx, "d1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown domain", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(selectDomainLocked).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		assert.ErrorIs(t, store.DeleteDomain(ctx, "d9"), domain.ErrDomainNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_SetDomainActive_Missing(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "domains" SET "active"=\$1 WHERE id = \$2`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "domains" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	assert.ErrorIs(t, store.SetDomainActive(ctx, "d9", false), domain.ErrDomainNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

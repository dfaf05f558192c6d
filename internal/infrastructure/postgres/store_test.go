package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, nil), mock
}

func TestStoreGet(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM console_kv WHERE key = $1`)).
		WithArgs(domain.SessionStorageKey).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"status":"authorized"}`)))

	got, err := s.Get(context.Background(), domain.SessionStorageKey)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"authorized"}`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM console_kv WHERE key = $1`)).
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStoreSetUpserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO console_kv`)).
		WithArgs(domain.TenantStorageKey, []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), domain.TenantStorageKey, []byte(`{}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeleteWrapsErrors(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM console_kv WHERE key = $1`)).
		WithArgs("k").
		WillReturnError(boom)

	err := s.Delete(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
}

func TestEnsureSchema(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS console_kv`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

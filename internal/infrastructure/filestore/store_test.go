package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, domain.SessionStorageKey, []byte(`{"status":"authorized"}`)))

	raw, err := os.ReadFile(filepath.Join(dir, "auth-storage.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"status":"authorized"}`, string(raw))

	got, err := s.Get(ctx, domain.SessionStorageKey)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"authorized"}`, string(got))

	require.NoError(t, s.Delete(ctx, domain.SessionStorageKey))
	_, err = s.Get(ctx, domain.SessionStorageKey)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	// second delete is a no-op
	assert.NoError(t, s.Delete(ctx, domain.SessionStorageKey))
}

func TestSealedRecordsAreNotReadable(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, WithSecret("correct horse"))
	require.NoError(t, err)
	require.True(t, s.Sealed())
	ctx := context.Background()

	secret := []byte(`{"token":"eyJhbGciOi"}`)
	require.NoError(t, s.Set(ctx, domain.SessionStorageKey, secret))

	raw, err := os.ReadFile(filepath.Join(dir, "auth-storage.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "eyJhbGciOi")

	got, err := s.Get(ctx, domain.SessionStorageKey)
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	other, err := New(dir, WithSecret("wrong"))
	require.NoError(t, err)
	_, err = other.Get(ctx, domain.SessionStorageKey)
	assert.ErrorIs(t, err, ErrSealedRecord)
}

func TestPing(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "nested")))
	assert.Error(t, s.Ping(context.Background()))
}

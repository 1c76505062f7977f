package token_test

import (
	"path/filepath"
	"testing"

	"github.com/habedi/oidckit/pkg/autherr"
	"github.com/habedi/oidckit/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeRoundTrip(t *testing.T, s token.Storage) {
	t.Helper()
	want := map[string]token.Token{
		token.KeyIDToken:     validToken(token.KindID, "id-raw", 5000),
		token.KeyAccessToken: validToken(token.KindAccess, "access-raw", 6000),
	}

	require.NoError(t, s.SetAll(want))
	got, err := s.GetAll()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A second write replaces the whole map.
	smaller := map[string]token.Token{
		token.KeyIDToken: validToken(token.KindID, "id-raw-2", 7000),
	}
	require.NoError(t, s.SetAll(smaller))
	got, err = s.GetAll()
	require.NoError(t, err)
	assert.Equal(t, smaller, got)

	require.NoError(t, s.Clear())
	got, err = s.GetAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStorage_RoundTrip(t *testing.T) {
	storeRoundTrip(t, token.NewMemoryStorage())
}

func TestFileStorage_RoundTrip(t *testing.T) {
	s, err := token.NewFileStorage(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	storeRoundTrip(t, s)
}

func TestSQLiteStorage_RoundTrip(t *testing.T) {
	s, err := token.NewSQLiteStorage(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	defer s.Close()
	storeRoundTrip(t, s)
}

func TestFileStorage_EmptyOnFirstRead(t *testing.T) {
	s, err := token.NewFileStorage(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	got, err := s.GetAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectStorage_UnknownKind(t *testing.T) {
	_, err := token.SelectStorage("cloud", t.TempDir())

	require.Error(t, err)
	assert.True(t, autherr.IsKind(err, autherr.Validation))
}

func TestSelectStorage_ExplicitKinds(t *testing.T) {
	dir := t.TempDir()

	s, err := token.SelectStorage(token.StorageMemory, dir)
	require.NoError(t, err)
	assert.IsType(t, &token.MemoryStorage{}, s)

	s, err = token.SelectStorage(token.StorageFile, dir)
	require.NoError(t, err)
	assert.IsType(t, &token.FileStorage{}, s)
}

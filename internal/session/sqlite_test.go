package session

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersister(t *testing.T, passphrase string) (*SQLitePersister, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "session.db")
	p, err := NewSQLitePersister(dbPath, DeriveKey(passphrase))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, dbPath
}

func TestSQLiteRoundTrip(t *testing.T) {
	p, dbPath := newTestPersister(t, "hunter2")

	rec := Record{
		AccessToken: "token",
		ExpiresAt:   1700000000000,
		User:        &AuthUser{ID: "u1", Email: "a@b.c", Nickname: "al", Role: "admin"},
	}
	require.NoError(t, p.Save(rec))

	// Same process
	got, err := p.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec, *got)

	// Fresh connection, as after a process restart
	p2, err := NewSQLitePersister(dbPath, DeriveKey("hunter2"))
	require.NoError(t, err)
	defer p2.Close()

	got, err = p2.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec, *got)
}

func TestSQLiteLoadMissing(t *testing.T) {
	p, _ := newTestPersister(t, "hunter2")

	got, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteDelete(t *testing.T) {
	p, _ := newTestPersister(t, "hunter2")

	require.NoError(t, p.Save(Record{AccessToken: "token"}))
	require.NoError(t, p.Delete())

	got, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteWrongKeyFailsClosed(t *testing.T) {
	p, dbPath := newTestPersister(t, "hunter2")
	require.NoError(t, p.Save(Record{AccessToken: "token"}))

	p2, err := NewSQLitePersister(dbPath, DeriveKey("not-hunter2"))
	require.NoError(t, err)
	defer p2.Close()

	_, err = p2.Load()
	assert.Error(t, err)
}

func TestSQLiteHydrateRoundTripThroughStore(t *testing.T) {
	p, dbPath := newTestPersister(t, "hunter2")

	rec := Record{
		AccessToken: "token",
		ExpiresAt:   42,
		User:        &AuthUser{ID: "u1", Email: "a@b.c"},
	}
	NewStore(p).Set(rec)

	p2, err := NewSQLitePersister(dbPath, DeriveKey("hunter2"))
	require.NoError(t, err)
	defer p2.Close()

	assert.Equal(t, rec, NewStore(p2).Hydrate())
}

func TestSQLiteInstallationIDStable(t *testing.T) {
	p, dbPath := newTestPersister(t, "hunter2")

	id, err := p.InstallationID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	again, err := p.InstallationID()
	require.NoError(t, err)
	assert.Equal(t, id, again)

	p2, err := NewSQLitePersister(dbPath, DeriveKey("hunter2"))
	require.NoError(t, err)
	defer p2.Close()

	afterReopen, err := p2.InstallationID()
	require.NoError(t, err)
	assert.Equal(t, id, afterReopen)
}

func TestSQLiteCookies(t *testing.T) {
	p, _ := newTestPersister(t, "hunter2")

	got, err := p.LoadCookies()
	require.NoError(t, err)
	assert.Nil(t, got)

	cookies := []*http.Cookie{{Name: "refreshToken", Value: "secret"}}
	require.NoError(t, p.SaveCookies(cookies))

	got, err = p.LoadCookies()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "refreshToken", got[0].Name)
	assert.Equal(t, "secret", got[0].Value)

	require.NoError(t, p.DeleteCookies())
	got, err = p.LoadCookies()
	require.NoError(t, err)
	assert.Nil(t, got)
}

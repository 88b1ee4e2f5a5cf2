package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialManager(t *testing.T) {
	manager, store := NewMockManager()

	account := &Account{Email: "minji@example.com", Password: "hunter2-cyworld"}
	require.NoError(t, manager.Store(account))
	assert.Equal(t, "minji@example.com", account.Username, "username defaults to email")
	assert.False(t, account.LastModified.IsZero())

	retrieved, err := manager.Retrieve("minji@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.Password, retrieved.Password)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("minji@example.com"))
	_, err = manager.Retrieve("minji@example.com")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Equal(t, 0, store.Count())
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	assert.Error(t, manager.Store(&Account{Password: "x"}))
	assert.Error(t, manager.Store(&Account{Email: "a@b.c"}))
}

func TestManagerFallsThroughUnavailableStores(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = ErrStoreUnavailable
	backing := NewMockStore()
	manager := NewManagerWithStores(NewEnvironmentStore(), failing, backing)

	require.NoError(t, manager.Store(&Account{Email: "a@b.c", Password: "secret"}))
	assert.False(t, failing.Exists("a@b.c"))
	assert.True(t, backing.Exists("a@b.c"))
}

func TestManagerDeleteMissing(t *testing.T) {
	manager, _ := NewMockManager()

	err := manager.Delete("nobody")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	now := time.Now()
	require.NoError(t, older.Store(&Account{Username: "u", Email: "u@x", Password: "old", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Account{Username: "u", Email: "u@x", Password: "new", LastModified: now}))
	require.NoError(t, newer.Store(&Account{Username: "v", Email: "v@x", Password: "v", LastModified: now.Add(-2 * time.Hour)}))

	accounts, err := NewManagerWithStores(older, newer).List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "u", accounts[0].Username)
	assert.Equal(t, "new", accounts[0].Password)
	assert.Equal(t, "v", accounts[1].Username)
}

func TestRetrieveDefault(t *testing.T) {
	t.Run("environment wins", func(t *testing.T) {
		t.Setenv(EnvEmail, "env@example.com")
		t.Setenv(EnvPassword, "envpass")

		manager, store := NewMockManager()
		manager.stores = append([]CredentialStore{NewEnvironmentStore()}, manager.stores...)
		require.NoError(t, store.Store(&Account{Username: "s", Email: "s@x", Password: "p", LastModified: time.Now()}))

		account, err := manager.RetrieveDefault()
		require.NoError(t, err)
		assert.Equal(t, "env@example.com", account.Email)
	})

	t.Run("most recent stored", func(t *testing.T) {
		t.Setenv(EnvEmail, "")
		t.Setenv(EnvPassword, "")

		store := NewMockStore()
		now := time.Now()
		require.NoError(t, store.Store(&Account{Username: "a", Email: "a@x", Password: "p", LastModified: now.Add(-time.Minute)}))
		require.NoError(t, store.Store(&Account{Username: "b", Email: "b@x", Password: "p", LastModified: now}))

		account, err := NewManagerWithStores(NewEnvironmentStore(), store).RetrieveDefault()
		require.NoError(t, err)
		assert.Equal(t, "b", account.Username)
	})

	t.Run("nothing stored", func(t *testing.T) {
		t.Setenv(EnvEmail, "")
		t.Setenv(EnvPassword, "")

		_, err := NewManagerWithStores(NewEnvironmentStore(), NewMockStore()).RetrieveDefault()
		assert.ErrorIs(t, err, ErrCredentialsNotFound)
	})
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(EnvPassphrase, "test-passphrase")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	account := &Account{Username: "minji", Email: "minji@example.com", Password: "plaintext-password", LastModified: time.Now()}
	require.NoError(t, store.Store(account))
	assert.True(t, store.Exists("minji"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte("plaintext-password")), "password must not be stored in clear")
	assert.False(t, bytes.Contains(raw, []byte("minji@example.com")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Retrieve("minji")
	require.NoError(t, err)
	assert.Equal(t, "plaintext-password", got.Password)

	accounts, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, reopened.Delete("minji"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file is removed with the last account")
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(EnvPassphrase, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "u", Email: "u@x", Password: "p"}))

	t.Setenv(EnvPassphrase, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("u")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCredentialsNotFound))
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(EnvEmail, "")
	t.Setenv(EnvPassword, "")
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	t.Setenv(EnvEmail, "env@example.com")
	t.Setenv(EnvPassword, "envpass")

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", account.Username)
	assert.Equal(t, "envpass", account.Password)

	assert.True(t, store.Exists("env@example.com"))
	assert.False(t, store.Exists("other@example.com"))
	assert.ErrorIs(t, store.Store(account), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("env@example.com"), ErrStoreUnavailable)
}

func TestMockStoreErrorInjection(t *testing.T) {
	store := NewMockStore()
	injected := errors.New("boom")
	store.RetrieveError = injected

	_, err := store.Retrieve("x")
	assert.ErrorIs(t, err, injected)
	assert.ErrorIs(t, store.Store(nil), ErrInvalidCredentials)
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Username: "minji", Email: "minji@example.com", Password: "averylongpassword"}

	sanitized := SanitizeAccount(account)
	assert.Equal(t, "minji", sanitized.Username)
	assert.Equal(t, "minji@example.com", sanitized.Email)
	assert.Equal(t, "av...rd", sanitized.Password)
	assert.Equal(t, "******", SanitizeAccount(&Account{Password: "short"}).Password)
	assert.Nil(t, SanitizeAccount(nil))
}

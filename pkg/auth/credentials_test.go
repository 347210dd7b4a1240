package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStoreAndRetrieve(t *testing.T) {
	manager, _ := NewMockManager()

	account := &Account{Username: "octocat", Token: "ghp_secret"}
	require.NoError(t, manager.Store(account))

	retrieved, err := manager.Retrieve("octocat")
	require.NoError(t, err)
	assert.Equal(t, "octocat", retrieved.Username)
	assert.Equal(t, "ghp_secret", retrieved.Token)
	assert.False(t, retrieved.LastModified.IsZero())
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	assert.Error(t, manager.Store(&Account{Token: "ghp_x"}))
	assert.Error(t, manager.Store(&Account{Username: "octocat"}))
}

func TestManagerStoreFallsBack(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = errors.New("keychain locked")
	working := NewMockStore()

	manager := NewMockManagerWithStores(failing, working)

	require.NoError(t, manager.Store(&Account{Username: "octocat", Token: "ghp_x"}))
	assert.True(t, working.Exists("octocat"))
}

func TestManagerRetrieveNotFound(t *testing.T) {
	manager, _ := NewMockManager()

	_, err := manager.Retrieve("ghost")
	assert.Error(t, err)
}

func TestManagerListMergesNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()

	require.NoError(t, older.Store(&Account{Username: "octocat", Token: "ghp_old", LastModified: time.Now().Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Account{Username: "octocat", Token: "ghp_new", LastModified: time.Now()}))

	manager := NewMockManagerWithStores(older, newer)

	accounts, err := manager.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "ghp_new", accounts[0].Token)
}

func TestManagerDelete(t *testing.T) {
	manager, store := NewMockManager()

	require.NoError(t, manager.Store(&Account{Username: "octocat", Token: "ghp_x"}))
	require.NoError(t, manager.Delete("octocat"))
	assert.False(t, store.Exists("octocat"))

	assert.Error(t, manager.Delete("octocat"))
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("GITHUB_USER", "octocat")
	t.Setenv("PERSONAL_GITHUB_TOKEN", "ghp_env")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "octocat", account.Username)
	assert.Equal(t, "ghp_env", account.Token)

	// A different username does not match the environment identity
	_, err = store.Retrieve("someoneelse")
	assert.Error(t, err)

	assert.Error(t, store.Store(account))
	assert.Error(t, store.Delete("octocat"))
}

func TestEnvironmentStoreMissingToken(t *testing.T) {
	t.Setenv("GITHUB_USER", "octocat")
	t.Setenv("PERSONAL_GITHUB_TOKEN", "")
	t.Setenv("FOLLOWBACK_TOKEN", "")

	store := NewEnvironmentStore()
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{
		Username: "octocat",
		Token:    "ghp_1234567890abcdef",
	}

	sanitized := SanitizeAccount(account)
	assert.Equal(t, "octocat", sanitized.Username)
	assert.Equal(t, "ghp_...cdef", sanitized.Token)
	// Original untouched
	assert.Equal(t, "ghp_1234567890abcdef", account.Token)

	short := SanitizeAccount(&Account{Username: "x", Token: "tiny"})
	assert.Equal(t, "********", short.Token)

	assert.Nil(t, SanitizeAccount(nil))
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("FOLLOWBACK_PASSPHRASE", "test-passphrase")

	store, err := NewEncryptedFileStore(t.TempDir() + "/credentials.enc")
	require.NoError(t, err)

	account := &Account{Username: "octocat", Token: "ghp_secret", LastModified: time.Now()}
	require.NoError(t, store.Store(account))

	retrieved, err := store.Retrieve("octocat")
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", retrieved.Token)

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, store.Delete("octocat"))
	_, err = store.Retrieve("octocat")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/credentials.enc"

	t.Setenv("FOLLOWBACK_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "octocat", Token: "ghp_secret"}))

	t.Setenv("FOLLOWBACK_PASSPHRASE", "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	_, err = other.Retrieve("octocat")
	assert.Error(t, err)
}

package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the contract every TokenStore must satisfy.
func exerciseStore(t *testing.T, store TokenStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.Save(ctx, "first"))
	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", token)

	require.NoError(t, store.Save(ctx, "second"))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.Delete(ctx), "deleting twice is not an error")
}

func TestMemoryTokenStore(t *testing.T) {
	exerciseStore(t, NewMemoryTokenStore())
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	exerciseStore(t, NewFileTokenStore(path))
}

func TestFileTokenStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store := NewFileTokenStore(path)

	require.NoError(t, store.Save(context.Background(), "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileTokenStoreBlankFileIsNoToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	_, err := NewFileTokenStore(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestEncryptedTokenStore(t *testing.T) {
	inner := NewMemoryTokenStore()
	exerciseStore(t, NewEncryptedTokenStore(inner, "correct horse"))

	ctx := context.Background()
	store := NewEncryptedTokenStore(inner, "correct horse")
	require.NoError(t, store.Save(ctx, "abc.def.ghi"))

	raw, err := inner.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, raw, "abc.def.ghi")
	assert.Contains(t, raw, sealedPrefix)

	_, err = NewEncryptedTokenStore(inner, "wrong").Load(ctx)
	assert.ErrorIs(t, err, ErrTokenCorrupt)
}

func TestEncryptedTokenStoreCachesKey(t *testing.T) {
	var derivations int
	deriveKey = func(passphrase, salt []byte) *[32]byte {
		derivations++
		return argon2Key(passphrase, salt)
	}
	t.Cleanup(func() { deriveKey = argon2Key })

	ctx := context.Background()
	inner := NewMemoryTokenStore()
	store := NewEncryptedTokenStore(inner, "correct horse")

	require.NoError(t, store.Save(ctx, "abc.def.ghi"))
	for range 5 {
		token, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc.def.ghi", token)
	}
	assert.Equal(t, 1, derivations, "only the save derives a key")

	// A token written by another process is decrypted once, then cached.
	other := NewEncryptedTokenStore(inner, "correct horse")
	require.NoError(t, other.Save(ctx, "rotated"))
	derivations = 0
	for range 3 {
		token, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "rotated", token)
	}
	assert.Equal(t, 1, derivations)

	require.NoError(t, store.Delete(ctx))
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestOpenTokenRejectsGarbage(t *testing.T) {
	for _, sealed := range []string{"plain-token", "v1:!!!", "v1:AAAA"} {
		_, err := openToken([]byte("pw"), sealed)
		assert.ErrorIs(t, err, ErrTokenCorrupt, sealed)
	}
}

func TestRedisTokenStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisTokenStore(client, "storefront")
	exerciseStore(t, store)

	require.NoError(t, store.Save(context.Background(), "xyz"))
	got, err := mr.Get("storefront:token")
	require.NoError(t, err)
	assert.Equal(t, "xyz", got)
}

func TestRedisTokenStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedisTokenStore(client, "storefront").Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoToken)
}

// setupTestDB connects to a PostgreSQL database for testing.
// It skips the test if the connection cannot be established.
func setupTestDB(t testing.TB) *sqlx.DB {
	t.Helper()

	connStr := os.Getenv("STOREFRONT_TEST_DATABASE_URL")
	if connStr == "" {
		host := os.Getenv("PGHOST")
		if host == "" {
			host = "localhost"
		}
		connStr = fmt.Sprintf("host=%s port=5432 user=user password=password dbname=testdb sslmode=disable", host)
	}

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping postgres tests: could not connect to postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresTokenStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	store := NewPostgresTokenStore(db, "storefront-test")
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.Delete(ctx))

	exerciseStore(t, store)
}

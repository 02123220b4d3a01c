// internal/session/store_test.go
package session

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"marketplace-console/internal/common/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStores_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "marketplace")

	stores := map[string]TokenStore{
		"memory": NewMemoryTokenStore(""),
		"file":   NewFileTokenStore(filepath.Join(t.TempDir(), "nested", "token.json"), "token"),
		"redis":  NewRedisTokenStore(rdb, "token"),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			token, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, token)

			require.NoError(t, store.Save(ctx, "abc"))
			token, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "abc", token)

			require.NoError(t, store.Clear(ctx))
			require.NoError(t, store.Clear(ctx))
			token, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, token)
		})
	}
}

func TestRedisTokenStore_UsesPrefixedKey(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "marketplace")
	store := NewRedisTokenStore(rdb, "token")

	require.NoError(t, store.Save(context.Background(), "abc"))
	got, err := mr.Get("marketplace:token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestRedisTokenStore_Failures(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisTokenStore(database.NewRedisFromClient(db, "marketplace"), "token")
	boom := stderrors.New("connection reset")

	mock.ExpectGet("marketplace:token").SetErr(boom)
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, boom)

	mock.ExpectSet("marketplace:token", "abc", 0).SetErr(boom)
	assert.ErrorIs(t, store.Save(context.Background(), "abc"), boom)

	mock.ExpectDel("marketplace:token").SetErr(boom)
	assert.ErrorIs(t, store.Clear(context.Background()), boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileTokenStore_KeepsOtherKeysAndPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"theme":"dark"}`), 0o600))

	store := NewFileTokenStore(path, "token")
	require.NoError(t, store.Save(context.Background(), "abc"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark","token":"abc"}`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.Clear(context.Background()))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(data))
}

func TestFileTokenStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	store := NewFileTokenStore(path, "token")
	_, err := store.Load(context.Background())
	assert.Error(t, err)

	require.NoError(t, store.Save(context.Background(), "fresh"))
	token, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
}

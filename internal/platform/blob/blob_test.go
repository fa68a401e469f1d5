package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type document struct {
	SKU   string `json:"sku"`
	Level int    `json:"stockLevel"`
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var missing []document
	require.NoError(t, LoadJSON(ctx, store, "inventory", &missing))
	require.Nil(t, missing)

	require.NoError(t, SaveJSON(ctx, store, "inventory", []document{{SKU: "A-1", Level: 4}}))
	var loaded []document
	require.NoError(t, LoadJSON(ctx, store, "inventory", &loaded))
	require.Equal(t, []document{{SKU: "A-1", Level: 4}}, loaded)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Put(ctx, "k", []byte("abc")))

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	value[0] = 'x'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again))
}

func TestRedisRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	ctx := context.Background()
	store := NewRedis(client)

	_, err := store.Get(ctx, Key("wareneingang", "inventory"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SaveJSON(ctx, store, Key("wareneingang", "inventory"), []document{{SKU: "B-2", Level: 9}}))
	raw, err := mr.Get("wareneingang:inventory")
	require.NoError(t, err)
	require.JSONEq(t, `[{"sku":"B-2","stockLevel":9}]`, raw)

	var loaded []document
	require.NoError(t, LoadJSON(ctx, store, "wareneingang:inventory", &loaded))
	require.Equal(t, 9, loaded[0].Level)
}

func TestLoadJSONRejectsCorruptDocument(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Put(ctx, "inventory", []byte("{not json")))

	var loaded []document
	require.Error(t, LoadJSON(ctx, store, "inventory", &loaded))
}

func TestFileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFile(dir)
	require.NoError(t, err)

	_, err = store.Get(ctx, Key("wareneingang", "inventory"))
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, SaveJSON(ctx, store, Key("wareneingang", "inventory"), []document{{SKU: "C-3", Level: 2}}))
	require.FileExists(t, filepath.Join(dir, "wareneingang.inventory.json"))

	reopened, err := NewFile(dir)
	require.NoError(t, err)
	var loaded []document
	require.NoError(t, LoadJSON(ctx, reopened, Key("wareneingang", "inventory"), &loaded))
	require.Equal(t, []document{{SKU: "C-3", Level: 2}}, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

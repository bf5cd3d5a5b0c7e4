package fs

import (
	"context"
	"testing"

	"github.com/m-p-esser/data-job-pipeline/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "raw/successful/search_1.json", []byte(`{"a":1}`)))

	data, err := s.Load(ctx, "raw/successful/search_1.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), data)
}

func TestStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load(context.Background(), "raw/missing.json")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Overwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "key.json", []byte("first")))
	require.NoError(t, s.Save(ctx, "key.json", []byte("second")))

	data, err := s.Load(ctx, "key.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestStore_ListByPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "raw/successful/search_2.json", []byte("b")))
	require.NoError(t, s.Save(ctx, "raw/successful/search_1.json", []byte("a")))
	require.NoError(t, s.Save(ctx, "raw/error/search_3.json", []byte("c")))
	require.NoError(t, s.Save(ctx, "processed/metadata_1.json", []byte("d")))

	keys, err := s.List(ctx, "raw/successful/")
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/successful/search_1.json", "raw/successful/search_2.json"}, keys)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "key.json", []byte("data")))
	require.NoError(t, s.Delete(ctx, "key.json"))

	_, err := s.Load(ctx, "key.json")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "key.json"), store.ErrNotFound)
}

func TestStore_RejectsEscapingKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Save(ctx, "../outside.json", []byte("x")), store.ErrInvalidKey)
	assert.ErrorIs(t, s.Save(ctx, "", []byte("x")), store.ErrInvalidKey)

	_, err := s.Load(ctx, "a/../../outside.json")
	assert.ErrorIs(t, err, store.ErrInvalidKey)
}

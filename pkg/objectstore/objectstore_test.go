package objectstore

import (
	"context"
	"testing"

	"github.com/cuemby/chronodb/pkg/codec"
	"github.com/cuemby/chronodb/pkg/kv/boltkv"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	kvs, err := boltkv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, kvs.Close()) })

	s := New(kvs)
	content := codec.Sha1([]byte("doc bytes"))

	_, ok, err := s.Get(ctx, content)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, content, []byte("doc bytes")))
	got, ok, err := s.Get(ctx, content)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("doc bytes"), got)

	has, err := s.Has(ctx, content)
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, s.Delete(ctx, []codec.Hash{content}))
	_, ok, err = s.Get(ctx, content)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	kvs, err := boltkv.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, kvs.Close()) })

	s := New(kvs)
	content := codec.Sha1([]byte("x"))
	require.NoError(t, s.Put(ctx, content, []byte("x")))
	require.NoError(t, s.Put(ctx, content, []byte("x")))

	got, ok, err := s.Get(ctx, content)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("x"), got)
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreAppendThenLatest(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, []byte("tx1")))
	require.NoError(t, s.Append(ctx, []byte("tx2")))

	snapshot, trailing, err := s.Latest(ctx)
	require.NoError(t, err)
	require.Nil(t, snapshot)
	require.Len(t, trailing, 2)
	require.Equal(t, []byte("tx1"), trailing[0].Data)
	require.Equal(t, []byte("tx2"), trailing[1].Data)
}

func TestFileStoreReplaceCompactsTrailing(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, []byte("tx1")))
	require.NoError(t, s.Replace(ctx, []byte("snap1")))

	snapshot, trailing, err := s.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("snap1"), snapshot)
	require.Empty(t, trailing)
}

func TestFileStoreReopenPreservesSequence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Append(ctx, []byte("tx1")))

	s2, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, s2.Append(ctx, []byte("tx2")))

	_, trailing, err := s2.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, trailing, 2)
	require.Equal(t, uint64(1), trailing[0].Seq)
	require.Equal(t, uint64(2), trailing[1].Seq)
}

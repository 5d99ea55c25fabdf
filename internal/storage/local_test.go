package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_WriteAndDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	l := NewLocal(root)
	ctx := context.Background()

	require.NoError(t, l.EnsureDirectory(ctx, "."))
	require.NoError(t, l.EnsureDirectory(ctx, "."), "ensure is idempotent")
	require.NoError(t, l.WriteFile(ctx, "a.png", []byte("png")))

	got, err := os.ReadFile(filepath.Join(root, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), got)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, l.DeleteFile(ctx, "a.png"))
	_, err = os.Stat(filepath.Join(root, "a.png"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, l.DeleteFile(ctx, "a.png"), "missing file is ignored")
}

func TestLocal_WriteWithoutDirectoryFails(t *testing.T) {
	l := NewLocal(filepath.Join(t.TempDir(), "missing"))
	err := l.WriteFile(context.Background(), "a.png", []byte("png"))
	assert.ErrorIs(t, err, ErrIO)
}

func TestLocal_NamesStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	l := NewLocal(root)
	assert.Equal(t, filepath.Join(root, "passwd"), l.resolve("../../passwd"))
	assert.Equal(t, root, l.resolve("."))
}

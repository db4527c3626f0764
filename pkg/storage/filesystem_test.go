package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilesystemBackend(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")
	b, err := NewFilesystemBackend(root)
	require.NoError(t, err)
	assert.Equal(t, "filesystem", b.Name())
	assert.DirExists(t, root)
	assert.NoError(t, b.Ping(context.Background()))

	_, err = NewFilesystemBackend("")
	assert.Error(t, err)
}

func TestFilesystemBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)

	key := "tenants/tenant_1/files/a.pdf"
	require.NoError(t, b.Put(ctx, key, []byte("%PDF-1.7"), "application/pdf"))

	ok, err := b.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := b.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)

	deleted, err := b.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = b.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, deleted)

	ok, err = b.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.Get(ctx, key)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestFilesystemBackend_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	b, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "tenants/../../secret", "../x"} {
		t.Run(key, func(t *testing.T) {
			assert.Error(t, b.Put(ctx, key, []byte("x"), "text/plain"))
			_, err := b.Get(ctx, key)
			assert.Error(t, err)
		})
	}
}

func TestFilesystemBackend_Walk(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b, err := NewFilesystemBackend(root)
	require.NoError(t, err)

	require.NoError(t, b.Put(ctx, "tenants/tenant_1/files/a.pdf", []byte("12345"), ""))
	require.NoError(t, b.Put(ctx, "tenants/tenant_1/documents/2024/b.png", []byte("123"), ""))
	require.NoError(t, b.Put(ctx, "tenants/tenant_10/files/c.pdf", []byte("1"), ""))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tenants", "tenant_1", "files", ".upload-123"), []byte("partial"), 0644))

	var keys []string
	var total int64
	err = b.Walk(ctx, "tenants/tenant_1/", func(key string, size int64) error {
		keys = append(keys, key)
		total += size
		return nil
	})
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"tenants/tenant_1/documents/2024/b.png", "tenants/tenant_1/files/a.pdf"}, keys)
	assert.Equal(t, int64(8), total)

	err = b.Walk(ctx, "tenants/tenant_404/", func(string, int64) error {
		t.Fatal("no blobs expected")
		return nil
	})
	assert.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = b.Walk(cancelled, "tenants/tenant_1/", func(string, int64) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilesystemBackend_PingMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	b, err := NewFilesystemBackend(root)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	assert.Error(t, b.Ping(context.Background()))
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

var (
	tenantOne = &tenant.Tenant{ID: 1, Slug: "one"}
	tenantTen = &tenant.Tenant{ID: 10, Slug: "ten"}
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *FilesystemBackend) {
	t.Helper()
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	return NewStore(backend, opts...), backend
}

func pdf(n int) UploadRequest {
	return UploadRequest{
		Data:          bytes.Repeat([]byte("x"), n),
		OriginalName:  "Report Q1.PDF",
		MimeType:      "application/pdf",
		DirectoryHint: "files",
	}
}

func TestValidateType(t *testing.T) {
	tests := []struct {
		mime string
		ext  string
		want bool
	}{
		{"application/pdf", "pdf", true},
		{"application/pdf; charset=binary", ".PDF", true},
		{"image/jpeg", "jpg", true},
		{"image/jpeg", "jpeg", true},
		{"image/png", "png", true},
		{"application/msword", "doc", true},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "docx", true},
		{"application/vnd.ms-excel", "xls", true},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", true},
		{"application/zip", "zip", true},
		{"application/x-msdownload", "exe", false},
		{"application/pdf", "exe", false},
		{"application/x-msdownload", "pdf", false},
		{"text/html", "html", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.mime+"/"+tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateType(tt.mime, tt.ext))
		})
	}
}

func TestStore_UploadSizeLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	assert.Equal(t, int64(15*1024*1024), MaxSize())

	stored, err := s.Upload(ctx, tenantOne, pdf(int(MaxSize())))
	require.NoError(t, err)
	assert.Equal(t, MaxSize(), stored.Size)

	_, err = s.Upload(ctx, tenantOne, pdf(int(MaxSize())+1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, "file_size", apperrors.RuleOf(err))
	assert.Equal(t, "the file may not be larger than 15 MB", apperrors.PublicMessage(err))

	replace := pdf(int(MaxSize()) + 1)
	replace.MaxSize = s.MaxReplaceSize()
	_, err = s.Upload(ctx, tenantOne, replace)
	assert.NoError(t, err, "the replace limit is larger")
}

func TestStore_UploadRejectsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)

	exe := UploadRequest{Data: []byte("MZ"), OriginalName: "setup.exe", MimeType: "application/x-msdownload"}
	_, err := s.Upload(ctx, tenantOne, exe)
	assert.ErrorIs(t, err, ErrTypeNotAllowed)

	exe.Data = bytes.Repeat([]byte("x"), int(MaxSize())*2)
	_, err = s.Upload(ctx, tenantOne, exe)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = s.Upload(ctx, tenantOne, UploadRequest{OriginalName: "a.pdf", MimeType: "application/pdf"})
	assert.ErrorIs(t, err, ErrEmptyFile)

	var count int
	require.NoError(t, backend.Walk(ctx, "tenants/", func(string, int64) error {
		count++
		return nil
	}))
	assert.Zero(t, count)
}

func TestStore_KeysAreTenantNamespaced(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.newID = func() string { return "abc123" }

	one, err := s.Upload(ctx, tenantOne, pdf(10))
	require.NoError(t, err)
	ten, err := s.Upload(ctx, tenantTen, pdf(10))
	require.NoError(t, err)

	assert.Equal(t, "tenants/tenant_1/files/20240301120000_abc123.pdf", one.StorageKey)
	assert.Equal(t, "tenants/tenant_10/files/20240301120000_abc123.pdf", ten.StorageKey)
	assert.False(t, strings.HasPrefix(ten.StorageKey, tenantOne.StoragePrefix()+"/"))

	assert.True(t, KeyBelongsTo(tenantOne, one.StorageKey))
	assert.False(t, KeyBelongsTo(tenantOne, ten.StorageKey))
	assert.False(t, KeyBelongsTo(tenantTen, one.StorageKey))

	_, err = s.Get(ctx, tenantOne, ten.StorageKey)
	assert.ErrorIs(t, err, ErrOutsideTenant)
	_, err = s.Exists(ctx, tenantOne, ten.StorageKey)
	assert.ErrorIs(t, err, ErrOutsideTenant)
	_, err = s.Delete(ctx, tenantOne, ten.StorageKey)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorizationDenied))
}

func TestKeyBelongsTo(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"tenants/tenant_1/files/a.pdf", true},
		{"tenants/tenant_1/", false},
		{"tenants/tenant_1", false},
		{"tenants/tenant_10/files/a.pdf", false},
		{"tenants/tenant_1/../tenant_2/files/a.pdf", false},
		{"tenants/tenant_1//a.pdf", false},
		{"/tenants/tenant_1/files/a.pdf", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyBelongsTo(tenantOne, tt.key))
		})
	}
	assert.False(t, KeyBelongsTo(nil, "tenants/tenant_1/files/a.pdf"))
}

func TestSanitizeHint(t *testing.T) {
	assert.Equal(t, "files", sanitizeHint(""))
	assert.Equal(t, "files", sanitizeHint("../.."))
	assert.Equal(t, "documents/2024", sanitizeHint("documents/2024"))
	assert.Equal(t, "etc/passwd", sanitizeHint("/../etc/passwd"))
	assert.Equal(t, "spray_diaries", sanitizeHint("spray diaries"))
	assert.Equal(t, "a/b", sanitizeHint(`a\b`))
}

func TestStore_GetExistsDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	stored, err := s.Upload(ctx, tenantOne, pdf(42))
	require.NoError(t, err)

	ok, err := s.Exists(ctx, tenantOne, stored.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.Get(ctx, tenantOne, stored.StorageKey)
	require.NoError(t, err)
	assert.Len(t, data, 42)

	deleted, err := s.Delete(ctx, tenantOne, stored.StorageKey)
	require.NoError(t, err)
	assert.True(t, deleted)

	ok, err = s.Exists(ctx, tenantOne, stored.StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	data, err = s.Get(ctx, tenantOne, stored.StorageKey)
	require.NoError(t, err, "a missing blob is not an error")
	assert.NotNil(t, data)
	assert.Empty(t, data)
}

type failingBackend struct {
	Backend
}

func (failingBackend) Put(context.Context, string, []byte, string) error {
	return errors.New("disk full")
}

func TestStore_BackendFailureIsStorageKind(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	s := NewStore(failingBackend{backend}, WithMetrics(metrics))

	_, err = s.Upload(context.Background(), tenantOne, pdf(1))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindStorage))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("put", "filesystem", "error")))
}

type slowBackend struct {
	Backend
	walked int
}

func (b *slowBackend) Walk(ctx context.Context, _ string, fn func(string, int64) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		b.walked++
		if err := fn("tenants/tenant_1/files/x.pdf", 10); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStore_Usage(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Upload(ctx, tenantOne, pdf(100))
	require.NoError(t, err)
	_, err = s.Upload(ctx, tenantOne, pdf(50))
	require.NoError(t, err)
	_, err = s.Upload(ctx, tenantTen, pdf(7))
	require.NoError(t, err)

	usage, err := s.Usage(ctx, tenantOne)
	require.NoError(t, err)
	assert.Equal(t, int64(2), usage.Files)
	assert.Equal(t, int64(150), usage.Bytes)
	assert.False(t, usage.Partial)
}

func TestStore_UsageStopsAtBudget(t *testing.T) {
	logger, hook := test.NewNullLogger()
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	slow := &slowBackend{Backend: backend}
	s := NewStore(slow, WithScanBudget(20*time.Millisecond), WithLogger(logger))

	usage, err := s.Usage(context.Background(), tenantOne)
	require.NoError(t, err)
	assert.True(t, usage.Partial)
	assert.Positive(t, usage.Files)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Usage(cancelled, tenantOne)
	assert.True(t, apperrors.IsKind(err, apperrors.KindStorage), "caller cancellation is not a partial result")
}

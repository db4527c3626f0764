package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// DefaultScanBudget bounds a usage scan of one tenant
const DefaultScanBudget = 30 * time.Second

// ErrOutsideTenant is returned for keys outside the tenant's namespace
var ErrOutsideTenant = apperrors.Denied("storage", "the file does not belong to this tenant")

// UploadRequest is one file to store
type UploadRequest struct {
	Data          []byte
	OriginalName  string
	MimeType      string
	DirectoryHint string
	// MaxSize overrides the create limit, e.g. with the replace limit
	MaxSize int64
}

// StoredFile describes a blob written by Upload
type StoredFile struct {
	StorageKey   string `json:"storage_key"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
}

// Usage is the result of a tenant storage scan
type Usage struct {
	Files int64 `json:"files"`
	Bytes int64 `json:"bytes"`
	// Partial is set when the scan ran out of time budget
	Partial bool          `json:"partial"`
	Elapsed time.Duration `json:"elapsed"`
}

// Store namespaces every blob under its tenant's prefix. It is the only
// way the rest of the module touches a Backend.
type Store struct {
	backend        Backend
	maxUploadSize  int64
	maxReplaceSize int64
	scanBudget     time.Duration
	metrics        *observability.Metrics
	logger         logrus.FieldLogger
	now            func() time.Time
	newID          func() string
}

// Option configures a Store
type Option func(*Store)

// WithMetrics records every backend call
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger sets the logger used for reconciliation warnings
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = l }
}

// WithLimits overrides the create and replace size limits
func WithLimits(upload, replace int64) Option {
	return func(s *Store) {
		if upload > 0 {
			s.maxUploadSize = upload
		}
		if replace > 0 {
			s.maxReplaceSize = replace
		}
	}
}

// WithScanBudget overrides the usage scan budget
func WithScanBudget(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.scanBudget = d
		}
	}
}

// NewStore creates a new Store
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:        backend,
		maxUploadSize:  MaxUploadSize,
		maxReplaceSize: MaxReplaceSize,
		scanBudget:     DefaultScanBudget,
		logger:         logrus.StandardLogger(),
		now:            time.Now,
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxSize returns the create limit
func (s *Store) MaxSize() int64 {
	return s.maxUploadSize
}

// MaxReplaceSize returns the content replacement limit
func (s *Store) MaxReplaceSize() int64 {
	return s.maxReplaceSize
}

// BackendName names the configured backend
func (s *Store) BackendName() string {
	return s.backend.Name()
}

// Ping checks the backend, so a Store can back a readiness probe
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Upload validates and stores one file below the tenant prefix. Nothing is
// written when validation fails.
func (s *Store) Upload(ctx context.Context, tc *tenant.Tenant, req UploadRequest) (*StoredFile, error) {
	if err := tc.Validate(); err != nil {
		return nil, apperrors.Internal("storage.Upload", err)
	}

	size := int64(len(req.Data))
	limit := req.MaxSize
	if limit <= 0 {
		limit = s.maxUploadSize
	}
	if size == 0 {
		return nil, ErrEmptyFile
	}
	if size > limit {
		return nil, tooLarge(limit)
	}
	if !ValidateType(req.MimeType, Extension(req.OriginalName)) {
		return nil, ErrTypeNotAllowed
	}

	key := s.generateKey(tc, req.DirectoryHint, req.OriginalName)
	start := time.Now()
	err := s.backend.Put(ctx, key, req.Data, normalizeMimeType(req.MimeType))
	s.observe(ctx, "put", start, err, size)
	if err != nil {
		return nil, apperrors.Storage("storage.Upload", err)
	}

	return &StoredFile{
		StorageKey:   key,
		OriginalName: req.OriginalName,
		Size:         size,
		MimeType:     normalizeMimeType(req.MimeType),
	}, nil
}

// Exists reports whether key is stored for the tenant
func (s *Store) Exists(ctx context.Context, tc *tenant.Tenant, key string) (bool, error) {
	if !KeyBelongsTo(tc, key) {
		return false, ErrOutsideTenant
	}
	start := time.Now()
	ok, err := s.backend.Exists(ctx, key)
	s.observe(ctx, "exists", start, err, 0)
	if err != nil {
		return false, apperrors.Storage("storage.Exists", err)
	}
	return ok, nil
}

// Get returns the stored bytes. A missing blob yields empty bytes rather
// than an error.
func (s *Store) Get(ctx context.Context, tc *tenant.Tenant, key string) ([]byte, error) {
	if !KeyBelongsTo(tc, key) {
		return nil, ErrOutsideTenant
	}
	start := time.Now()
	data, err := s.backend.Get(ctx, key)
	if errors.Is(err, fs.ErrNotExist) {
		err = nil
	}
	s.observe(ctx, "get", start, err, int64(len(data)))
	if err != nil {
		return nil, apperrors.Storage("storage.Get", err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Delete removes key and reports whether it existed
func (s *Store) Delete(ctx context.Context, tc *tenant.Tenant, key string) (bool, error) {
	if !KeyBelongsTo(tc, key) {
		return false, ErrOutsideTenant
	}
	start := time.Now()
	ok, err := s.backend.Delete(ctx, key)
	s.observe(ctx, "delete", start, err, 0)
	if err != nil {
		return false, apperrors.Storage("storage.Delete", err)
	}
	return ok, nil
}

// Usage counts the tenant's blobs. The walk stops after the scan budget and
// the result is then marked Partial.
func (s *Store) Usage(ctx context.Context, tc *tenant.Tenant) (*Usage, error) {
	if err := tc.Validate(); err != nil {
		return nil, apperrors.Internal("storage.Usage", err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, s.scanBudget)
	defer cancel()

	start := time.Now()
	usage := &Usage{}
	err := s.backend.Walk(scanCtx, tc.StoragePrefix()+"/", func(_ string, size int64) error {
		usage.Files++
		usage.Bytes += size
		return nil
	})
	usage.Elapsed = time.Since(start)
	s.observe(ctx, "walk", start, err, 0)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			usage.Partial = true
			s.logger.WithFields(logrus.Fields{
				"tenant_id": tc.ID,
				"files":     usage.Files,
				"budget":    s.scanBudget.String(),
			}).Warn("storage usage scan ran out of time, result is partial")
			return usage, nil
		}
		return nil, apperrors.Storage("storage.Usage", err)
	}
	return usage, nil
}

func (s *Store) observe(ctx context.Context, op string, start time.Time, err error, n int64) {
	s.metrics.RecordStorageOperation(ctx, op, s.backend.Name(), err, time.Since(start), n)
}

// KeyBelongsTo reports whether key lies inside the tenant's namespace
func KeyBelongsTo(tc *tenant.Tenant, key string) bool {
	if tc.Validate() != nil {
		return false
	}
	prefix := tc.StoragePrefix() + "/"
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// generateKey builds tenants/tenant_<id>/<hint>/<timestamp>_<random>.<ext>
func (s *Store) generateKey(tc *tenant.Tenant, hint, originalName string) string {
	name := fmt.Sprintf("%s_%s", s.now().UTC().Format("20060102150405"), s.newID())
	if ext := sanitizeSegment(Extension(originalName)); ext != "" {
		name += "." + ext
	}
	return strings.Join([]string{tc.StoragePrefix(), sanitizeHint(hint), name}, "/")
}

// sanitizeHint keeps a directory hint inside the tenant prefix
func sanitizeHint(hint string) string {
	var parts []string
	for _, seg := range strings.FieldsFunc(hint, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == "." || seg == ".." {
			continue
		}
		if clean := sanitizeSegment(seg); clean != "" {
			parts = append(parts, clean)
		}
	}
	if len(parts) == 0 {
		return "files"
	}
	return strings.Join(parts, "/")
}

func sanitizeSegment(seg string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == '.' || r == ' ':
			return '_'
		}
		return -1
	}, seg)
}

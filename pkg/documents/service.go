package documents

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docvault/pkg/access"
	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/audit"
	"github.com/platinummonkey/docvault/pkg/capability"
	"github.com/platinummonkey/docvault/pkg/filetypes"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/storage"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// ErrFileNotFound matches any missing file or document with errors.Is
var ErrFileNotFound = apperrors.ErrNotFound

// BlobStore is the part of storage.Store the service uses
type BlobStore interface {
	Upload(ctx context.Context, tc *tenant.Tenant, req storage.UploadRequest) (*storage.StoredFile, error)
	Get(ctx context.Context, tc *tenant.Tenant, key string) ([]byte, error)
	Exists(ctx context.Context, tc *tenant.Tenant, key string) (bool, error)
	Delete(ctx context.Context, tc *tenant.Tenant, key string) (bool, error)
	MaxReplaceSize() int64
}

// FileTypeLookup resolves a file type of the tenant
type FileTypeLookup interface {
	Get(ctx context.Context, tc *tenant.Tenant, id int64) (*models.FileType, error)
}

// GrowerLookup checks that a grower exists in the tenant
type GrowerLookup interface {
	Exists(ctx context.Context, tc *tenant.Tenant, id int64) (bool, error)
}

// Upload is the content of a new or replaced file
type Upload struct {
	Data         []byte
	OriginalName string
	MimeType     string
}

// Service runs the file and document lifecycle: every operation checks the
// caller's capability, validates input and keeps rows and blobs consistent.
type Service struct {
	repo      Repository
	store     BlobStore
	builder   *access.Builder
	checker   *capability.Checker
	types     *filetypes.Resolver
	fileTypes FileTypeLookup
	growers   GrowerLookup
	activity  audit.Logger
	metrics   *observability.Metrics
	logger    logrus.FieldLogger
}

// Option configures a Service
type Option func(*Service)

// WithActivityLogger records lifecycle events
func WithActivityLogger(l audit.Logger) Option {
	return func(s *Service) { s.activity = l }
}

// WithMetrics counts decisions and orphaned blobs
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger used for reconciliation problems
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = l }
}

// WithBuilder replaces the default access rules
func WithBuilder(b *access.Builder) Option {
	return func(s *Service) { s.builder = b }
}

// NewService creates a new Service
func NewService(repo Repository, store BlobStore, fileTypes FileTypeLookup, growers GrowerLookup, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		store:     store,
		fileTypes: fileTypes,
		growers:   growers,
		types:     filetypes.NewResolver(),
		activity:  audit.NoOp(),
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.builder == nil {
		s.builder = access.NewBuilder(access.DefaultConfig(), s.types)
	}
	s.checker = capability.NewChecker(s.builder, s.metrics)
	return s
}

// Checker returns the capability checker the service decides with
func (s *Service) Checker() *capability.Checker {
	return s.checker
}

func unrestricted(o *rbac.Oracle) bool {
	return o.IsSuperUser() || o.HasPermission(rbac.PermManageAllFiles)
}

// trashFilter matches the trashed records o may see: all of them with
// delete files, their own with delete own files
func trashFilter(o *rbac.Oracle) query.Predicate {
	switch {
	case unrestricted(o) || o.HasPermission(rbac.PermDeleteFiles):
		return query.True
	case o.HasPermission(rbac.PermDeleteOwnFiles):
		return query.Eq{Field: "uploaded_by", Value: o.UserID()}
	}
	return query.False
}

// List returns the records of kind o may see. A user without any
// applicable grant gets an empty list.
func (s *Service) List(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, opts ListOptions) ([]*models.File, error) {
	if err := tc.Validate(); err != nil {
		return nil, apperrors.Internal("documents.List", err)
	}
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	var filter query.Predicate
	switch opts.Scope {
	case ScopeActive:
		filter = s.builder.Files(tc, o)
	case ScopeTrashed:
		filter = trashFilter(o)
	case ScopeAll:
		filter = query.Or(
			query.And(ScopeActive.Predicate(), s.builder.Files(tc, o)),
			query.And(ScopeTrashed.Predicate(), trashFilter(o)),
		)
	}
	if query.IsFalse(filter) {
		return []*models.File{}, nil
	}
	return s.repo.List(ctx, tc, kind, filter, opts)
}

// Get returns one active record. Inactive records are only returned to
// users who may manage all files; everyone else gets NotFound.
func (s *Service) Get(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, id int64) (*models.File, error) {
	f, err := s.repo.Get(ctx, tc, kind, id, ScopeActive)
	if err != nil {
		return nil, err
	}
	if !f.IsActive {
		if unrestricted(o) {
			return f, nil
		}
		return nil, apperrors.NotFound("documents.Get", string(kind))
	}
	if err := s.checker.Authorize(ctx, capability.ActionView, tc, o, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Download returns a record and its content. Content is empty when the
// blob has gone missing.
func (s *Service) Download(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, id int64) (*models.File, []byte, error) {
	f, err := s.Get(ctx, tc, o, kind, id)
	if err != nil {
		return nil, nil, err
	}
	if f.IsActive {
		if err := s.checker.Authorize(ctx, capability.ActionDownload, tc, o, f); err != nil {
			return nil, nil, err
		}
	}

	data, err := s.store.Get(ctx, tc, f.FilePath)
	if err != nil {
		return nil, nil, err
	}
	if len(data) == 0 && f.FileSize > 0 {
		s.log(ctx).WithField("storage_key", f.FilePath).Warn("blob missing for stored file")
	}
	s.record(ctx, tc, o, audit.EventTypeFileDownload, kind, []int64{f.ID}, "downloaded "+f.OriginalFilename)
	return f, data, nil
}

// Create validates attrs, stores the upload and inserts the record with
// its attachments. If the insert fails the stored blob is removed again.
func (s *Service) Create(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, attrs Attributes, upload Upload) (*models.File, error) {
	if err := tc.Validate(); err != nil {
		return nil, apperrors.Internal("documents.Create", err)
	}
	if err := s.checker.Authorize(ctx, capability.ActionUpload, tc, o, nil); err != nil {
		return nil, err
	}

	f := &models.File{Kind: kind, TenantID: tc.ID, IsActive: true, UploadedBy: o.UserID()}
	attrs.apply(f)
	if err := s.validate(ctx, tc, o, f); err != nil {
		return nil, err
	}

	stored, err := s.store.Upload(ctx, tc, storage.UploadRequest{
		Data:          upload.Data,
		OriginalName:  upload.OriginalName,
		MimeType:      upload.MimeType,
		DirectoryHint: kind.Plural(),
	})
	if err != nil {
		return nil, err
	}
	f.FilePath = stored.StorageKey
	f.OriginalFilename = stored.OriginalName
	f.FileSize = stored.Size
	f.MimeType = stored.MimeType

	if err := s.repo.Create(ctx, tc, f); err != nil {
		s.compensate(ctx, tc, stored.StorageKey, err)
		return nil, err
	}

	s.record(ctx, tc, o, audit.EventTypeFileCreate, kind, []int64{f.ID}, "created "+f.Title)
	return f, nil
}

// compensate removes a blob whose record was never written
func (s *Service) compensate(ctx context.Context, tc *tenant.Tenant, key string, cause error) {
	deleted, err := s.store.Delete(context.WithoutCancel(ctx), tc, key)
	if err == nil && deleted {
		s.log(ctx).WithError(cause).WithField("storage_key", key).Info("removed blob of failed insert")
		return
	}
	s.orphaned(ctx, tc, key, err)
}

// orphaned reports a blob that could not be removed
func (s *Service) orphaned(ctx context.Context, tc *tenant.Tenant, key string, err error) {
	s.metrics.RecordOrphanedBlob()
	entry := s.log(ctx).WithField("storage_key", key)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error("orphaned blob needs reconciliation")

	event := audit.NewEvent(ctx, audit.EventTypeBlobOrphaned, tc.ID, 0)
	event.Status = audit.EventStatusFailure
	event.ResourceType = audit.ResourceTypeBlob
	event.Message = "blob could not be removed"
	event.Metadata["storage_key"] = key
	s.logActivity(ctx, event)
}

// Update replaces the editable fields of an active record
func (s *Service) Update(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, id int64, attrs Attributes) (*models.File, error) {
	f, err := s.repo.Get(ctx, tc, kind, id, ScopeActive)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Authorize(ctx, capability.ActionEdit, tc, o, f); err != nil {
		return nil, err
	}

	before := AttributesOf(f)
	attrs.apply(f)
	if err := s.validate(ctx, tc, o, f); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, tc, f); err != nil {
		return nil, err
	}

	event := s.event(ctx, tc, o, audit.EventTypeFileUpdate, kind, []int64{f.ID}, "updated "+f.Title)
	event.Changes = &audit.ChangeDetails{After: changes(before, AttributesOf(f))}
	s.logActivity(ctx, event)
	return f, nil
}

// ReplaceContent swaps the stored content of a record. The new blob is
// written first and the old one removed only after the row points at the
// new one.
func (s *Service) ReplaceContent(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, id int64, upload Upload) (*models.File, error) {
	f, err := s.repo.Get(ctx, tc, kind, id, ScopeActive)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Authorize(ctx, capability.ActionReplaceContent, tc, o, f); err != nil {
		return nil, err
	}

	stored, err := s.store.Upload(ctx, tc, storage.UploadRequest{
		Data:          upload.Data,
		OriginalName:  upload.OriginalName,
		MimeType:      upload.MimeType,
		DirectoryHint: kind.Plural(),
		MaxSize:       s.store.MaxReplaceSize(),
	})
	if err != nil {
		return nil, err
	}

	old := *f
	f.FilePath = stored.StorageKey
	f.OriginalFilename = stored.OriginalName
	f.FileSize = stored.Size
	f.MimeType = stored.MimeType
	if err := s.repo.UpdateContent(ctx, tc, f); err != nil {
		s.compensate(ctx, tc, stored.StorageKey, err)
		return nil, err
	}

	s.removeBlob(ctx, tc, old.FilePath)

	event := s.event(ctx, tc, o, audit.EventTypeFileReplaceContent, kind, []int64{f.ID}, "replaced content of "+f.Title)
	event.Changes = &audit.ChangeDetails{
		Before: map[string]any{"original_filename": old.OriginalFilename, "file_size": old.FileSize},
		After:  map[string]any{"original_filename": f.OriginalFilename, "file_size": f.FileSize},
	}
	s.logActivity(ctx, event)
	return f, nil
}

// SetActive activates or deactivates a record. Deactivated records drop
// out of every access-filtered view.
func (s *Service) SetActive(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, id int64, active bool) error {
	f, err := s.repo.Get(ctx, tc, kind, id, ScopeActive)
	if err != nil {
		return err
	}
	if err := s.checker.Authorize(ctx, capability.ActionEdit, tc, o, f); err != nil {
		return err
	}
	if f.IsActive == active {
		return nil
	}
	if err := s.repo.SetActive(ctx, tc, kind, id, active); err != nil {
		return err
	}

	eventType, verb := audit.EventTypeFileDeactivate, "deactivated "
	if active {
		eventType, verb = audit.EventTypeFileActivate, "activated "
	}
	s.record(ctx, tc, o, eventType, kind, []int64{id}, verb+f.Title)
	return nil
}

// Trash soft-deletes records. Either all of them move or none.
func (s *Service) Trash(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, ids ...int64) error {
	files, err := s.loadAll(ctx, tc, kind, ids, ScopeActive, "documents.Trash")
	if err != nil {
		return err
	}
	if err := s.authorizeAll(ctx, capability.ActionDelete, tc, o, files); err != nil {
		return err
	}
	if err := s.repo.Trash(ctx, tc, kind, idsOf(files)); err != nil {
		return err
	}
	s.record(ctx, tc, o, audit.EventTypeFileTrash, kind, idsOf(files), fmt.Sprintf("trashed %d %s", len(files), kind.Plural()))
	return nil
}

// Restore brings trashed records back unchanged. Either all of them come
// back or none.
func (s *Service) Restore(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, ids ...int64) error {
	files, err := s.loadAll(ctx, tc, kind, ids, ScopeTrashed, "documents.Restore")
	if err != nil {
		return err
	}
	if err := s.authorizeAll(ctx, capability.ActionRestore, tc, o, files); err != nil {
		return err
	}
	if err := s.repo.Restore(ctx, tc, kind, idsOf(files)); err != nil {
		return err
	}
	s.record(ctx, tc, o, audit.EventTypeFileRestore, kind, idsOf(files), fmt.Sprintf("restored %d %s", len(files), kind.Plural()))
	return nil
}

// ForceDelete permanently removes trashed records and their blobs. The
// rows go in one transaction; blobs are removed after it commits and a
// blob that cannot be removed is reported, not fatal.
func (s *Service) ForceDelete(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, kind models.AssetKind, ids ...int64) error {
	files, err := s.loadAll(ctx, tc, kind, ids, ScopeTrashed, "documents.ForceDelete")
	if err != nil {
		return err
	}
	if err := s.authorizeAll(ctx, capability.ActionForceDelete, tc, o, files); err != nil {
		return err
	}
	if err := s.repo.Purge(ctx, tc, kind, idsOf(files)); err != nil {
		return err
	}

	for _, f := range files {
		s.removeBlob(ctx, tc, f.FilePath)
	}
	s.record(ctx, tc, o, audit.EventTypeFileForceDelete, kind, idsOf(files), fmt.Sprintf("permanently deleted %d %s", len(files), kind.Plural()))
	return nil
}

// removeBlob deletes a blob no row refers to any more
func (s *Service) removeBlob(ctx context.Context, tc *tenant.Tenant, key string) {
	if key == "" {
		return
	}
	if _, err := s.store.Delete(context.WithoutCancel(ctx), tc, key); err != nil {
		s.orphaned(ctx, tc, key, err)
	}
}

// loadAll fetches every id within scope or fails with NotFound
func (s *Service) loadAll(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, ids []int64, scope Scope, op string) ([]*models.File, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, apperrors.Validation(op, "ids_required", "select at least one "+string(kind))
	}
	files, err := s.repo.GetMany(ctx, tc, kind, ids, scope)
	if err != nil {
		return nil, err
	}
	if len(files) != len(ids) {
		return nil, apperrors.NotFound(op, string(kind))
	}
	return files, nil
}

func (s *Service) authorizeAll(ctx context.Context, action capability.Action, tc *tenant.Tenant, o *rbac.Oracle, files []*models.File) error {
	for _, f := range files {
		if err := s.checker.Authorize(ctx, action, tc, o, f); err != nil {
			return err
		}
	}
	return nil
}

func idsOf(files []*models.File) []int64 {
	ids := make([]int64, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	return ids
}

func (s *Service) log(ctx context.Context) logrus.FieldLogger {
	return observability.FromContext(ctx, s.logger)
}

func (s *Service) event(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, eventType audit.EventType, kind models.AssetKind, ids []int64, message string) *audit.Event {
	event := audit.NewEvent(ctx, eventType, tc.ID, o.UserID())
	event.ResourceType = audit.ResourceTypeFile
	if kind == models.KindDocument {
		event.ResourceType = audit.ResourceTypeDocument
	}
	event.ResourceIDs = ids
	event.Message = message
	return event
}

func (s *Service) record(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, eventType audit.EventType, kind models.AssetKind, ids []int64, message string) {
	s.logActivity(ctx, s.event(ctx, tc, o, eventType, kind, ids, message))
}

// logActivity never fails the operation that produced event
func (s *Service) logActivity(ctx context.Context, event *audit.Event) {
	if err := s.activity.Log(ctx, event); err != nil {
		s.log(ctx).WithError(err).WithField("event_type", event.EventType).Warn("failed to record activity")
	}
}

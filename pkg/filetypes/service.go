package filetypes

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/audit"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// Store is the persistence the service needs; Repository implements it
type Store interface {
	List(ctx context.Context, tc *tenant.Tenant, filter query.Predicate) ([]*models.FileType, error)
	Create(ctx context.Context, tc *tenant.Tenant, ft *models.FileType) error
	Delete(ctx context.Context, tc *tenant.Tenant, id int64, force bool) error
}

// Filter builds the visibility predicate over file types; access.Builder
// implements it
type Filter interface {
	FileTypes(tc *tenant.Tenant, o *rbac.Oracle, topLevel bool) query.Predicate
}

// Service lists the file types a user may pick and manages the tree
type Service struct {
	store    Store
	filter   Filter
	activity audit.Logger
	logger   logrus.FieldLogger
}

// Option configures a Service
type Option func(*Service)

// WithActivityLogger records file type changes
func WithActivityLogger(l audit.Logger) Option {
	return func(s *Service) { s.activity = l }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new file type service
func NewService(store Store, filter Filter, opts ...Option) *Service {
	s := &Service{
		store:    store,
		filter:   filter,
		activity: audit.NoOp(),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the top-level types or the sub-types visible to o
func (s *Service) List(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, topLevel bool) ([]*models.FileType, error) {
	return s.store.List(ctx, tc, s.filter.FileTypes(tc, o, topLevel))
}

func canManage(o *rbac.Oracle) bool {
	return o.IsSuperUser() || o.HasPermission(rbac.PermManageAllFiles)
}

// Create adds a file type to the tenant
func (s *Service) Create(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, ft *models.FileType) error {
	if !canManage(o) {
		return apperrors.Denied("filetypes.Create", "you are not allowed to manage file types")
	}
	if err := s.store.Create(ctx, tc, ft); err != nil {
		return err
	}
	s.changed(ctx, tc, o, audit.EventTypeFileTypeCreate, ft.ID, "created file type "+ft.Name)
	return nil
}

// Delete removes a file type. With force, trashed files still block it.
func (s *Service) Delete(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, id int64, force bool) error {
	if !canManage(o) {
		return apperrors.Denied("filetypes.Delete", "you are not allowed to manage file types")
	}
	if err := s.store.Delete(ctx, tc, id, force); err != nil {
		return err
	}
	s.changed(ctx, tc, o, audit.EventTypeFileTypeDelete, id, fmt.Sprintf("deleted file type %d", id))
	return nil
}

func (s *Service) changed(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, eventType audit.EventType, id int64, message string) {
	event := audit.NewEvent(ctx, eventType, tc.ID, o.UserID())
	event.ResourceType = audit.ResourceTypeFileType
	event.ResourceIDs = []int64{id}
	event.Message = message
	if err := s.activity.Log(ctx, event); err != nil {
		observability.FromContext(ctx, s.logger).WithError(err).
			WithField("file_type_id", id).Warn("Failed to record activity")
	}
}

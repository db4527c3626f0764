package growers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docvault/pkg/access"
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
	ListGrowers(ctx context.Context, tc *tenant.Tenant, filter query.Predicate) ([]*models.Grower, error)
	ListFbos(ctx context.Context, tc *tenant.Tenant, filter query.Predicate) ([]*models.Fbo, error)
	ListCommodities(ctx context.Context, tc *tenant.Tenant, filter query.Predicate) ([]*models.Commodity, error)
	Assign(ctx context.Context, tc *tenant.Tenant, userID, growerID int64) (string, error)
	Unassign(ctx context.Context, tc *tenant.Tenant, userID, growerID int64) (string, error)
}

// Invalidator drops cached principals; rbac.CachedLoader implements it
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID, userID int64) error
}

// Service exposes the master data a user may see and manages grower
// assignments
type Service struct {
	store       Store
	builder     *access.Builder
	invalidator Invalidator
	activity    audit.Logger
	logger      logrus.FieldLogger
}

// Option configures a Service
type Option func(*Service)

// WithInvalidator drops the cached principal of a user whose assignments changed
func WithInvalidator(i Invalidator) Option {
	return func(s *Service) { s.invalidator = i }
}

// WithActivityLogger records assignment changes
func WithActivityLogger(l audit.Logger) Option {
	return func(s *Service) { s.activity = l }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new grower service
func NewService(store Store, builder *access.Builder, opts ...Option) *Service {
	s := &Service{
		store:    store,
		builder:  builder,
		activity: audit.NoOp(),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Growers lists the growers o may see
func (s *Service) Growers(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle) ([]*models.Grower, error) {
	return s.store.ListGrowers(ctx, tc, s.builder.Growers(tc, o))
}

// Fbos lists the FBOs o may see
func (s *Service) Fbos(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle) ([]*models.Fbo, error) {
	return s.store.ListFbos(ctx, tc, s.builder.Fbos(tc, o))
}

// Commodities lists the commodities o may see
func (s *Service) Commodities(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle) ([]*models.Commodity, error) {
	return s.store.ListCommodities(ctx, tc, s.builder.Commodities(tc, o))
}

func canManage(o *rbac.Oracle) bool {
	return o.IsSuperUser() || o.HasPermission(rbac.PermManageAllGrowers)
}

// Assign links userID to growerID and returns the user's grower number
func (s *Service) Assign(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, userID, growerID int64) (string, error) {
	if !canManage(o) {
		return "", apperrors.Denied("growers.Assign", "you are not allowed to assign growers")
	}
	number, err := s.store.Assign(ctx, tc, userID, growerID)
	if err != nil {
		return "", err
	}
	s.changed(ctx, tc, o, audit.EventTypeGrowerAssign, userID, growerID, number)
	return number, nil
}

// Unassign removes growerID from userID and returns the user's grower number
func (s *Service) Unassign(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, userID, growerID int64) (string, error) {
	if !canManage(o) {
		return "", apperrors.Denied("growers.Unassign", "you are not allowed to unassign growers")
	}
	number, err := s.store.Unassign(ctx, tc, userID, growerID)
	if err != nil {
		return "", err
	}
	s.changed(ctx, tc, o, audit.EventTypeGrowerUnassign, userID, growerID, number)
	return number, nil
}

func (s *Service) changed(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, eventType audit.EventType, userID, growerID int64, number string) {
	log := observability.FromContext(ctx, s.logger).WithFields(logrus.Fields{
		"user_id":   userID,
		"grower_id": growerID,
	})

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, tc.ID, userID); err != nil {
			log.WithError(err).Warn("Failed to invalidate cached principal")
		}
	}

	event := audit.NewEvent(ctx, eventType, tc.ID, o.UserID())
	event.ResourceType = audit.ResourceTypeGrower
	event.ResourceIDs = []int64{growerID}
	event.Message = fmt.Sprintf("%s user %d grower %d", eventType, userID, growerID)
	event.Metadata["user_id"] = userID
	event.Metadata["grower_number"] = number
	if err := s.activity.Log(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to record activity")
	}
}

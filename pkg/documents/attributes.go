package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// Attributes are the user-editable fields of a file or document
type Attributes struct {
	Title            string               `json:"title"`
	FileTypeID       *int64               `json:"file_type_id,omitempty"`
	SubFileTypeID    *int64               `json:"sub_file_type_id,omitempty"`
	CompanyID        *int64               `json:"company_id,omitempty"`
	IsPublic         bool                 `json:"is_public"`
	ExpiryDate       *time.Time           `json:"expiry_date,omitempty"`
	SeasonYear       *int                 `json:"season_year,omitempty"`
	GrowerID         *int64               `json:"grower_id,omitempty"`
	VesselName       string               `json:"vessel_name,omitempty"`
	Extra            map[string]string    `json:"metadata,omitempty"`
	ContainerNumber  string               `json:"container_number,omitempty"`
	QualityRefNumber string               `json:"quality_ref_number,omitempty"`
	QualityRating    models.QualityRating `json:"quality_rating,omitempty"`
	CommodityIDs     []int64              `json:"commodity_ids,omitempty"`
	FboIDs           []int64              `json:"fbo_ids,omitempty"`
	VarietyIDs       []int64              `json:"variety_ids,omitempty"`
}

// AttributesOf returns the editable fields of f
func AttributesOf(f *models.File) Attributes {
	a := Attributes{
		Title:            f.Title,
		FileTypeID:       f.FileTypeID,
		SubFileTypeID:    f.SubFileTypeID,
		CompanyID:        f.CompanyID,
		IsPublic:         f.IsPublic,
		ExpiryDate:       f.ExpiryDate,
		SeasonYear:       f.SeasonYear,
		GrowerID:         f.Metadata.GrowerID,
		VesselName:       f.Metadata.VesselName,
		ContainerNumber:  f.ContainerNumber,
		QualityRefNumber: f.QualityRefNumber,
		QualityRating:    f.QualityRating,
		CommodityIDs:     f.CommodityIDs(),
		FboIDs:           f.FboIDs(),
		VarietyIDs:       f.VarietyIDs(),
	}
	if len(f.Metadata.Extra) > 0 {
		a.Extra = make(map[string]string, len(f.Metadata.Extra))
		for k, v := range f.Metadata.Extra {
			a.Extra[k] = v
		}
	}
	return a
}

// apply copies a onto f. Relations are replaced by id-only records; the
// loaded file types are cleared because they may no longer match.
func (a Attributes) apply(f *models.File) {
	f.Title = strings.TrimSpace(a.Title)
	f.FileTypeID = a.FileTypeID
	f.SubFileTypeID = a.SubFileTypeID
	f.CompanyID = a.CompanyID
	f.IsPublic = a.IsPublic
	f.ExpiryDate = a.ExpiryDate
	f.SeasonYear = a.SeasonYear
	f.Metadata = models.Metadata{
		GrowerID:   a.GrowerID,
		VesselName: strings.TrimSpace(a.VesselName),
		Extra:      a.Extra,
	}
	f.ContainerNumber = strings.TrimSpace(a.ContainerNumber)
	f.QualityRefNumber = strings.TrimSpace(a.QualityRefNumber)
	f.QualityRating = a.QualityRating
	f.FileType = nil
	f.SubFileType = nil

	f.Commodities = make([]models.Commodity, 0, len(a.CommodityIDs))
	for _, id := range uniqueIDs(a.CommodityIDs) {
		f.Commodities = append(f.Commodities, models.Commodity{ID: id, TenantID: f.TenantID})
	}
	f.Fbos = make([]models.Fbo, 0, len(a.FboIDs))
	for _, id := range uniqueIDs(a.FboIDs) {
		f.Fbos = append(f.Fbos, models.Fbo{ID: id, TenantID: f.TenantID})
	}
	f.Varieties = make([]models.Variety, 0, len(a.VarietyIDs))
	for _, id := range uniqueIDs(a.VarietyIDs) {
		f.Varieties = append(f.Varieties, models.Variety{ID: id, TenantID: f.TenantID})
	}
}

// changes returns the fields of after that differ from before
func changes(before, after Attributes) map[string]any {
	out := make(map[string]any)
	if before.Title != after.Title {
		out["title"] = after.Title
	}
	if !sameID(before.FileTypeID, after.FileTypeID) {
		out["file_type_id"] = after.FileTypeID
	}
	if !sameID(before.SubFileTypeID, after.SubFileTypeID) {
		out["sub_file_type_id"] = after.SubFileTypeID
	}
	if before.IsPublic != after.IsPublic {
		out["is_public"] = after.IsPublic
	}
	if !sameID(before.GrowerID, after.GrowerID) {
		out["grower_id"] = after.GrowerID
	}
	if before.QualityRating != after.QualityRating {
		out["quality_rating"] = after.QualityRating
	}
	if !sameIDs(before.CommodityIDs, after.CommodityIDs) {
		out["commodity_ids"] = after.CommodityIDs
	}
	if !sameIDs(before.FboIDs, after.FboIDs) {
		out["fbo_ids"] = after.FboIDs
	}
	return out
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameIDs(a, b []int64) bool {
	a, b = uniqueIDs(a), uniqueIDs(b)
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int64]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}

// uniqueIDs drops duplicates and non-positive ids, keeping first occurrence order
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// validate checks f against the rules driven by its file type and loads
// the file types onto f. Every failure names the rule that failed.
func (s *Service) validate(ctx context.Context, tc *tenant.Tenant, o *rbac.Oracle, f *models.File) error {
	const op = "documents.validate"

	if f.Title == "" {
		return apperrors.Validation(op, "title_required", "a title is required")
	}
	for k := range f.Metadata.Extra {
		if models.IsReservedMetadataKey(k) {
			return apperrors.Validation(op, "metadata_reserved_key", fmt.Sprintf("metadata key %q is set through its own field", k))
		}
	}
	if !f.QualityRating.Valid() {
		return apperrors.Validation(op, "quality_rating", fmt.Sprintf("unknown quality rating %q", f.QualityRating))
	}

	if f.FileTypeID != nil {
		ft, err := s.fileType(ctx, tc, *f.FileTypeID)
		if err != nil {
			return err
		}
		if !ft.IsTopLevel() {
			return apperrors.Validation(op, "file_type_level", "the file type must be a top-level type")
		}
		if !s.types.IsVisible(ft, o) {
			return apperrors.Validation(op, "file_type_visible", "the selected file type is not available to you")
		}
		f.FileType = ft
	}
	if f.SubFileTypeID != nil {
		if f.FileTypeID == nil {
			return apperrors.Validation(op, "sub_file_type_parent", "a sub-type needs a file type")
		}
		sub, err := s.fileType(ctx, tc, *f.SubFileTypeID)
		if err != nil {
			return err
		}
		if sub.ParentID == nil || *sub.ParentID != *f.FileTypeID {
			return apperrors.Validation(op, "sub_file_type_parent", "the sub-type does not belong to the selected file type")
		}
		if !s.types.IsVisible(sub, o) {
			return apperrors.Validation(op, "file_type_visible", "the selected sub-type is not available to you")
		}
		f.SubFileType = sub
	}

	if id, ok := f.GrowerID(); ok {
		exists, err := s.growers.Exists(ctx, tc, id)
		if err != nil {
			return fmt.Errorf("failed to look up grower: %w", err)
		}
		if !exists {
			return apperrors.Validation(op, "grower_exists", "the selected grower does not exist")
		}
	}

	if f.AttributeType() == models.AttributeGrower {
		if _, ok := f.GrowerID(); !ok {
			return apperrors.Validation(op, "grower_required", "a grower is required for this file type")
		}
		if !f.IsPublic && len(f.Fbos) == 0 {
			return apperrors.Validation(op, "fbo_required", "select at least one FBO for a private grower file")
		}
		if f.IsPublic && len(f.Commodities) == 0 {
			return apperrors.Validation(op, "commodity_required", "select at least one commodity for a public grower file")
		}
	}
	return nil
}

func (s *Service) fileType(ctx context.Context, tc *tenant.Tenant, id int64) (*models.FileType, error) {
	ft, err := s.fileTypes.Get(ctx, tc, id)
	if apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, apperrors.Validation("documents.validate", "file_type_exists", "the selected file type does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up file type: %w", err)
	}
	return ft, nil
}

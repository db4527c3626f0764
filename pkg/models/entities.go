package models

import (
	"time"

	"github.com/platinummonkey/docvault/pkg/query"
)

// FileType classifies files. Types form a tree with a single level of
// nesting: a top-level type (ParentID nil) and its sub-types.
type FileType struct {
	ID            int64         `json:"id"`
	TenantID      int64         `json:"tenant_id"`
	Name          string        `json:"name"`
	ParentID      *int64        `json:"parent_id,omitempty"`
	AttributeType AttributeType `json:"attribute_type"`
	CreatedAt     time.Time     `json:"created_at"`
}

// IsTopLevel reports a type without a parent
func (t *FileType) IsTopLevel() bool {
	return t.ParentID == nil
}

// Value implements query.Record. AttributeNone reads as NULL so that
// "IS NULL" and "= 'none'" both describe public types.
func (t *FileType) Value(field string) (any, bool) {
	switch field {
	case "id":
		return t.ID, true
	case "tenant_id":
		return t.TenantID, true
	case "name":
		return t.Name, true
	case "parent_id":
		return nullableID(t.ParentID), true
	case "attribute_type":
		if t.AttributeType == "" {
			return nil, true
		}
		return string(t.AttributeType), true
	}
	return nil, false
}

// JSONValue implements query.Record
func (t *FileType) JSONValue(string, string) (string, bool) { return "", false }

// Related implements query.Record
func (t *FileType) Related(string) []query.Record { return nil }

// Grower is a producer. Files reference growers through metadata.grower_id.
type Grower struct {
	ID           int64       `json:"id"`
	TenantID     int64       `json:"tenant_id"`
	Name         string      `json:"name"`
	GrowerNumber string      `json:"grower_number"`
	ContactName  string      `json:"contact_name,omitempty"`
	Email        string      `json:"email,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	Address      string      `json:"address,omitempty"`
	Fbos         []Fbo       `json:"fbos,omitempty"`
	Commodities  []Commodity `json:"commodities,omitempty"`
}

// Value implements query.Record
func (g *Grower) Value(field string) (any, bool) {
	switch field {
	case "id":
		return g.ID, true
	case "tenant_id":
		return g.TenantID, true
	case "name":
		return g.Name, true
	case "grower_number":
		return g.GrowerNumber, true
	}
	return nil, false
}

// JSONValue implements query.Record
func (g *Grower) JSONValue(string, string) (string, bool) { return "", false }

// Related implements query.Record
func (g *Grower) Related(relation string) []query.Record {
	switch relation {
	case "fbos":
		out := make([]query.Record, len(g.Fbos))
		for i := range g.Fbos {
			out[i] = &g.Fbos[i]
		}
		return out
	case "commodities":
		out := make([]query.Record, len(g.Commodities))
		for i := range g.Commodities {
			out[i] = &g.Commodities[i]
		}
		return out
	}
	return nil
}

// Fbo is a Food Business Operator registration
type Fbo struct {
	ID        int64      `json:"id"`
	TenantID  int64      `json:"tenant_id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Type      FboType    `json:"type"`
	IsActive  bool       `json:"is_active"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	// GrowerIDs are the growers the FBO is linked to
	GrowerIDs []int64 `json:"grower_ids,omitempty"`
}

// Value implements query.Record
func (f *Fbo) Value(field string) (any, bool) {
	switch field {
	case "id":
		return f.ID, true
	case "tenant_id":
		return f.TenantID, true
	case "code":
		return f.Code, true
	case "name":
		return f.Name, true
	case "type":
		return string(f.Type), true
	case "is_active":
		return f.IsActive, true
	}
	return nil, false
}

// JSONValue implements query.Record
func (f *Fbo) JSONValue(string, string) (string, bool) { return "", false }

// Related implements query.Record. Linked growers are exposed as id-only records.
func (f *Fbo) Related(relation string) []query.Record {
	if relation != "growers" {
		return nil
	}
	out := make([]query.Record, len(f.GrowerIDs))
	for i, id := range f.GrowerIDs {
		out[i] = &Grower{ID: id, TenantID: f.TenantID}
	}
	return out
}

// Commodity is a traded product
type Commodity struct {
	ID        int64  `json:"id"`
	TenantID  int64  `json:"tenant_id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	IsActive  bool   `json:"is_active"`
}

// Value implements query.Record
func (c *Commodity) Value(field string) (any, bool) {
	switch field {
	case "id":
		return c.ID, true
	case "tenant_id":
		return c.TenantID, true
	case "name":
		return c.Name, true
	case "sort_order":
		return int64(c.SortOrder), true
	case "is_active":
		return c.IsActive, true
	}
	return nil, false
}

// JSONValue implements query.Record
func (c *Commodity) JSONValue(string, string) (string, bool) { return "", false }

// Related implements query.Record
func (c *Commodity) Related(string) []query.Record { return nil }

// Variety is a cultivar of a commodity
type Variety struct {
	ID          int64  `json:"id"`
	TenantID    int64  `json:"tenant_id"`
	Name        string `json:"name"`
	CommodityID *int64 `json:"commodity_id,omitempty"`
}

// Value implements query.Record
func (v *Variety) Value(field string) (any, bool) {
	switch field {
	case "id":
		return v.ID, true
	case "tenant_id":
		return v.TenantID, true
	case "name":
		return v.Name, true
	case "commodity_id":
		return nullableID(v.CommodityID), true
	}
	return nil, false
}

// JSONValue implements query.Record
func (v *Variety) JSONValue(string, string) (string, bool) { return "", false }

// Related implements query.Record
func (v *Variety) Related(string) []query.Record { return nil }

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/platinummonkey/docvault/pkg/query"
)

// Metadata is the open extension map stored in the metadata jsonb column.
// grower_id is lifted into a typed field; it is still serialized as a
// string so existing rows and JSON filters keep working.
type Metadata struct {
	GrowerID   *int64
	VesselName string
	Extra      map[string]string
}

// Reserved metadata keys backed by typed fields
const (
	MetadataGrowerID   = "grower_id"
	MetadataVesselName = "vessel_name"
)

// IsReservedMetadataKey reports whether key is backed by a typed field and
// must not be set through the extension map
func IsReservedMetadataKey(key string) bool {
	return key == MetadataGrowerID || key == MetadataVesselName
}

// Get returns the string form of key, including the typed fields
func (m Metadata) Get(key string) (string, bool) {
	switch key {
	case MetadataGrowerID:
		if m.GrowerID == nil {
			return "", false
		}
		return query.FormatID(*m.GrowerID), true
	case MetadataVesselName:
		return m.VesselName, m.VesselName != ""
	}
	v, ok := m.Extra[key]
	return v, ok
}

// MarshalJSON flattens the typed fields into the extension map. Reserved
// keys in Extra are dropped; only the typed fields write them.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(m.Extra)+2)
	for k, v := range m.Extra {
		if IsReservedMetadataKey(k) {
			continue
		}
		out[k] = v
	}
	if m.GrowerID != nil {
		out[MetadataGrowerID] = query.FormatID(*m.GrowerID)
	}
	if m.VesselName != "" {
		out[MetadataVesselName] = m.VesselName
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts grower_id as a string or a number
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}

	*m = Metadata{}
	for k, v := range raw {
		s, err := rawString(v)
		if err != nil {
			return fmt.Errorf("metadata key %q: %w", k, err)
		}
		switch k {
		case MetadataGrowerID:
			if s == "" {
				continue
			}
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("metadata grower_id %q is not an id", s)
			}
			m.GrowerID = &id
		case MetadataVesselName:
			m.VesselName = s
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k] = s
		}
	}
	return nil
}

func rawString(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	if string(v) == "null" {
		return "", nil
	}
	return "", fmt.Errorf("unsupported value %s", string(v))
}

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	return m.MarshalJSON()
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return m.UnmarshalJSON(v)
	case string:
		return m.UnmarshalJSON([]byte(v))
	}
	return fmt.Errorf("cannot scan %T into Metadata", src)
}

// File is a stored file or document. Kind tells the two apart; every
// other field means the same thing for both.
type File struct {
	Kind             AssetKind     `json:"kind"`
	ID               int64         `json:"id"`
	TenantID         int64         `json:"tenant_id"`
	Title            string        `json:"title"`
	OriginalFilename string        `json:"original_filename"`
	FilePath         string        `json:"-"`
	FileSize         int64         `json:"file_size"`
	MimeType         string        `json:"mime_type"`
	FileTypeID       *int64        `json:"file_type_id,omitempty"`
	SubFileTypeID    *int64        `json:"sub_file_type_id,omitempty"`
	CompanyID        *int64        `json:"company_id,omitempty"`
	IsPublic         bool          `json:"is_public"`
	IsActive         bool          `json:"is_active"`
	ExpiryDate       *time.Time    `json:"expiry_date,omitempty"`
	SeasonYear       *int          `json:"season_year,omitempty"`
	Metadata         Metadata      `json:"metadata"`
	ContainerNumber  string        `json:"container_number,omitempty"`
	QualityRefNumber string        `json:"quality_ref_number,omitempty"`
	QualityRating    QualityRating `json:"quality_rating,omitempty"`
	UploadedBy       int64         `json:"uploaded_by"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	DeletedAt        *time.Time    `json:"deleted_at,omitempty"`

	FileType    *FileType   `json:"file_type,omitempty"`
	SubFileType *FileType   `json:"sub_file_type,omitempty"`
	Commodities []Commodity `json:"commodities,omitempty"`
	Fbos        []Fbo       `json:"fbos,omitempty"`
	Varieties   []Variety   `json:"varieties,omitempty"`
}

// IsTrashed reports a soft-deleted file
func (f *File) IsTrashed() bool {
	return f.DeletedAt != nil
}

// GrowerID returns the grower referenced from metadata
func (f *File) GrowerID() (int64, bool) {
	if f.Metadata.GrowerID == nil {
		return 0, false
	}
	return *f.Metadata.GrowerID, true
}

// AttributeType returns the attribute type of the loaded file type, or
// AttributeNone when the file has no type.
func (f *File) AttributeType() AttributeType {
	if f.FileType == nil {
		return AttributeNone
	}
	return f.FileType.AttributeType
}

// Value implements query.Record
func (f *File) Value(field string) (any, bool) {
	switch field {
	case "id":
		return f.ID, true
	case "tenant_id":
		return f.TenantID, true
	case "title":
		return f.Title, true
	case "original_filename":
		return f.OriginalFilename, true
	case "file_path":
		return f.FilePath, true
	case "file_size":
		return f.FileSize, true
	case "mime_type":
		return f.MimeType, true
	case "file_type_id":
		return nullableID(f.FileTypeID), true
	case "sub_file_type_id":
		return nullableID(f.SubFileTypeID), true
	case "company_id":
		return nullableID(f.CompanyID), true
	case "is_public":
		return f.IsPublic, true
	case "is_active":
		return f.IsActive, true
	case "season_year":
		if f.SeasonYear == nil {
			return nil, true
		}
		return int64(*f.SeasonYear), true
	case "container_number":
		return f.ContainerNumber, true
	case "quality_ref_number":
		return f.QualityRefNumber, true
	case "quality_rating":
		return string(f.QualityRating), true
	case "uploaded_by":
		return f.UploadedBy, true
	case "deleted_at":
		if f.DeletedAt == nil {
			return nil, true
		}
		return *f.DeletedAt, true
	}
	return nil, false
}

// JSONValue implements query.Record
func (f *File) JSONValue(field, key string) (string, bool) {
	if field != "metadata" {
		return "", false
	}
	return f.Metadata.Get(key)
}

// Related implements query.Record
func (f *File) Related(relation string) []query.Record {
	switch relation {
	case "file_type":
		if f.FileType == nil {
			return nil
		}
		return []query.Record{f.FileType}
	case "sub_file_type":
		if f.SubFileType == nil {
			return nil
		}
		return []query.Record{f.SubFileType}
	case "commodities":
		out := make([]query.Record, len(f.Commodities))
		for i := range f.Commodities {
			out[i] = &f.Commodities[i]
		}
		return out
	case "fbos":
		out := make([]query.Record, len(f.Fbos))
		for i := range f.Fbos {
			out[i] = &f.Fbos[i]
		}
		return out
	case "varieties":
		out := make([]query.Record, len(f.Varieties))
		for i := range f.Varieties {
			out[i] = &f.Varieties[i]
		}
		return out
	}
	return nil
}

// CommodityIDs returns the ids of the linked commodities
func (f *File) CommodityIDs() []int64 {
	ids := make([]int64, len(f.Commodities))
	for i, c := range f.Commodities {
		ids[i] = c.ID
	}
	return ids
}

// FboIDs returns the ids of the linked FBOs
func (f *File) FboIDs() []int64 {
	ids := make([]int64, len(f.Fbos))
	for i, fbo := range f.Fbos {
		ids[i] = fbo.ID
	}
	return ids
}

// VarietyIDs returns the ids of the linked varieties
func (f *File) VarietyIDs() []int64 {
	ids := make([]int64, len(f.Varieties))
	for i, v := range f.Varieties {
		ids[i] = v.ID
	}
	return ids
}

// nullableID keeps a nil *int64 from becoming a non-nil interface
func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

package documents

import (
	"github.com/platinummonkey/docvault/pkg/filetypes"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/query"
)

// Tables names the tables backing one asset kind
type Tables struct {
	Assets      string // files | documents
	ForeignKey  string // column referencing Assets from the join tables
	Commodities string
	Fbos        string
	Varieties   string
}

// TablesFor returns the tables of kind
func TablesFor(kind models.AssetKind) Tables {
	if kind == models.KindDocument {
		return Tables{
			Assets:      "documents",
			ForeignKey:  "document_id",
			Commodities: "commodity_document",
			Fbos:        "fbo_document",
			Varieties:   "document_variety",
		}
	}
	return Tables{
		Assets:      "files",
		ForeignKey:  "file_id",
		Commodities: "commodity_file",
		Fbos:        "fbo_file",
		Varieties:   "file_variety",
	}
}

var assetColumns = map[string]string{
	"id":                 "id",
	"tenant_id":          "tenant_id",
	"title":              "title",
	"original_filename":  "original_filename",
	"file_size":          "file_size",
	"mime_type":          "mime_type",
	"file_type_id":       "file_type_id",
	"sub_file_type_id":   "sub_file_type_id",
	"company_id":         "company_id",
	"is_public":          "is_public",
	"is_active":          "is_active",
	"expiry_date":        "expiry_date",
	"season_year":        "season_year",
	"container_number":   "container_number",
	"quality_ref_number": "quality_ref_number",
	"quality_rating":     "quality_rating",
	"uploaded_by":        "uploaded_by",
	"created_at":         "created_at",
	"updated_at":         "updated_at",
	"deleted_at":         "deleted_at",
}

func fileTypeSchema(alias string) *query.Schema {
	return &query.Schema{
		Table:   filetypes.Schema.Table,
		Alias:   alias,
		Columns: filetypes.Schema.Columns,
	}
}

func joinSchema(table, alias, column string) *query.Schema {
	return &query.Schema{
		Table:   table,
		Alias:   alias,
		Columns: map[string]string{"id": column},
	}
}

var schemas = map[models.AssetKind]*query.Schema{
	models.KindFile:     buildSchema(models.KindFile),
	models.KindDocument: buildSchema(models.KindDocument),
}

func buildSchema(kind models.AssetKind) *query.Schema {
	t := TablesFor(kind)
	return &query.Schema{
		Table:       t.Assets,
		Alias:       "f",
		Columns:     assetColumns,
		JSONColumns: map[string]string{"metadata": "metadata"},
		Relations: map[string]query.Relation{
			"file_type": {
				On:     "ft.id = f.file_type_id",
				Schema: fileTypeSchema("ft"),
			},
			"sub_file_type": {
				On:     "sft.id = f.sub_file_type_id",
				Schema: fileTypeSchema("sft"),
			},
			"commodities": {
				On:     "fc." + t.ForeignKey + " = f.id",
				Schema: joinSchema(t.Commodities, "fc", "commodity_id"),
			},
			"fbos": {
				On:     "fb." + t.ForeignKey + " = f.id",
				Schema: joinSchema(t.Fbos, "fb", "fbo_id"),
			},
			"varieties": {
				On:     "fv." + t.ForeignKey + " = f.id",
				Schema: joinSchema(t.Varieties, "fv", "variety_id"),
			},
		},
	}
}

// SchemaFor returns the predicate schema of kind. Access predicates from
// the access package compile against it.
func SchemaFor(kind models.AssetKind) *query.Schema {
	if s, ok := schemas[kind]; ok {
		return s
	}
	return schemas[models.KindFile]
}

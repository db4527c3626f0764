package growers

import "github.com/platinummonkey/docvault/pkg/query"

// GrowerSchema maps Grower predicate fields onto the growers table
var GrowerSchema = &query.Schema{
	Table: "growers",
	Alias: "g",
	Columns: map[string]string{
		"id":            "id",
		"tenant_id":     "tenant_id",
		"name":          "name",
		"grower_number": "grower_number",
	},
	Relations: map[string]query.Relation{
		"fbos": {
			On:     "gf.grower_id = g.id",
			Schema: &query.Schema{Table: "fbo_grower", Alias: "gf", Columns: map[string]string{"id": "fbo_id"}},
		},
		"commodities": {
			On:     "gc.grower_id = g.id",
			Schema: &query.Schema{Table: "commodity_grower", Alias: "gc", Columns: map[string]string{"id": "commodity_id"}},
		},
	},
}

// FboSchema maps Fbo predicate fields onto the fbos table
var FboSchema = &query.Schema{
	Table: "fbos",
	Alias: "b",
	Columns: map[string]string{
		"id":        "id",
		"tenant_id": "tenant_id",
		"code":      "code",
		"name":      "name",
		"type":      "type",
		"is_active": "is_active",
	},
	Relations: map[string]query.Relation{
		"growers": {
			On:     "bg.fbo_id = b.id",
			Schema: &query.Schema{Table: "fbo_grower", Alias: "bg", Columns: map[string]string{"id": "grower_id"}},
		},
	},
}

// CommoditySchema maps Commodity predicate fields onto the commodities table
var CommoditySchema = &query.Schema{
	Table: "commodities",
	Alias: "c",
	Columns: map[string]string{
		"id":         "id",
		"tenant_id":  "tenant_id",
		"name":       "name",
		"sort_order": "sort_order",
		"is_active":  "is_active",
	},
}

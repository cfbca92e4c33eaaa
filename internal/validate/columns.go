package validate

// columns.go lists the accepted column names for every product field, in
// precedence order. Row.Pick resolves each list once per field.

import (
	"strings"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
)

// Column candidate lists.
var (
	ColTitle                 = []string{"title", "name"}
	ColID                    = []string{"id", "product_id"}
	ColSlug                  = []string{"slug", "handle"}
	ColBrandHandle           = []string{"brand_handle"}
	ColBrand                 = []string{"brand"}
	ColBrandName             = []string{"brand_name", "brand_title"}
	ColCollectionHandle      = []string{"collection_handle"}
	ColCollection            = []string{"collection"}
	ColCollectionTitle       = []string{"collection_title", "collection_name"}
	ColCollectionDescription = []string{"collection_description", "collection_desc"}
	ColPrice                 = []string{"price"}
	ColCompareAtPrice        = []string{"compare_at_price", "compareatprice"}
	ColDeposit               = []string{"deposit"}
	ColStock                 = []string{"stock"}
	ColForSale               = []string{"for_sale", "forsale"}
	ColForRental             = []string{"for_rental", "forrental"}
	ColSizes                 = []string{"sizes", "size"}
	ColDescription           = []string{"description", "desc"}
	ColCreatedAt             = []string{"created_at", "createdat"}
	ColPopularity            = []string{"popularity", "rank"}
	ColMediaPaths            = []string{"media_paths", "media", "images"}
	ColMediaAltTexts         = []string{"media_alt_texts", "image_alt_texts", "alt_texts"}
	ColImageFiles            = []string{"image_files", "imagefiles", "image_file"}
)

// facetKeys returns the accepted columns for a taxonomy or details field
// written in snake_case: the prefixed form, the bare form, and both again
// without underscores (a camelCase header lower-cases to that).
func facetKeys(prefix, name string) []string {
	keys := []string{prefix + "_" + name, name}
	if compact := strings.ReplaceAll(name, "_", ""); compact != name {
		keys = append(keys, prefix+compact, prefix+"_"+compact, compact)
	}
	return keys
}

// Allow-lists for enumerated taxonomy fields. Values compare
// case-insensitively and are stored lower-cased.
var (
	Departments  = []string{"women", "men"}
	Categories   = []string{"clothing", "bags", "jewelry"}
	SizeClasses  = []string{"us", "eu", "uk", "it", "fr", "intl", "one-size"}
	JewelryTiers = []string{"fine", "demi-fine", "fashion"}
)

type textField[T any] struct {
	name  string
	keys  []string
	enum  []string
	field func(*T) *string
}

type listField[T any] struct {
	name  string
	keys  []string
	field func(*T) *[]string
}

func taxText(name string, enum []string, f func(*catalog.Taxonomy) *string) textField[catalog.Taxonomy] {
	return textField[catalog.Taxonomy]{name: name, keys: facetKeys("taxonomy", name), enum: enum, field: f}
}

func taxList(name string, f func(*catalog.Taxonomy) *[]string) listField[catalog.Taxonomy] {
	return listField[catalog.Taxonomy]{name: name, keys: facetKeys("taxonomy", name), field: f}
}

func detText(name string, f func(*catalog.Details) *string) textField[catalog.Details] {
	return textField[catalog.Details]{name: name, keys: facetKeys("details", name), field: f}
}

func detList(name string, f func(*catalog.Details) *[]string) listField[catalog.Details] {
	return listField[catalog.Details]{name: name, keys: facetKeys("details", name), field: f}
}

var taxonomyText = []textField[catalog.Taxonomy]{
	taxText("department", Departments, func(t *catalog.Taxonomy) *string { return &t.Department }),
	taxText("category", Categories, func(t *catalog.Taxonomy) *string { return &t.Category }),
	taxText("subcategory", nil, func(t *catalog.Taxonomy) *string { return &t.Subcategory }),
	taxText("fit", nil, func(t *catalog.Taxonomy) *string { return &t.Fit }),
	taxText("length", nil, func(t *catalog.Taxonomy) *string { return &t.Length }),
	taxText("neckline", nil, func(t *catalog.Taxonomy) *string { return &t.Neckline }),
	taxText("sleeve_length", nil, func(t *catalog.Taxonomy) *string { return &t.SleeveLength }),
	taxText("pattern", nil, func(t *catalog.Taxonomy) *string { return &t.Pattern }),
	taxText("size_class", SizeClasses, func(t *catalog.Taxonomy) *string { return &t.SizeClass }),
	taxText("strap_style", nil, func(t *catalog.Taxonomy) *string { return &t.StrapStyle }),
	taxText("hardware_color", nil, func(t *catalog.Taxonomy) *string { return &t.HardwareColor }),
	taxText("closure_type", nil, func(t *catalog.Taxonomy) *string { return &t.ClosureType }),
	taxText("metal", nil, func(t *catalog.Taxonomy) *string { return &t.Metal }),
	taxText("gemstone", nil, func(t *catalog.Taxonomy) *string { return &t.Gemstone }),
	taxText("jewelry_size", nil, func(t *catalog.Taxonomy) *string { return &t.JewelrySize }),
	taxText("jewelry_style", nil, func(t *catalog.Taxonomy) *string { return &t.JewelryStyle }),
	taxText("jewelry_tier", JewelryTiers, func(t *catalog.Taxonomy) *string { return &t.JewelryTier }),
}

var taxonomyLists = []listField[catalog.Taxonomy]{
	taxList("color", func(t *catalog.Taxonomy) *[]string { return &t.Color }),
	taxList("material", func(t *catalog.Taxonomy) *[]string { return &t.Material }),
	taxList("occasion", func(t *catalog.Taxonomy) *[]string { return &t.Occasion }),
	taxList("fits", func(t *catalog.Taxonomy) *[]string { return &t.Fits }),
}

var detailsText = []textField[catalog.Details]{
	detText("model_height", func(d *catalog.Details) *string { return &d.ModelHeight }),
	detText("model_size", func(d *catalog.Details) *string { return &d.ModelSize }),
	detText("fit_note", func(d *catalog.Details) *string { return &d.FitNote }),
	detText("fabric_feel", func(d *catalog.Details) *string { return &d.FabricFeel }),
	detText("care", func(d *catalog.Details) *string { return &d.Care }),
	detText("dimensions", func(d *catalog.Details) *string { return &d.Dimensions }),
	detText("strap_drop", func(d *catalog.Details) *string { return &d.StrapDrop }),
	detText("size_guide", func(d *catalog.Details) *string { return &d.SizeGuide }),
	detText("warranty", func(d *catalog.Details) *string { return &d.Warranty }),
}

var detailsLists = []listField[catalog.Details]{
	detList("what_fits", func(d *catalog.Details) *[]string { return &d.WhatFits }),
	detList("interior", func(d *catalog.Details) *[]string { return &d.Interior }),
}

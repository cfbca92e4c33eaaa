package validate

// required.go holds the checks that depend on what a row ends up updating:
// a field the row omits is fine when the existing product already has it.

import (
	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
)

func checkRequired(p *ProductRow, e *catalog.Product, opts Options, r *diag.Report) {
	line := p.Line
	strict := opts.Strict
	missing := func(field string) {
		r.Fail(diag.ValidationError, line, "Missing required field %q", field)
	}

	if opts.Merge && p.ID == "" && p.Slug == "" {
		r.Fail(diag.MergeConflictError, line, "Merge mode requires id or slug on every row")
	}
	if e == nil && strict {
		if p.ID == "" {
			missing("id")
		}
		if p.Slug == "" {
			missing("slug")
		}
	}
	if e == nil && p.Title == "" {
		missing("title")
	}
	if e == nil && p.Brand.Handle == "" {
		missing("brand_handle")
	}
	if e == nil && p.Collection.Handle == "" {
		missing("collection_handle")
	}

	if e == nil {
		if p.Price == nil {
			if strict {
				missing("price")
			} else {
				r.Warn(line, "price is empty; defaulting to 0")
			}
		}
		numeric := []struct {
			name string
			val  *int64
			def  *int64
		}{
			{"deposit", p.Deposit, opts.Defaults.Deposit},
			{"stock", p.Stock, opts.Defaults.Stock},
			{"popularity", p.Popularity, opts.Defaults.Popularity},
		}
		for _, n := range numeric {
			if n.val != nil {
				continue
			}
			switch {
			case n.def != nil:
			case strict:
				missing(n.name)
			default:
				r.Warn(line, "%s is empty and has no default; using 0", n.name)
			}
		}
		if strict && p.ForSale == nil {
			missing("for_sale")
		}
		if strict && p.ForRental == nil {
			missing("for_rental")
		}
		if strict && p.CreatedAt == "" {
			missing("created_at")
		}
	}

	if strict && p.Description == "" && (e == nil || e.Description == "") {
		missing("description")
	}

	tax := p.Taxonomy
	if e != nil {
		tax = OverlayTaxonomy(e.Taxonomy, p.Taxonomy)
	}
	if tax.Department == "" {
		missing("taxonomy_department")
	}
	if tax.Category == "" {
		missing("taxonomy_category")
	}
	if strict {
		if tax.Subcategory == "" {
			missing("taxonomy_subcategory")
		}
		if len(tax.Color) == 0 {
			missing("taxonomy_color")
		}
		if len(tax.Material) == 0 {
			missing("taxonomy_material")
		}
	}

	if strict && tax.Category == "clothing" {
		if len(p.Sizes) == 0 && (e == nil || len(e.Sizes) == 0) {
			r.Fail(diag.ValidationError, line, "Missing required field %q for clothing product", "sizes")
		}
	}
	if strict && tax.Category == "jewelry" && tax.Metal == "" {
		r.Fail(diag.ValidationError, line, "Missing required field %q for jewelry product", "taxonomy_metal")
	}
}

// OverlayTaxonomy returns base with every facet the row supplies replaced.
func OverlayTaxonomy(base, row catalog.Taxonomy) catalog.Taxonomy {
	out := base.Clone()
	for _, f := range taxonomyText {
		if v := *f.field(&row); v != "" {
			*f.field(&out) = v
		}
	}
	for _, f := range taxonomyLists {
		if v := *f.field(&row); len(v) > 0 {
			*f.field(&out) = append([]string(nil), v...)
		}
	}
	return out
}

// OverlayDetails is OverlayTaxonomy for product details. A nil base is an
// empty one.
func OverlayDetails(base *catalog.Details, row catalog.Details) catalog.Details {
	var out catalog.Details
	if base != nil {
		out = base.Clone()
	}
	for _, f := range detailsText {
		if v := *f.field(&row); v != "" {
			*f.field(&out) = v
		}
	}
	for _, f := range detailsLists {
		if v := *f.field(&row); len(v) > 0 {
			*f.field(&out) = append([]string(nil), v...)
		}
	}
	return out
}

// checkBatchIdentity enforces slug and id uniqueness inside one batch.
// In merge mode without a catalog lookup, a row naming a product by id alone
// has no known slug, so it only takes part in the id check.
func checkBatchIdentity(p ProductRow, e *catalog.Product, opts Options, seenSlugs, seenIDs map[string]int, r *diag.Report) {
	slug := ""
	switch {
	case e != nil:
		slug = e.Slug
	case p.Slug != "":
		slug = p.Slug
	case !opts.Merge || p.ID == "" || opts.Existing != nil:
		slug = catalog.Slugify(p.Title)
	}

	if slug != "" {
		if first, dup := seenSlugs[slug]; dup {
			if opts.Merge {
				r.Fail(diag.MergeConflictError, p.Line, "Duplicate update row for slug %q (first seen on row %d)", slug, first)
			} else {
				r.Fail(diag.MergeConflictError, p.Line, "Duplicate product slug %q (first seen on row %d)", slug, first)
			}
		} else {
			seenSlugs[slug] = p.Line
		}
	}

	id := p.ID
	if id == "" && e != nil {
		id = e.ID
	}
	if id != "" {
		if first, dup := seenIDs[id]; dup {
			r.Fail(diag.MergeConflictError, p.Line, "Duplicate product id %q (first seen on row %d)", id, first)
		} else {
			seenIDs[id] = p.Line
		}
	}
}

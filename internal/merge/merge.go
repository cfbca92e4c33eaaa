// Package merge folds validated product rows and uploaded media into a
// catalog document.
//
// In create mode the result holds only the batch. In merge mode it starts as
// a copy of the base catalog: a row updates the product it names by slug or
// id, and columns the row leaves empty keep their existing values.
package merge

import (
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/validate"
)

// Options controls a merge.
type Options struct {
	Merge  bool
	Strict bool
	// Defaults fill numeric fields of new products. Unset fields become 0.
	Defaults validate.Defaults
	// Now stamps createdAt on new products that have none.
	Now func() time.Time
}

// Stats counts what a merge did.
type Stats struct {
	Created int
	Updated int
}

// Lookup returns the product a row names in c: by slug first, then by id.
func Lookup(c *catalog.Catalog) func(slug, id string) *catalog.Product {
	bySlug := make(map[string]int, len(c.Products))
	byID := make(map[string]int, len(c.Products))
	for i, p := range c.Products {
		bySlug[p.Slug] = i
		byID[p.ID] = i
	}
	return func(slug, id string) *catalog.Product {
		if i, ok := bySlug[slug]; ok && slug != "" {
			return &c.Products[i]
		}
		if i, ok := byID[id]; ok && id != "" {
			return &c.Products[i]
		}
		return nil
	}
}

// Build merges rows and media into base and returns the next catalog. base
// is not modified. Build reports every row conflict; on any error the
// returned catalog must not be written.
func Build(base *catalog.Catalog, rows []validate.ProductRow, mm *catalog.MediaMap, opts Options) (*catalog.Catalog, Stats, *diag.Report) {
	report := &diag.Report{}
	var stats Stats
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	out := (*catalog.Catalog)(nil).Clone()
	if opts.Merge {
		out = base.Clone()
	}
	reg := newRegistry(out.Brands, out.Collections, report)

	bySlug := make(map[string]int, len(out.Products))
	byID := make(map[string]int, len(out.Products))
	for i, p := range out.Products {
		bySlug[p.Slug] = i
		byID[p.ID] = i
	}
	touched := make(map[string]int)

	for _, row := range rows {
		idx, ok := match(row, out.Products, bySlug, byID, opts, report)
		if !ok {
			continue
		}

		if idx >= 0 {
			p := &out.Products[idx]
			if first, dup := touched[p.Slug]; dup {
				report.Fail(diag.MergeConflictError, row.Line, "Duplicate update row for slug %q (first seen on row %d)", p.Slug, first)
				continue
			}
			next := update(*p, row, mm, reg)
			if opts.Strict && len(next.Media) == 0 {
				report.Fail(diag.ValidationError, row.Line, "Missing required field %q: no images for %q", "media", next.Slug)
				continue
			}
			touched[p.Slug] = row.Line
			*p = next
			stats.Updated++
			continue
		}

		slug := row.TargetSlug()
		if slug == "" {
			report.Fail(diag.ValidationError, row.Line, "Missing required field %q", "slug")
			continue
		}
		if first, dup := touched[slug]; dup {
			if opts.Merge {
				report.Fail(diag.MergeConflictError, row.Line, "Duplicate update row for slug %q (first seen on row %d)", slug, first)
			} else {
				report.Fail(diag.MergeConflictError, row.Line, "Duplicate product slug %q (first seen on row %d)", slug, first)
			}
			continue
		}
		if _, exists := bySlug[slug]; exists {
			report.Fail(diag.MergeConflictError, row.Line,
				"Slug %q already exists in the base catalog; cannot be inserted as new. Provide the matching slug/id to update it", slug)
			continue
		}
		id := row.ID
		if id == "" {
			id = catalog.FallbackID(slug)
		}
		if _, exists := byID[id]; exists {
			report.Fail(diag.MergeConflictError, row.Line, "Duplicate product id %q", id)
			continue
		}

		p := create(slug, id, row, mm, reg, opts, now)
		if opts.Strict && len(p.Media) == 0 {
			report.Fail(diag.ValidationError, row.Line, "Missing required field %q: no images for %q", "media", slug)
			continue
		}
		touched[slug] = row.Line
		bySlug[slug] = len(out.Products)
		byID[id] = len(out.Products)
		out.Products = append(out.Products, p)
		stats.Created++
	}

	if opts.Strict && mm != nil {
		var unknown []string
		for slug := range mm.MediaByProduct {
			if _, ok := bySlug[slug]; !ok {
				unknown = append(unknown, slug)
			}
		}
		if len(unknown) > 0 {
			slices.Sort(unknown)
			report.Fail(diag.MergeConflictError, 0, "Media map contains unknown product slugs: %s", strings.Join(unknown, ", "))
		}
	}

	out.Brands = reg.brands
	out.Collections = reg.collections
	return out, stats, report
}

// match finds the product a row updates. It returns -1 for a new product
// and false when the row conflicts with the catalog.
func match(row validate.ProductRow, products []catalog.Product, bySlug, byID map[string]int, opts Options, report *diag.Report) (int, bool) {
	if !opts.Merge {
		return -1, true
	}
	if row.ID == "" && row.Slug == "" {
		report.Fail(diag.MergeConflictError, row.Line, "Merge mode requires id or slug on every row")
		return 0, false
	}
	if i, ok := bySlug[row.Slug]; ok && row.Slug != "" {
		p := products[i]
		if row.ID != "" && row.ID != p.ID {
			report.Fail(diag.MergeConflictError, row.Line,
				"ID mismatch for slug %q: row id %q does not match existing %q", p.Slug, row.ID, p.ID)
			return 0, false
		}
		return i, true
	}
	if i, ok := byID[row.ID]; ok && row.ID != "" {
		p := products[i]
		if row.Slug != "" && row.Slug != p.Slug {
			report.Fail(diag.MergeConflictError, row.Line,
				"Slug mismatch for id %q: row slug %q does not match existing %q", p.ID, row.Slug, p.Slug)
			return 0, false
		}
		return i, true
	}
	return -1, true
}

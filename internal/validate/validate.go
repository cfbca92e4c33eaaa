// Package validate turns sheet rows into typed product rows.
//
// Parsing is a single synchronous pass over the sheet. Every defect is
// recorded in a diag.Report in row order; a row with any fatal issue is left
// out of the result, and the caller fails the run once the pass completes.
//
// Values a row leaves empty stay empty here ("" / nil). Whether an empty
// value is acceptable depends on the product it updates, so requirement
// checks consult Options.Existing when it is set.
package validate

import (
	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/table"
)

// Defaults supplies values for numeric fields a row leaves empty. A nil
// field has no default.
type Defaults struct {
	Deposit    *int64
	Stock      *int64
	Popularity *int64
}

// ZeroDefaults is the lenient-mode default set: deposit, stock and
// popularity fall back to 0.
func ZeroDefaults() Defaults {
	zero := func() *int64 { var v int64; return &v }
	return Defaults{Deposit: zero(), Stock: zero(), Popularity: zero()}
}

// Options controls a parse.
type Options struct {
	Strict bool
	// Merge selects merge-mode identity rules: a row may name an existing
	// product by id alone, so titles do not imply slugs for such rows.
	Merge bool
	// Defaults fills missing numerics in either mode. A field without a
	// default is fatal in strict mode.
	Defaults Defaults
	// Existing looks up the product a row would update. Nil means every
	// row describes a new product.
	Existing func(slug, id string) *catalog.Product
}

// Ref is a brand or collection reference resolved from a row.
type Ref struct {
	// Handle is the normalized key; empty when the row names no record.
	Handle string
	// Label is the display name or title supplied by the row, if any.
	Label string
	// Description applies to collections only.
	Description string
}

// ProductRow is one validated row. Empty strings, nil slices and nil
// pointers mean the row did not supply the field.
type ProductRow struct {
	Line int

	ID    string
	Slug  string // normalized explicit slug
	Title string

	Brand      Ref
	Collection Ref

	Price          *int64
	CompareAtPrice *int64
	Deposit        *int64
	Stock          *int64
	Popularity     *int64
	ForSale        *bool
	ForRental      *bool

	Sizes       []string
	Description string
	CreatedAt   string

	MediaPaths    []string
	MediaAltTexts []string
	// ImageFiles are local file specs to upload when no images sheet is
	// given. MediaAltTexts label them by position.
	ImageFiles []string

	Taxonomy catalog.Taxonomy
	Details  catalog.Details
}

// TargetSlug is the slug a row resolves to before consulting the catalog:
// the explicit slug, or the slugified title.
func (p ProductRow) TargetSlug() string {
	if p.Slug != "" {
		return p.Slug
	}
	return catalog.Slugify(p.Title)
}

// Parse validates rows and returns the rows free of fatal issues together
// with every issue found.
func Parse(rows []table.Row, opts Options) ([]ProductRow, *diag.Report) {
	report := &diag.Report{}
	seenSlugs := make(map[string]int)
	seenIDs := make(map[string]int)

	var valid []ProductRow
	for _, row := range rows {
		var rr diag.Report
		p := parseRow(row, opts, &rr)

		var existing *catalog.Product
		if opts.Existing != nil && (p.Slug != "" || p.ID != "") {
			existing = opts.Existing(p.Slug, p.ID)
		}
		checkRequired(&p, existing, opts, &rr)
		checkBatchIdentity(p, existing, opts, seenSlugs, seenIDs, &rr)

		report.Merge(&rr)
		if !rr.HasErrors() {
			valid = append(valid, p)
		}
	}
	return valid, report
}

func parseRow(row table.Row, opts Options, r *diag.Report) ProductRow {
	line := row.Line
	p := ProductRow{
		Line:        line,
		ID:          row.Pick(ColID...),
		Title:       row.Pick(ColTitle...),
		Description: row.Pick(ColDescription...),
	}
	if raw := row.Pick(ColSlug...); raw != "" {
		p.Slug = catalog.Slugify(raw)
		if p.Slug == "" {
			r.Fail(diag.ValidationError, line, "slug %q has no usable characters", raw)
		}
	}

	p.Brand = resolveRef(row, "brand", ColBrandHandle, ColBrand, opts.Strict, r)
	p.Brand.Label = firstNonEmpty(row.Pick(ColBrandName...), row.Pick(ColBrand...))
	p.Collection = resolveRef(row, "collection", ColCollectionHandle, ColCollection, opts.Strict, r)
	p.Collection.Label = firstNonEmpty(row.Pick(ColCollectionTitle...), row.Pick(ColCollection...))
	p.Collection.Description = row.Pick(ColCollectionDescription...)

	p.Price = amount(row, ColPrice, "price", r)
	p.CompareAtPrice = amount(row, ColCompareAtPrice, "compare_at_price", r)
	p.Deposit = amount(row, ColDeposit, "deposit", r)
	p.Stock = amount(row, ColStock, "stock", r)
	p.Popularity = amount(row, ColPopularity, "popularity", r)
	p.ForSale = boolean(row, ColForSale, "for_sale", r)
	p.ForRental = boolean(row, ColForRental, "for_rental", r)

	p.Sizes = table.SplitList(row.Pick(ColSizes...))
	p.MediaPaths = table.SplitList(row.Pick(ColMediaPaths...))
	p.MediaAltTexts = table.SplitList(row.Pick(ColMediaAltTexts...))
	p.ImageFiles = table.SplitList(row.Pick(ColImageFiles...))

	if raw := row.Pick(ColCreatedAt...); raw != "" {
		ts, err := ParseDate(raw)
		if err != nil {
			r.Fail(diag.ValidationError, line, "created_at: %v", err)
		}
		p.CreatedAt = ts
	}

	for _, f := range taxonomyText {
		raw := row.Pick(f.keys...)
		if raw == "" {
			continue
		}
		if f.enum != nil {
			v, err := MatchEnum(raw, f.enum)
			if err != nil {
				r.Fail(diag.ValidationError, line, "%s: %v", f.name, err)
				continue
			}
			raw = v
		}
		*f.field(&p.Taxonomy) = raw
	}
	for _, f := range taxonomyLists {
		*f.field(&p.Taxonomy) = table.SplitList(row.Pick(f.keys...))
	}
	for _, f := range detailsText {
		*f.field(&p.Details) = row.Pick(f.keys...)
	}
	for _, f := range detailsLists {
		*f.field(&p.Details) = table.SplitList(row.Pick(f.keys...))
	}
	return p
}

// resolveRef reads the handle-form and label-form columns of a brand or
// collection. The handle-form wins; when both are present and normalize
// differently the row gets a conflict issue.
func resolveRef(row table.Row, what string, handleCols, labelCols []string, strict bool, r *diag.Report) Ref {
	handleCell := row.Pick(handleCols...)
	labelCell := row.Pick(labelCols...)
	fromHandle := catalog.Slugify(handleCell)
	fromLabel := catalog.Slugify(labelCell)

	if fromHandle != "" && fromLabel != "" && fromHandle != fromLabel {
		r.Either(strict, diag.ValidationError, row.Line,
			"%s_handle=%q conflicts with %s=%q (%s_handle takes precedence)",
			what, handleCell, what, labelCell, what)
	}
	if fromHandle != "" {
		return Ref{Handle: fromHandle}
	}
	return Ref{Handle: fromLabel}
}

func amount(row table.Row, cols []string, name string, r *diag.Report) *int64 {
	raw := row.Pick(cols...)
	if raw == "" {
		return nil
	}
	v, rounded, err := RoundAmount(raw)
	if err != nil {
		r.Fail(diag.ValidationError, row.Line, "%s: %v", name, err)
		return nil
	}
	if rounded {
		r.Warn(row.Line, "%s: %q rounded to %d", name, raw, v)
	}
	return &v
}

func boolean(row table.Row, cols []string, name string, r *diag.Report) *bool {
	raw := row.Pick(cols...)
	if raw == "" {
		return nil
	}
	v, err := ParseBool(raw)
	if err != nil {
		r.Fail(diag.ValidationError, row.Line, "%s: %v", name, err)
		return nil
	}
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

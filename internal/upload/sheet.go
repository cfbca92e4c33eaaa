package upload

import (
	"errors"
	"strconv"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/media"
	"github.com/JonMunkholm/catalogsync/internal/table"
)

// Images sheet columns.
var (
	ColProductSlug = []string{"product_slug", "slug", "product"}
	ColFile        = []string{"file", "file_path", "filepath", "path"}
	ColAltText     = []string{"alt_text", "alt", "alttext"}
	ColPosition    = []string{"position", "order", "index"}
)

// Item is one source image bound to a product. A sheet row whose file spec
// expands to several files yields one Item per file.
type Item struct {
	Row         int
	ProductSlug string
	FilePath    string // absolute
	FileSpec    string // as written in the sheet
	AltText     string
	Position    *int
	Index       int
}

// Key is the item's cache key.
func (it Item) Key() string { return CacheKey(it.ProductSlug, it.FilePath) }

// order is the media ordering key: explicit position, else input index.
func (it Item) order() int {
	if it.Position != nil {
		return *it.Position
	}
	return it.Index
}

// ParseSheet expands the images sheet into items. File specs resolve against
// baseDir.
func ParseSheet(rows []table.Row, baseDir string, opts media.Options) ([]Item, *diag.Report) {
	report := &diag.Report{}
	seen := make(map[string]int)
	var items []Item

	for _, row := range rows {
		slug := catalog.Slugify(row.Pick(ColProductSlug...))
		spec := row.Pick(ColFile...)
		if slug == "" || spec == "" {
			report.Fail(diag.ValidationError, row.Line, "Missing required field %q or %q (images sheet)", "product_slug", "file")
			continue
		}

		var base *int
		if raw := row.Pick(ColPosition...); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				report.Fail(diag.ValidationError, row.Line, "position: invalid number %q", raw)
				continue
			}
			base = &n
		}

		files, err := media.Resolve(spec, baseDir, opts)
		if err != nil {
			report.AddError(atRow(err, row.Line))
			continue
		}

		for offset, file := range files {
			it := Item{
				Row:         row.Line,
				ProductSlug: slug,
				FilePath:    file,
				FileSpec:    spec,
				AltText:     row.Pick(ColAltText...),
				Index:       len(items),
			}
			if base != nil {
				pos := *base + offset
				it.Position = &pos
			}
			if first, dup := seen[it.Key()]; dup {
				report.Fail(diag.ValidationError, row.Line, "Duplicate image row for %s (%s, first seen on row %d)", slug, file, first)
				continue
			}
			seen[it.Key()] = row.Line
			items = append(items, it)
		}
	}
	return items, report
}

// atRow scopes a resolution failure to a sheet row.
func atRow(err error, row int) error {
	var e *diag.Error
	if errors.As(err, &e) {
		return e.AtRow(row)
	}
	return &diag.Error{Kind: diag.ResolutionError, Row: row, Err: err}
}

// Source is one product's image file specs as written on the products
// sheet.
type Source struct {
	Row      int
	Slug     string
	Specs    []string
	AltTexts []string
	// Fallback is the alt text for specs without one.
	Fallback string
}

// ExpandSources turns image file specs from the products sheet into items.
// In strict mode an unresolvable spec fails its row, as does a product whose
// specs match no files. Otherwise the spec is skipped with a warning.
func ExpandSources(sources []Source, baseDir string, opts media.Options, strict bool) ([]Item, *diag.Report) {
	report := &diag.Report{}
	seen := make(map[string]int)
	var items []Item

	for _, src := range sources {
		found, failed := 0, false
		for i, spec := range src.Specs {
			files, err := media.Resolve(spec, baseDir, opts)
			if err != nil {
				if strict {
					report.AddError(atRow(err, src.Row))
					failed = true
				} else {
					report.Warn(src.Row, "Skipping image %q for %q: %v", spec, src.Slug, err)
				}
				continue
			}
			alt := src.Fallback
			if i < len(src.AltTexts) && src.AltTexts[i] != "" {
				alt = src.AltTexts[i]
			}
			for _, file := range files {
				it := Item{
					Row:         src.Row,
					ProductSlug: src.Slug,
					FilePath:    file,
					FileSpec:    spec,
					AltText:     alt,
					Index:       len(items),
				}
				if first, dup := seen[it.Key()]; dup {
					report.Fail(diag.ValidationError, src.Row, "Duplicate image for %s (%s, first seen on row %d)", src.Slug, file, first)
					continue
				}
				seen[it.Key()] = src.Row
				items = append(items, it)
				found++
			}
		}
		if strict && found == 0 && !failed {
			report.Fail(diag.ValidationError, src.Row, "Product %q produced no media entries", src.Slug)
		}
	}
	return items, report
}

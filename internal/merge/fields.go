package merge

import (
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/validate"
)

// create builds a new product from a row. Fields the row leaves empty take
// their defaults.
func create(slug, id string, row validate.ProductRow, mm *catalog.MediaMap, reg *registry, opts Options, now func() time.Time) catalog.Product {
	p := catalog.Product{
		ID:          id,
		Slug:        slug,
		Title:       row.Title,
		Price:       valueOr(row.Price, nil),
		Deposit:     valueOr(row.Deposit, opts.Defaults.Deposit),
		Stock:       valueOr(row.Stock, opts.Defaults.Stock),
		Popularity:  valueOr(row.Popularity, opts.Defaults.Popularity),
		ForSale:     boolOr(row.ForSale, true),
		ForRental:   boolOr(row.ForRental, false),
		Sizes:       append([]string{}, row.Sizes...),
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
		Taxonomy:    row.Taxonomy.Clone(),
	}
	if p.CreatedAt == "" {
		p.CreatedAt = now().UTC().Format(time.RFC3339)
	}
	if row.CompareAtPrice != nil {
		v := *row.CompareAtPrice
		p.CompareAtPrice = &v
	}
	if d := validate.OverlayDetails(nil, row.Details); !d.IsZero() {
		p.Details = &d
	}
	setRefs(&p, row, reg)
	p.Media = resolveMedia(slug, p.Title, row, mm, nil)
	return p
}

// update overlays a row on an existing product.
func update(p catalog.Product, row validate.ProductRow, mm *catalog.MediaMap, reg *registry) catalog.Product {
	next := p.Clone()
	if row.Title != "" {
		next.Title = row.Title
	}
	setInt(&next.Price, row.Price)
	setInt(&next.Deposit, row.Deposit)
	setInt(&next.Stock, row.Stock)
	setInt(&next.Popularity, row.Popularity)
	if row.CompareAtPrice != nil {
		v := *row.CompareAtPrice
		next.CompareAtPrice = &v
	}
	if row.ForSale != nil {
		next.ForSale = *row.ForSale
	}
	if row.ForRental != nil {
		next.ForRental = *row.ForRental
	}
	if len(row.Sizes) > 0 {
		next.Sizes = append([]string{}, row.Sizes...)
	}
	if row.Description != "" {
		next.Description = row.Description
	}
	if row.CreatedAt != "" {
		next.CreatedAt = row.CreatedAt
	}
	next.Taxonomy = validate.OverlayTaxonomy(p.Taxonomy, row.Taxonomy)
	if d := validate.OverlayDetails(p.Details, row.Details); !d.IsZero() {
		next.Details = &d
	} else {
		next.Details = nil
	}

	if row.Brand.Handle == "" {
		row.Brand.Handle = next.Brand
	}
	if row.Collection.Handle == "" {
		row.Collection.Handle = next.Collection
	}
	setRefs(&next, row, reg)
	next.Media = resolveMedia(next.Slug, next.Title, row, mm, p.Media)
	return next
}

func setRefs(p *catalog.Product, row validate.ProductRow, reg *registry) {
	p.Brand = row.Brand.Handle
	reg.brand(row.Brand.Handle, row.Brand.Label)
	p.Collection = row.Collection.Handle
	reg.collection(row.Line, row.Collection.Handle, row.Collection.Label, row.Collection.Description)
}

// resolveMedia applies media precedence: a non-empty media map entry, then
// the row's media paths, then the existing media. Items without alt text
// take the product title.
func resolveMedia(slug, title string, row validate.ProductRow, mm *catalog.MediaMap, existing []catalog.MediaItem) []catalog.MediaItem {
	var items []catalog.MediaItem
	switch {
	case mm != nil && len(mm.MediaByProduct[slug]) > 0:
		items = append(items, mm.MediaByProduct[slug]...)
	case len(row.MediaPaths) > 0:
		for i, path := range row.MediaPaths {
			item := catalog.MediaItem{Type: catalog.MediaTypeImage, Path: path}
			if i < len(row.MediaAltTexts) {
				item.AltText = row.MediaAltTexts[i]
			}
			items = append(items, item)
		}
	default:
		return append([]catalog.MediaItem{}, existing...)
	}
	for i := range items {
		if items[i].Type == "" {
			items[i].Type = catalog.MediaTypeImage
		}
		if items[i].AltText == "" {
			items[i].AltText = title
		}
	}
	return items
}

func valueOr(v, def *int64) int64 {
	switch {
	case v != nil:
		return *v
	case def != nil:
		return *def
	}
	return 0
}

func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func setInt(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

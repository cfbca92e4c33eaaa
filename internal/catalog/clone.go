package catalog

import (
	"slices"
	"strings"
)

// Clone returns a deep copy of c. A nil catalog clones to an empty one.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{
		Collections: []Collection{},
		Brands:      []Brand{},
		Products:    []Product{},
	}
	if c == nil {
		return out
	}
	out.Collections = append(out.Collections, c.Collections...)
	out.Brands = append(out.Brands, c.Brands...)
	for _, p := range c.Products {
		out.Products = append(out.Products, p.Clone())
	}
	return out
}

// Clone returns a deep copy of p.
func (p Product) Clone() Product {
	cp := p
	cp.Media = append([]MediaItem{}, p.Media...)
	cp.Sizes = append([]string{}, p.Sizes...)
	if p.CompareAtPrice != nil {
		v := *p.CompareAtPrice
		cp.CompareAtPrice = &v
	}
	cp.Taxonomy = p.Taxonomy.Clone()
	if p.Details != nil {
		d := p.Details.Clone()
		cp.Details = &d
	}
	return cp
}

// Clone returns a deep copy of t.
func (t Taxonomy) Clone() Taxonomy {
	cp := t
	cp.Color = slices.Clone(t.Color)
	cp.Material = slices.Clone(t.Material)
	cp.Occasion = slices.Clone(t.Occasion)
	cp.Fits = slices.Clone(t.Fits)
	return cp
}

// Clone returns a deep copy of d.
func (d Details) Clone() Details {
	cp := d
	cp.WhatFits = slices.Clone(d.WhatFits)
	cp.Interior = slices.Clone(d.Interior)
	return cp
}

// Sort orders brands and collections by handle and products by slug.
func (c *Catalog) Sort() {
	slices.SortStableFunc(c.Brands, func(a, b Brand) int { return strings.Compare(a.Handle, b.Handle) })
	slices.SortStableFunc(c.Collections, func(a, b Collection) int { return strings.Compare(a.Handle, b.Handle) })
	slices.SortStableFunc(c.Products, func(a, b Product) int { return strings.Compare(a.Slug, b.Slug) })
}

// ProductBySlug returns the product with the given slug.
func (c *Catalog) ProductBySlug(slug string) (Product, bool) {
	for _, p := range c.Products {
		if p.Slug == slug {
			return p, true
		}
	}
	return Product{}, false
}

package merge

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/table"
	"github.com/JonMunkholm/catalogsync/internal/validate"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func parse(t *testing.T, opts validate.Options, rows ...map[string]string) []validate.ProductRow {
	t.Helper()
	tr := make([]table.Row, len(rows))
	for i, m := range rows {
		tr[i] = table.NewRow(i+2, m)
	}
	valid, report := validate.Parse(tr, opts)
	require.False(t, report.HasErrors(), "issues: %v", report.Issues())
	return valid
}

func studioJacket() map[string]string {
	return map[string]string{
		"title":                "Studio Jacket",
		"brand":                "Acme",
		"collection":           "Fall",
		"price":                "180",
		"taxonomy_department":  "women",
		"taxonomy_category":    "clothing",
		"taxonomy_subcategory": "jacket",
		"taxonomy_color":       "black",
		"taxonomy_material":    "wool",
		"sizes":                "S|M|L",
	}
}

func baseCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Brands:      []catalog.Brand{{Handle: "acme", Name: "Acme"}},
		Collections: []catalog.Collection{{Handle: "fall", Title: "Fall"}},
		Products: []catalog.Product{{
			ID: "P1", Slug: "studio-jacket", Title: "Studio Jacket",
			Brand: "acme", Collection: "fall", Price: 180, ForSale: true,
			Media:       []catalog.MediaItem{{Type: "image", Path: "cf-1", AltText: "Studio Jacket"}},
			Sizes:       []string{"S", "M"},
			Description: "Warm",
			CreatedAt:   "2024-01-01T00:00:00Z",
			Taxonomy: catalog.Taxonomy{
				Department: "women", Category: "clothing", Subcategory: "jacket",
				Color: []string{"black"}, Material: []string{"wool"}, Fit: "relaxed",
			},
		}},
	}
}

func TestBuild_StudioJacketCreate(t *testing.T) {
	opts := validate.Options{Defaults: validate.ZeroDefaults()}
	rows := parse(t, opts, studioJacket())

	out, stats, report := Build(nil, rows, nil, Options{Defaults: opts.Defaults, Now: fixedNow})
	require.False(t, report.HasErrors())
	assert.Equal(t, Stats{Created: 1}, stats)
	require.Len(t, out.Products, 1)

	p := out.Products[0]
	assert.Equal(t, "studio-jacket", p.Slug)
	assert.Equal(t, "XA-STUDIO-JACKET", p.ID)
	assert.Empty(t, p.Media)
	assert.Equal(t, []string{"S", "M", "L"}, p.Sizes)
	assert.Equal(t, int64(0), p.Deposit)
	assert.Equal(t, int64(0), p.Stock)
	assert.True(t, p.ForSale)
	assert.False(t, p.ForRental)
	assert.Equal(t, "2025-03-01T12:00:00Z", p.CreatedAt)
	assert.Equal(t, []catalog.Brand{{Handle: "acme", Name: "Acme"}}, out.Brands)
	assert.Equal(t, []catalog.Collection{{Handle: "fall", Title: "Fall"}}, out.Collections)
}

func TestBuild_CreateModeDuplicateSlug(t *testing.T) {
	a := validate.ProductRow{Line: 2, Title: "Studio Jacket", Brand: validate.Ref{Handle: "acme"}, Collection: validate.Ref{Handle: "fall"}}
	b := a
	b.Line = 3
	b.Title = "studio jacket"

	out, _, report := Build(nil, []validate.ProductRow{a, b}, nil, Options{})
	require.True(t, report.HasErrors())
	assert.Contains(t, report.Errors()[0].Message, `Duplicate product slug "studio-jacket"`)
	assert.Len(t, out.Products, 1)
}

func TestBuild_CollectionTitleMismatchWarns(t *testing.T) {
	opts := validate.Options{Defaults: validate.ZeroDefaults()}
	a := studioJacket()
	b := studioJacket()
	b["title"] = "Field Coat"
	b["collection_handle"] = "fall"
	b["collection"] = ""
	b["collection_title"] = "Autumn"
	rows := parse(t, opts, a, b)

	out, _, report := Build(nil, rows, nil, Options{Defaults: opts.Defaults, Now: fixedNow})
	require.False(t, report.HasErrors())
	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, 3, report.Warnings()[0].Row)
	assert.Contains(t, report.Warnings()[0].Message, `Collection "fall" title mismatch`)
	assert.Equal(t, []catalog.Collection{{Handle: "fall", Title: "Autumn"}}, out.Collections)
}

func TestBuild_MergeUpdatesPresentFieldsOnly(t *testing.T) {
	base := baseCatalog()
	vopts := validate.Options{Merge: true, Existing: Lookup(base)}
	rows := parse(t, vopts, map[string]string{
		"slug":           "studio-jacket",
		"price":          "200",
		"taxonomy_color": "navy|black",
		"brand_name":     "Acme Studio",
		"details_care":   "Dry clean",
	})

	out, stats, report := Build(base, rows, nil, Options{Merge: true, Now: fixedNow})
	require.False(t, report.HasErrors(), "issues: %v", report.Issues())
	assert.Equal(t, Stats{Updated: 1}, stats)

	p := out.Products[0]
	assert.Equal(t, int64(200), p.Price)
	assert.Equal(t, "Warm", p.Description)
	assert.Equal(t, []string{"S", "M"}, p.Sizes)
	assert.Equal(t, []string{"navy", "black"}, p.Taxonomy.Color)
	assert.Equal(t, "relaxed", p.Taxonomy.Fit, "facets the row omits persist")
	assert.Equal(t, "cf-1", p.Media[0].Path)
	require.NotNil(t, p.Details)
	assert.Equal(t, "Dry clean", p.Details.Care)
	assert.Equal(t, "2024-01-01T00:00:00Z", p.CreatedAt)
	assert.Equal(t, "Acme Studio", out.Brands[0].Name)
	assert.Len(t, out.Brands, 1)

	assert.Equal(t, int64(180), base.Products[0].Price, "base is not modified")
}

func TestBuild_IdentityConflicts(t *testing.T) {
	cases := []struct {
		name string
		row  validate.ProductRow
		want string
	}{
		{"slug mismatch", validate.ProductRow{Line: 2, ID: "P1", Slug: "other"}, "Slug mismatch for id"},
		{"id mismatch", validate.ProductRow{Line: 2, ID: "P9", Slug: "studio-jacket"}, "ID mismatch for slug"},
		{"no identity", validate.ProductRow{Line: 2, Title: "X"}, "requires id or slug"},
		{"new row over existing slug", validate.ProductRow{Line: 2, ID: "P2", Title: "Studio Jacket", Brand: validate.Ref{Handle: "acme"}, Collection: validate.Ref{Handle: "fall"}}, "already exists"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, report := Build(baseCatalog(), []validate.ProductRow{tc.row}, nil, Options{Merge: true})
			require.True(t, report.HasErrors())
			assert.Contains(t, report.Errors()[0].Message, tc.want)
			assert.ErrorIs(t, report.Err(), diag.MergeConflictError)
		})
	}
}

func TestBuild_DuplicateUpdateRows(t *testing.T) {
	rows := []validate.ProductRow{
		{Line: 2, Slug: "studio-jacket"},
		{Line: 3, ID: "P1"},
	}
	_, _, report := Build(baseCatalog(), rows, nil, Options{Merge: true})
	require.Len(t, report.Errors(), 1)
	assert.Contains(t, report.Errors()[0].Message, "Duplicate update row for slug")
	assert.Equal(t, 3, report.Errors()[0].Row)
}

func TestBuild_MediaPrecedence(t *testing.T) {
	mm := &catalog.MediaMap{MediaByProduct: map[string][]catalog.MediaItem{
		"studio-jacket": {{Type: "image", Path: "cf-map"}},
	}}
	row := validate.ProductRow{Line: 2, Slug: "studio-jacket", MediaPaths: []string{"cf-row"}, MediaAltTexts: []string{"Row alt"}}

	out, _, _ := Build(baseCatalog(), []validate.ProductRow{row}, mm, Options{Merge: true})
	assert.Equal(t, []catalog.MediaItem{{Type: "image", Path: "cf-map", AltText: "Studio Jacket"}}, out.Products[0].Media)

	out, _, _ = Build(baseCatalog(), []validate.ProductRow{row}, nil, Options{Merge: true})
	assert.Equal(t, []catalog.MediaItem{{Type: "image", Path: "cf-row", AltText: "Row alt"}}, out.Products[0].Media)

	row.MediaPaths = nil
	out, _, _ = Build(baseCatalog(), []validate.ProductRow{row}, &catalog.MediaMap{}, Options{Merge: true})
	assert.Equal(t, "cf-1", out.Products[0].Media[0].Path)
}

func TestBuild_StrictMedia(t *testing.T) {
	row := validate.ProductRow{Line: 2, ID: "P2", Slug: "tote", Title: "Tote", Brand: validate.Ref{Handle: "acme"}, Collection: validate.Ref{Handle: "fall"}}
	_, _, report := Build(baseCatalog(), []validate.ProductRow{row}, nil, Options{Merge: true, Strict: true})
	require.True(t, report.HasErrors())
	assert.Contains(t, report.Errors()[0].Message, "no images")

	mm := &catalog.MediaMap{MediaByProduct: map[string][]catalog.MediaItem{
		"tote":  {{Type: "image", Path: "cf-t"}},
		"ghost": {{Type: "image", Path: "cf-g"}},
	}}
	_, _, report = Build(baseCatalog(), []validate.ProductRow{row}, mm, Options{Merge: true, Strict: true})
	require.Len(t, report.Errors(), 1)
	assert.Contains(t, report.Errors()[0].Message, "unknown product slugs: ghost")
}

func TestBuild_MergeIsIdempotent(t *testing.T) {
	base := baseCatalog()
	raw := []map[string]string{
		{"slug": "studio-jacket", "price": "210", "taxonomy_occasion": "work"},
		{"id": "P2", "slug": "tote", "title": "Tote", "brand": "Acme", "collection_handle": "bags",
			"collection_title": "Bags", "taxonomy_department": "women", "taxonomy_category": "bags",
			"media_paths": "cf-t1|cf-t2"},
	}

	once, _, report := Build(base, parse(t, validate.Options{Merge: true, Existing: Lookup(base)}, raw...), nil, Options{Merge: true, Now: fixedNow})
	require.False(t, report.HasErrors())

	twice, stats, report := Build(once, parse(t, validate.Options{Merge: true, Existing: Lookup(once)}, raw...), nil, Options{Merge: true, Now: fixedNow})
	require.False(t, report.HasErrors())
	assert.Equal(t, Stats{Updated: 2}, stats)
	assert.Equal(t, once, twice)
}

func TestExportRoundTrip(t *testing.T) {
	src := baseCatalog()
	compareAt := int64(250)
	src.Products[0].CompareAtPrice = &compareAt
	src.Products[0].Details = &catalog.Details{Care: "Dry clean", WhatFits: []string{"phone"}}
	src.Collections[0].Description = "Autumn drop"

	header := catalog.ExportHeader
	var rows []table.Row
	for i, rec := range catalog.ExportRows(src) {
		m := make(map[string]string, len(header))
		for j, col := range header {
			m[col] = rec[j]
		}
		rows = append(rows, table.NewRow(i+2, m))
	}

	empty := &catalog.Catalog{}
	valid, report := validate.Parse(rows, validate.Options{Merge: true, Existing: Lookup(empty)})
	require.False(t, report.HasErrors(), "issues: %v", report.Issues())

	out, _, report := Build(empty, valid, nil, Options{Merge: true})
	require.False(t, report.HasErrors())

	assert.Equal(t, src.Products, out.Products)
	assert.Equal(t, src.Brands, out.Brands)
	assert.Equal(t, src.Collections, out.Collections)
}

func TestCommit_BacksUpPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	backups := filepath.Join(dir, "backups")

	first, err := Commit(path, baseCatalog(), CommitOptions{Backup: true, BackupDir: backups})
	require.NoError(t, err)
	assert.Empty(t, first, "nothing to back up yet")

	next := baseCatalog()
	next.Products[0].Price = 999
	bak, err := Commit(path, next, CommitOptions{Backup: true, BackupDir: backups, Now: fixedNow()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(backups, "catalog.20250301T120000000Z.bak.json"), bak)

	old, err := catalog.Load(bak)
	require.NoError(t, err)
	assert.Equal(t, int64(180), old.Products[0].Price)

	cur, err := catalog.Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(999), cur.Products[0].Price)
}

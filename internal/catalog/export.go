package catalog

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

// ListDelimiter separates values inside a multi-valued cell.
const ListDelimiter = "|"

// ExportHeader is the column order written by ExportRows. Every column is a
// name the import path accepts, so an exported sheet re-imports unchanged.
var ExportHeader = []string{
	"id", "slug", "title",
	"brand_handle", "brand_name",
	"collection_handle", "collection_title", "collection_description",
	"price", "compare_at_price", "deposit", "stock",
	"for_sale", "for_rental", "sizes", "description", "created_at", "popularity",
	"media_paths", "media_alt_texts",
	"taxonomy_department", "taxonomy_category", "taxonomy_subcategory",
	"taxonomy_color", "taxonomy_material",
	"taxonomy_fit", "taxonomy_length", "taxonomy_neckline", "taxonomy_sleeve_length",
	"taxonomy_pattern", "taxonomy_occasion", "taxonomy_size_class",
	"taxonomy_strap_style", "taxonomy_hardware_color", "taxonomy_closure_type",
	"taxonomy_fits", "taxonomy_metal", "taxonomy_gemstone",
	"taxonomy_jewelry_size", "taxonomy_jewelry_style", "taxonomy_jewelry_tier",
	"details_model_height", "details_model_size", "details_fit_note",
	"details_fabric_feel", "details_care", "details_dimensions", "details_strap_drop",
	"details_what_fits", "details_interior", "details_size_guide", "details_warranty",
}

// ExportRows flattens the catalog into one row per product, in ExportHeader
// column order.
func ExportRows(c *Catalog) [][]string {
	brands := make(map[string]Brand, len(c.Brands))
	for _, b := range c.Brands {
		brands[b.Handle] = b
	}
	collections := make(map[string]Collection, len(c.Collections))
	for _, col := range c.Collections {
		collections[col.Handle] = col
	}

	rows := make([][]string, 0, len(c.Products))
	for _, p := range c.Products {
		var paths, alts []string
		for _, m := range p.Media {
			paths = append(paths, m.Path)
			alts = append(alts, m.AltText)
		}
		compareAt := ""
		if p.CompareAtPrice != nil {
			compareAt = itoa(*p.CompareAtPrice)
		}
		d := Details{}
		if p.Details != nil {
			d = *p.Details
		}
		t := p.Taxonomy
		rows = append(rows, []string{
			p.ID, p.Slug, p.Title,
			p.Brand, brands[p.Brand].Name,
			p.Collection, collections[p.Collection].Title, collections[p.Collection].Description,
			itoa(p.Price), compareAt, itoa(p.Deposit), itoa(p.Stock),
			strconv.FormatBool(p.ForSale), strconv.FormatBool(p.ForRental),
			join(p.Sizes), p.Description, p.CreatedAt, itoa(p.Popularity),
			join(paths), join(alts),
			t.Department, t.Category, t.Subcategory,
			join(t.Color), join(t.Material),
			t.Fit, t.Length, t.Neckline, t.SleeveLength,
			t.Pattern, join(t.Occasion), t.SizeClass,
			t.StrapStyle, t.HardwareColor, t.ClosureType,
			join(t.Fits), t.Metal, t.Gemstone,
			t.JewelrySize, t.JewelryStyle, t.JewelryTier,
			d.ModelHeight, d.ModelSize, d.FitNote,
			d.FabricFeel, d.Care, d.Dimensions, d.StrapDrop,
			join(d.WhatFits), join(d.Interior), d.SizeGuide, d.Warranty,
		})
	}
	return rows
}

// WriteCSV writes the header and ExportRows(c) to w.
func WriteCSV(w io.Writer, c *Catalog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(ExportRows(c)); err != nil {
		return err
	}
	return cw.Error()
}

func join(values []string) string { return strings.Join(values, ListDelimiter) }

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

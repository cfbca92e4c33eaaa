package media

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
	"github.com/JonMunkholm/catalogsync/internal/table"
)

// Media map columns for the tabular form.
var (
	colMapSlug     = []string{"product_slug", "slug", "product"}
	colMapPath     = []string{"path", "file", "file_path", "filepath"}
	colMapAltText  = []string{"alt_text", "alt", "alttext"}
	colMapPosition = []string{"position", "order", "index"}
)

// LoadMap reads a media map. A .json file holds the mediaByProduct document;
// any other file is read as a sheet with one row per media item.
func LoadMap(path string) (*catalog.MediaMap, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, diag.Wrap(diag.IOError, err, "read media map %s", path)
		}
		var m catalog.MediaMap
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, diag.Wrap(diag.IOError, err, "read media map %s", path)
		}
		if m.MediaByProduct == nil {
			m.MediaByProduct = map[string][]catalog.MediaItem{}
		}
		for slug, items := range m.MediaByProduct {
			for i := range items {
				if items[i].Type == "" {
					items[i].Type = catalog.MediaTypeImage
				}
			}
			m.MediaByProduct[slug] = items
		}
		return &m, nil
	}

	rows, err := table.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return mapFromRows(rows)
}

// OrderedItem is a media item with its sort key: an explicit position, or
// the item's input index.
type OrderedItem struct {
	Item  catalog.MediaItem
	Order int
}

func mapFromRows(rows []table.Row) (*catalog.MediaMap, error) {
	var report diag.Report
	bySlug := make(map[string][]OrderedItem)
	for i, row := range rows {
		slug := catalog.Slugify(row.Pick(colMapSlug...))
		p := row.Pick(colMapPath...)
		if slug == "" || p == "" {
			report.Fail(diag.ValidationError, row.Line, "Missing required field %q or %q", "product_slug", "path")
			continue
		}
		order := i
		if raw := row.Pick(colMapPosition...); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				report.Fail(diag.ValidationError, row.Line, "position: invalid number %q", raw)
				continue
			}
			order = n
		}
		bySlug[slug] = append(bySlug[slug], OrderedItem{
			Item:  catalog.MediaItem{Type: catalog.MediaTypeImage, Path: p, AltText: row.Pick(colMapAltText...)},
			Order: order,
		})
	}
	if err := report.Err(); err != nil {
		return nil, err
	}
	return BuildMap(bySlug), nil
}

// BuildMap orders each product's items by their order key, keeping input
// order among equal keys.
func BuildMap(bySlug map[string][]OrderedItem) *catalog.MediaMap {
	m := &catalog.MediaMap{MediaByProduct: make(map[string][]catalog.MediaItem, len(bySlug))}
	for slug, items := range bySlug {
		slices.SortStableFunc(items, func(a, b OrderedItem) int { return a.Order - b.Order })
		out := make([]catalog.MediaItem, len(items))
		for i, it := range items {
			out[i] = it.Item
		}
		m.MediaByProduct[slug] = out
	}
	return m
}

// SaveMap writes m to path as JSON.
func SaveMap(path string, m *catalog.MediaMap) error {
	if err := catalog.WriteJSON(path, m); err != nil {
		return diag.Wrap(diag.IOError, err, "write media map %s", path)
	}
	return nil
}

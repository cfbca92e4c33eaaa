package merge

import (
	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// registry deduplicates brands and collections by handle for one merge.
// Records keep their position; new handles append in row order.
type registry struct {
	brands      []catalog.Brand
	brandIdx    map[string]int
	collections []catalog.Collection
	collIdx     map[string]int

	// titled records the row that last set each collection title in this
	// batch.
	titled map[string]int
	report *diag.Report
}

func newRegistry(brands []catalog.Brand, collections []catalog.Collection, report *diag.Report) *registry {
	r := &registry{
		brands:      brands,
		brandIdx:    make(map[string]int, len(brands)),
		collections: collections,
		collIdx:     make(map[string]int, len(collections)),
		titled:      make(map[string]int),
		report:      report,
	}
	for i, b := range brands {
		r.brandIdx[b.Handle] = i
	}
	for i, c := range collections {
		r.collIdx[c.Handle] = i
	}
	return r
}

// brand creates the brand on first sight and refreshes its name after.
func (r *registry) brand(handle, name string) {
	if i, ok := r.brandIdx[handle]; ok {
		if name != "" {
			r.brands[i].Name = name
		}
		return
	}
	if name == "" {
		name = catalog.TitleCase(handle)
	}
	r.brandIdx[handle] = len(r.brands)
	r.brands = append(r.brands, catalog.Brand{Handle: handle, Name: name})
}

// collection creates the collection on first sight and refreshes its title
// and description after. Two rows of one batch giving different titles
// leave the later one and a warning.
func (r *registry) collection(line int, handle, title, description string) {
	if i, ok := r.collIdx[handle]; ok {
		if title != "" {
			prev := r.collections[i].Title
			if first, seen := r.titled[handle]; seen && prev != title {
				r.report.Warn(line, "Collection %q title mismatch (%q on row %d vs %q); using the later value", handle, prev, first, title)
			}
			r.collections[i].Title = title
			r.titled[handle] = line
		}
		if description != "" {
			r.collections[i].Description = description
		}
		return
	}
	if title != "" {
		r.titled[handle] = line
	} else {
		title = catalog.TitleCase(handle)
	}
	r.collIdx[handle] = len(r.collections)
	r.collections = append(r.collections, catalog.Collection{Handle: handle, Title: title, Description: description})
}

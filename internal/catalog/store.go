package catalog

// store.go reads and writes the catalog document.
//
// Writes go to a temporary file in the target directory which is then
// renamed over the target, so a reader never sees a half-written document.
// A backup copy of the previous document can be taken first.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// Load reads the catalog at path. A missing file yields an empty catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return (*Catalog)(nil).Clone(), nil
	}
	if err != nil {
		return nil, diag.Wrap(diag.IOError, err, "read catalog %s", path)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, diag.Wrap(diag.IOError, err, "read catalog %s", path)
	}
	c.normalize()
	return &c, nil
}

// Save writes c to path atomically.
func Save(path string, c *Catalog) error {
	c.normalize()
	if err := WriteJSON(path, c); err != nil {
		return diag.Wrap(diag.IOError, err, "write catalog %s", path)
	}
	return nil
}

// WriteJSON encodes v with two-space indentation and a trailing newline and
// replaces path with it atomically.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Backup copies the file at path into dir (the file's own directory when dir
// is empty) as <name>.<UTC timestamp>.bak<ext>. It returns the backup path,
// or "" when there was nothing to back up.
func Backup(path, dir string, now time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", diag.Wrap(diag.IOError, err, "backup %s", path)
	}
	if dir == "" {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", diag.Wrap(diag.IOError, err, "backup %s", path)
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	stamp := now.UTC().Format("20060102T150405.000Z")
	stamp = strings.ReplaceAll(stamp, ".", "")
	target := filepath.Join(dir, fmt.Sprintf("%s.%s.bak%s", name, stamp, ext))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", diag.Wrap(diag.IOError, err, "backup %s", path)
	}
	return target, nil
}

// normalize replaces nil slices that the document format requires as arrays.
func (c *Catalog) normalize() {
	if c.Collections == nil {
		c.Collections = []Collection{}
	}
	if c.Brands == nil {
		c.Brands = []Brand{}
	}
	if c.Products == nil {
		c.Products = []Product{}
	}
	for i := range c.Products {
		p := &c.Products[i]
		if p.Media == nil {
			p.Media = []MediaItem{}
		}
		if p.Sizes == nil {
			p.Sizes = []string{}
		}
		if p.Taxonomy.Color == nil {
			p.Taxonomy.Color = []string{}
		}
		if p.Taxonomy.Material == nil {
			p.Taxonomy.Material = []string{}
		}
		if p.Details.IsZero() {
			p.Details = nil
		}
	}
}

// SaveMediaIndex writes idx to path atomically.
func SaveMediaIndex(path string, idx *MediaIndex) error {
	if idx.Items == nil {
		idx.Items = []MediaIndexItem{}
	}
	if err := WriteJSON(path, idx); err != nil {
		return diag.Wrap(diag.IOError, err, "write media index %s", path)
	}
	return nil
}

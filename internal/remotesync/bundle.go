package remotesync

// bundle.go unpacks a submission.
//
// A submission is either a bare products sheet or a zip holding a products
// sheet (products.csv or products.xlsx, at any depth), an optional images
// sheet, and the image files the sheets reference by relative path.

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// Submission is an unpacked bundle ready for ingestion.
type Submission struct {
	Key          string
	Dir          string
	ProductsPath string
	ImagesPath   string // empty when the bundle has no images sheet
}

var (
	productsNames = []string{"products.csv", "products.xlsx"}
	imagesNames   = []string{"images.csv", "images.xlsx"}
)

// ExtractZip unpacks the archive at src into dest. Entries that would land
// outside dest are rejected.
func ExtractZip(src, dest string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return diag.Wrap(diag.IOError, err, "open zip %s", filepath.Base(src))
	}
	defer zr.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return diag.Wrap(diag.IOError, err, "zip destination %s", dest)
	}
	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return diag.New(diag.IOError, "zip entry %q escapes the work directory", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return diag.Wrap(diag.IOError, err, "zip extract %s", f.Name)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return diag.Wrap(diag.IOError, err, "zip extract %s", f.Name)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// FindSheets locates the products sheet, and the images sheet if present,
// under dir. Names match case-insensitively; the shallowest match wins.
func FindSheets(dir string) (products, images string, err error) {
	var candidates []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			candidates = append(candidates, p)
		}
		return nil
	})
	if err != nil {
		return "", "", diag.Wrap(diag.IOError, err, "scan %s", dir)
	}
	slices.SortFunc(candidates, func(a, b string) int {
		if da, db := strings.Count(a, string(os.PathSeparator)), strings.Count(b, string(os.PathSeparator)); da != db {
			return da - db
		}
		return strings.Compare(a, b)
	})
	for _, p := range candidates {
		name := strings.ToLower(filepath.Base(p))
		if products == "" && slices.Contains(productsNames, name) {
			products = p
		}
		if images == "" && slices.Contains(imagesNames, name) {
			images = p
		}
	}
	if products == "" {
		return "", "", diag.New(diag.ValidationError, "bundle has no products.csv or products.xlsx")
	}
	return products, images, nil
}

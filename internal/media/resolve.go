// Package media turns image references from a sheet into concrete files and
// checks that those files are usable product images.
package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// Sentinel categories. Every resolution failure wraps exactly one of them
// under diag.ResolutionError, so callers branch with errors.Is.
var (
	ErrNotFound   = errors.New("file not found")
	ErrTooSmall   = errors.New("image is too small")
	ErrUnreadable = errors.New("unreadable image")
)

// Extensions are the file types a directory reference expands to.
var Extensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// Options controls directory expansion.
type Options struct {
	// Recursive makes a directory reference include images in
	// subdirectories.
	Recursive bool
}

// Resolve expands spec into absolute file paths in a stable order.
//
// A spec without wildcard characters is a literal path: a file resolves to
// itself and a directory to the image files it holds. A spec with wildcards
// is matched case-insensitively against every file under its longest literal
// directory prefix. Relative specs are taken relative to baseDir.
func Resolve(spec, baseDir string, opts Options) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, notFound(spec, "empty file reference")
	}
	full := spec
	if !filepath.IsAbs(full) {
		full = filepath.Join(baseDir, spec)
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return nil, diag.Wrap(diag.ResolutionError, err, "resolve %s", spec)
	}

	if HasWildcard(spec) {
		return resolveGlob(spec, filepath.ToSlash(abs))
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(spec, abs)
		}
		return nil, diag.Wrap(diag.ResolutionError, err, "stat %s", spec)
	}
	if !info.IsDir() {
		return []string{abs}, nil
	}
	files, err := listDir(abs, opts.Recursive)
	if err != nil {
		return nil, diag.Wrap(diag.ResolutionError, err, "list %s", spec)
	}
	if len(files) == 0 {
		return nil, notFound(spec, "no files matched in directory "+abs)
	}
	return files, nil
}

// HasWildcard reports whether spec contains glob syntax.
func HasWildcard(spec string) bool {
	return strings.ContainsAny(spec, "*?[{")
}

func resolveGlob(spec, pattern string) ([]string, error) {
	root, rest := doublestar.SplitPattern(pattern)
	if !doublestar.ValidatePattern(rest) {
		return nil, diag.New(diag.ResolutionError, "invalid pattern %q", spec)
	}
	info, err := os.Stat(filepath.FromSlash(root))
	if err != nil || !info.IsDir() {
		return nil, notFound(spec, "no files matched: pattern root does not exist: "+root)
	}

	rest = strings.ToLower(rest)
	var out []string
	err = filepath.WalkDir(filepath.FromSlash(root), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(filepath.FromSlash(root), p)
		if err != nil {
			return err
		}
		ok, err := doublestar.Match(rest, strings.ToLower(filepath.ToSlash(rel)))
		if err != nil {
			return err
		}
		if ok {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, diag.Wrap(diag.ResolutionError, err, "match %s", spec)
	}
	if len(out) == 0 {
		return nil, notFound(spec, "no files matched pattern")
	}
	sortByRel(out, filepath.FromSlash(root))
	return out, nil
}

func listDir(dir string, recursive bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && !recursive {
				return fs.SkipDir
			}
			return nil
		}
		if IsImage(p) {
			out = append(out, p)
		}
		return nil
	})
	sortByRel(out, dir)
	return out, err
}

// IsImage reports whether path has one of the accepted image extensions.
func IsImage(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

func sortByRel(paths []string, root string) {
	rel := func(p string) string {
		r, err := filepath.Rel(root, p)
		if err != nil {
			return p
		}
		return filepath.ToSlash(r)
	}
	slices.SortFunc(paths, func(a, b string) int {
		return strings.Compare(rel(a), rel(b))
	})
}

func notFound(spec, detail string) error {
	return &diag.Error{Kind: diag.ResolutionError, Source: spec, Err: fmt.Errorf("%s: %w", detail, ErrNotFound)}
}

package media

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"

	_ "golang.org/x/image/webp"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// DefaultMinEdge is the default minimum length, in pixels, of an image's
// shortest edge.
const DefaultMinEdge = 1600

// Dimensions reads the pixel size of an image from its header.
func Dimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, 0, &diag.Error{Kind: diag.ResolutionError, Source: path, Err: ErrNotFound}
		}
		return 0, 0, diag.Wrap(diag.ResolutionError, err, "open image")
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, &diag.Error{
			Kind:   diag.ResolutionError,
			Source: path,
			Err:    fmt.Errorf("%w: %v", ErrUnreadable, err),
		}
	}
	return cfg.Width, cfg.Height, nil
}

// CheckMinEdge fails with ErrTooSmall when the shortest edge of the image at
// path is below minEdge pixels.
func CheckMinEdge(path string, minEdge int) error {
	w, h, err := Dimensions(path)
	if err != nil {
		return err
	}
	if min(w, h) < minEdge {
		return &diag.Error{
			Kind:   diag.ResolutionError,
			Source: path,
			Err:    fmt.Errorf("%w (%dx%d); minimum is %dpx on the shortest edge", ErrTooSmall, w, h, minEdge),
		}
	}
	return nil
}

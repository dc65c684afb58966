package imageio

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/raster"
)

// DefaultJPEGQuality is used when SaveOptions.Quality is zero.
const DefaultJPEGQuality = 90

// FileMode is the permission of newly written outputs. Overwritten files keep
// their previous permission.
const FileMode os.FileMode = 0o644

// SaveOptions control encoding.
type SaveOptions struct {
	// Quality is the JPEG quality in 1..100. Zero selects DefaultJPEGQuality.
	Quality int
	// Overwrite allows replacing an existing file.
	Overwrite bool
}

// Save encodes img to path. The format is chosen by the extension.
func Save(path string, img image.Image, opts SaveOptions) error {
	if err := errors.ValidateSavePath(path, opts.Overwrite); err != nil {
		return err
	}

	// Encode to a sibling temp file so a failed encode never truncates an
	// existing output.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".stitch-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	mode := FileMode
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}

	if err := Encode(tmp, filepath.Ext(path), img, opts); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Encode writes img to w in the format named by ext (".png", ".jpg", ...).
func Encode(w io.Writer, ext string, img image.Image, opts SaveOptions) error {
	if r, ok := img.(*raster.Image); ok {
		// The encoders have fast paths for *image.RGBA.
		img = r.ToRGBA()
	}
	var err error
	switch strings.ToLower(ext) {
	case ".png":
		err = png.Encode(w, img)
	case ".jpg", ".jpeg":
		q := opts.Quality
		if q == 0 {
			q = DefaultJPEGQuality
		}
		if q < 1 || q > 100 {
			return errors.New(errors.ErrCodeInvalidInput, "jpeg quality %d out of range 1..100", q)
		}
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case ".bmp":
		err = bmp.Encode(w, img)
	case ".tif", ".tiff":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported output format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", ext, err)
	}
	return nil
}

package imageio

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/raster"
)

// LoadExtensions lists the file extensions considered when scanning a directory.
var LoadExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// Loader decodes the images of a directory into layers.
type Loader struct {
	// Workers bounds concurrent decodes. Zero means GOMAXPROCS.
	Workers int
	// Logger receives a warning per skipped file. Nil discards.
	Logger *log.Logger
}

// LoadDir loads dir with a default Loader.
func LoadDir(ctx context.Context, dir string) ([]raster.Layer, error) {
	return (&Loader{}).Load(ctx, dir)
}

// Load decodes every supported file in dir, in name order, and returns one
// layer per decodable image, positioned at the origin. Files that fail to
// decode are skipped with a warning. It fails with EMPTY_INPUT when nothing
// could be decoded.
func (l *Loader) Load(ctx context.Context, dir string) ([]raster.Layer, error) {
	if err := errors.ValidateLoadDir(dir); err != nil {
		return nil, err
	}
	names, err := listImages(dir)
	if err != nil {
		return nil, err
	}

	logger := l.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	workers := l.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	decoded := make([]*raster.Image, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := DecodeFile(filepath.Join(dir, name))
			if err != nil {
				logger.Warn("skipping file", "file", name, "err", err)
				return nil
			}
			decoded[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var layers []raster.Layer
	for i, img := range decoded {
		if img != nil {
			layers = append(layers, raster.NewLayer(names[i], img))
		}
	}
	if len(layers) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "no decodable images in %q", dir)
	}
	logger.Debug("loaded images", "dir", dir, "count", len(layers), "skipped", len(names)-len(layers))
	return layers, nil
}

// DecodeFile decodes the image at path.
func DecodeFile(path string) (*raster.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes an image in any registered format.
func Decode(r io.Reader) (*raster.Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode image")
	}
	img := raster.FromImage(src)
	if img.Empty() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s image has no pixels", format)
	}
	return img, nil
}

// listImages returns the sorted names of regular files in dir whose extension
// is in LoadExtensions.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if LoadExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

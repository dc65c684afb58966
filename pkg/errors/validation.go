package errors

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SaveExtensions lists the output file extensions the saver can encode.
var SaveExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// ValidateLoadDir checks that dir names an existing directory.
func ValidateLoadDir(dir string) error {
	if err := validatePathString(dir); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return Wrap(ErrCodeFileNotFound, err, "input directory %q not found", dir)
	}
	if err != nil {
		return Wrap(ErrCodeInvalidPath, err, "stat %q", dir)
	}
	if !info.IsDir() {
		return New(ErrCodeInvalidPath, "input %q is not a directory", dir)
	}
	return nil
}

// ValidateSavePath checks that path can receive the stitched output.
//
// Validation rules:
//   - Path cannot be empty or contain control characters
//   - The file must not exist unless overwrite is set
//   - The parent directory must exist
//   - The extension must be one of SaveExtensions
func ValidateSavePath(path string, overwrite bool) error {
	if err := validatePathString(path); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return New(ErrCodeInvalidPath, "output %q is a directory", path)
		}
		if !overwrite {
			return New(ErrCodeFileExists, "output %q already exists (use --force to overwrite)", path)
		}
	}

	parent := filepath.Dir(path)
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return New(ErrCodeFileNotFound, "output directory %q not found", parent)
	}

	return ValidateSaveExtension(path)
}

// ValidateSaveExtension checks that the extension of path is encodable.
func ValidateSaveExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !SaveExtensions[ext] {
		return New(ErrCodeInvalidFormat, "unsupported output extension %q (must be one of: png, jpg, jpeg, bmp, tif, tiff)", ext)
	}
	return nil
}

func validatePathString(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}
	return nil
}

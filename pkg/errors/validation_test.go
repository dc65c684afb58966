package errors

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateLoadDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.png")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		code Code
	}{
		{"existing dir", dir, ""},
		{"empty", "", ErrCodeInvalidPath},
		{"missing", filepath.Join(dir, "nope"), ErrCodeFileNotFound},
		{"file not dir", file, ErrCodeInvalidPath},
		{"control char", "foo\x01bar", ErrCodeInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLoadDir(tt.path)
			if tt.code == "" {
				if err != nil {
					t.Errorf("ValidateLoadDir(%q) unexpected error: %v", tt.path, err)
				}
				return
			}
			if !Is(err, tt.code) {
				t.Errorf("ValidateLoadDir(%q) = %v, want code %s", tt.path, err, tt.code)
			}
		})
	}
}

func TestValidateSavePath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "out.png")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		path      string
		overwrite bool
		code      Code
	}{
		{"new png", filepath.Join(dir, "new.png"), false, ""},
		{"new jpeg upper", filepath.Join(dir, "new.JPG"), false, ""},
		{"exists", existing, false, ErrCodeFileExists},
		{"exists forced", existing, true, ""},
		{"missing parent", filepath.Join(dir, "missing", "out.png"), false, ErrCodeFileNotFound},
		{"bad extension", filepath.Join(dir, "out.gif"), false, ErrCodeInvalidFormat},
		{"no extension", filepath.Join(dir, "out"), false, ErrCodeInvalidFormat},
		{"directory", dir, true, ErrCodeInvalidPath},
		{"empty", "", false, ErrCodeInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSavePath(tt.path, tt.overwrite)
			if tt.code == "" {
				if err != nil {
					t.Errorf("ValidateSavePath(%q) unexpected error: %v", tt.path, err)
				}
				return
			}
			if !Is(err, tt.code) {
				t.Errorf("ValidateSavePath(%q) = %v, want code %s", tt.path, err, tt.code)
			}
		})
	}
}

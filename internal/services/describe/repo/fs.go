// Package repo provides filesystem and postgres access for describe
package repo

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	perr "lumen/internal/platform/errors"

	// register decoders for every format the image endpoints accept
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// FS reads images off the local filesystem
type FS struct{}

// NewFS constructs a filesystem source
func NewFS() *FS { return &FS{} }

// List returns the full paths of files under dir with the given
// extension, sorted lexicographically. ext is matched without case and
// with or without a leading dot
func (f *FS) List(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, classifyFS(err, dir)
	}

	want := "." + strings.TrimPrefix(strings.ToLower(ext), ".")
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(e.Name())) == want {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Load opens and decodes the image at path. Failures map to the
// not-found, permission and bad-image classes
func (f *FS) Load(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, classifyFS(err, path)
	}
	defer func() { _ = fh.Close() }()

	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeBadImage, "decode %s", path)
	}
	return img, nil
}

// IsDir reports whether path exists and is a directory, with the same
// error classification as the other calls
func (f *FS) IsDir(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return classifyFS(err, path)
	}
	if !fi.IsDir() {
		return perr.InvalidArgf("path is not a directory: %s", path)
	}
	return nil
}

func classifyFS(err error, path string) error {
	switch {
	case os.IsNotExist(err):
		return perr.Wrapf(err, perr.ErrorCodeNotFound, "not found: %s", path)
	case os.IsPermission(err):
		return perr.Wrapf(err, perr.ErrorCodePermission, "permission denied: %s", path)
	default:
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "read %s", path)
	}
}

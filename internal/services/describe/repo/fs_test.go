package repo

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	perr "lumen/internal/platform/errors"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestList_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, "a.png"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := NewFS()
	got, err := fs.List(dir, "png")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 images, got %v", got)
	}
	if filepath.Base(got[0]) != "a.png" || filepath.Base(got[1]) != "b.png" {
		t.Fatalf("list not sorted: %v", got)
	}
}

func TestList_ExtensionDotAndCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "shot.PNG"))

	fs := NewFS()
	for _, ext := range []string{"png", ".png", "PNG"} {
		got, err := fs.List(dir, ext)
		if err != nil {
			t.Fatalf("list(%q): %v", ext, err)
		}
		if len(got) != 1 {
			t.Fatalf("list(%q) = %v, want one match", ext, got)
		}
	}
}

func TestList_MissingDirIsNotFound(t *testing.T) {
	fs := NewFS()
	_, err := fs.List(filepath.Join(t.TempDir(), "nope"), "png")
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoad_DecodesImage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "ok.png")
	writePNG(t, p)

	img, err := NewFS().Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
}

func TestLoad_CorruptDataIsBadImage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(p, []byte("definitely not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewFS().Load(p)
	if !perr.IsCode(err, perr.ErrorCodeBadImage) {
		t.Fatalf("expected bad image, got %v", err)
	}
}

func TestLoad_MissingFileIsNotFound(t *testing.T) {
	_, err := NewFS().Load(filepath.Join(t.TempDir(), "gone.png"))
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	if err := NewFS().IsDir(dir); err != nil {
		t.Fatalf("isdir on real dir: %v", err)
	}

	p := filepath.Join(dir, "f.png")
	writePNG(t, p)
	if err := NewFS().IsDir(p); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected invalid argument for file, got %v", err)
	}
	if err := NewFS().IsDir(filepath.Join(dir, "missing")); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

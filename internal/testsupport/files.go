package testsupport

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WritePage writes a small solid PNG page. The shade varies with seed so
// page fingerprints differ.
func WritePage(t testing.TB, path string, seed int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	shade := uint8(40 + (seed*37)%200)
	img := imaging.New(64, 96, color.NRGBA{R: shade, G: shade, B: shade, A: 255})
	img.Set(seed%64, seed%96, color.NRGBA{A: 255})
	if err := imaging.Save(image.Image(img), path); err != nil {
		t.Fatalf("write page %s: %v", path, err)
	}
}

// WriteChapter creates dir under root holding pages PNG files and returns its path.
func WriteChapter(t testing.TB, root, name string, pages int) string {
	t.Helper()

	dir := filepath.Join(root, name)
	for i := 1; i <= pages; i++ {
		WritePage(t, filepath.Join(dir, fmt.Sprintf("%03d.png", i)), len(name)*100+i)
	}
	return dir
}

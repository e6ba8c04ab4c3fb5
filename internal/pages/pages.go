package pages

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"mangarecap/internal/services"
	"mangarecap/internal/textutil"
)

// MaxOCRSide bounds the longest side of an image sent to OCR.
const MaxOCRSide = 2048

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

// IsImage reports whether name has a supported page extension.
func IsImage(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Discover lists the page images directly inside dir in natural order.
// Hidden files are skipped.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read chapter dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !IsImage(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return textutil.NaturalLess(names[i], names[j]) })
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// Load decodes a page image, applying EXIF orientation.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pages", "decode", filepath.Base(path), err)
	}
	return img, nil
}

// EnhanceForOCR converts img to a grayscale, contrast-boosted, sharpened
// image no larger than MaxOCRSide.
func EnhanceForOCR(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 50)
	out = imaging.Sharpen(out, 1.0)
	bounds := out.Bounds()
	if bounds.Dx() > MaxOCRSide || bounds.Dy() > MaxOCRSide {
		out = imaging.Fit(out, MaxOCRSide, MaxOCRSide, imaging.Lanczos)
	}
	return out
}

// OCRInput loads the page at path and returns the enhanced PNG bytes.
func OCRInput(path string) ([]byte, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return EncodePNG(EnhanceForOCR(img))
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// PrepareFrame fits img inside width x height and centers it on a black canvas.
func PrepareFrame(img image.Image, width, height int) image.Image {
	canvas := imaging.New(width, height, color.Black)
	fitted := imaging.Fit(img, width, height, imaging.Lanczos)
	return imaging.PasteCenter(canvas, fitted)
}

// WriteFrames prepares every page as a numbered PNG frame in dir and returns
// the frame paths in order. extra frames (such as the title card) come first.
func WriteFrames(dir string, pages []string, width, height int, extra ...image.Image) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	frames := make([]string, 0, len(extra)+len(pages))
	write := func(img image.Image) error {
		path := filepath.Join(dir, fmt.Sprintf("frame_%04d.png", len(frames)))
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		frames = append(frames, path)
		return nil
	}
	for _, img := range extra {
		if err := write(PrepareFrame(img, width, height)); err != nil {
			return nil, err
		}
	}
	for _, page := range pages {
		img, err := Load(page)
		if err != nil {
			return nil, err
		}
		if err := write(PrepareFrame(img, width, height)); err != nil {
			return nil, err
		}
	}
	return frames, nil
}

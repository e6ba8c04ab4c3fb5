package pages

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"mangarecap/internal/testsupport"
)

func TestDiscoverNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"10.png", "2.jpg", "1.webp", ".hidden.png", "notes.txt"} {
		testsupport.WriteFile(t, filepath.Join(dir, name), int64(i+1))
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"1.webp", "2.jpg", "10.png"}
	if len(got) != len(want) {
		t.Fatalf("Discover = %v", got)
	}
	for i := range want {
		if filepath.Base(got[i]) != want[i] {
			t.Fatalf("Discover[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOCRInputIsGrayscalePNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "001.png")
	testsupport.WritePage(t, path, 3)

	data, err := OCRInput(path)
	if err != nil {
		t.Fatalf("OCRInput: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if format != "png" {
		t.Fatalf("format = %s", format)
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if r != g || g != b {
		t.Fatalf("expected gray pixel, got %d %d %d", r, g, b)
	}
}

func TestEnhanceForOCRDownscales(t *testing.T) {
	big := imaging.New(3000, 1000, color.White)
	out := EnhanceForOCR(big)
	if out.Bounds().Dx() != MaxOCRSide {
		t.Fatalf("width = %d, want %d", out.Bounds().Dx(), MaxOCRSide)
	}
}

func TestLoadRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	testsupport.WriteFile(t, path, 64)
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestPrepareFrameLetterboxes(t *testing.T) {
	page := imaging.New(100, 200, color.White)
	frame := PrepareFrame(page, 320, 180)
	if b := frame.Bounds(); b.Dx() != 320 || b.Dy() != 180 {
		t.Fatalf("frame size = %v", b)
	}
	if r, _, _, _ := frame.At(2, 90).RGBA(); r != 0 {
		t.Fatal("expected black border")
	}
	if r, _, _, _ := frame.At(160, 90).RGBA(); r == 0 {
		t.Fatal("expected page content in the center")
	}
}

func TestWriteFramesPrependsExtras(t *testing.T) {
	chapter := testsupport.WriteChapter(t, t.TempDir(), "ch1", 2)
	pagePaths, err := Discover(chapter)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	card, err := TitleCard(160, 90, "Capítulo 1", "O começo")
	if err != nil {
		t.Fatalf("TitleCard: %v", err)
	}
	frames, err := WriteFrames(filepath.Join(t.TempDir(), "frames"), pagePaths, 160, 90, card)
	if err != nil {
		t.Fatalf("WriteFrames: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %v", frames)
	}
	if filepath.Base(frames[0]) != "frame_0000.png" {
		t.Fatalf("first frame = %s", frames[0])
	}
	img, err := imaging.Open(frames[2])
	if err != nil {
		t.Fatalf("open frame: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 90 {
		t.Fatalf("frame size = %v", b)
	}
}

func TestTitleCardDrawsText(t *testing.T) {
	card, err := TitleCard(320, 180, "Capítulo 7", "")
	if err != nil {
		t.Fatalf("TitleCard: %v", err)
	}
	lit := false
	b := card.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !lit; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := card.At(x, y).RGBA(); r > 0x8000 {
				lit = true
				break
			}
		}
	}
	if !lit {
		t.Fatal("title card has no text pixels")
	}
}

package pages

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// TitleCard renders a black frame with a heading and an optional subtitle
// centered in white.
func TitleCard(width, height int, heading, subtitle string) (image.Image, error) {
	dc := gg.NewContext(width, height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGB(1, 1, 1)

	base := math.Max(12, float64(height)/10)
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(truetype.NewFace(bold, &truetype.Options{Size: base}))
	cx, cy := float64(width)/2, float64(height)/2
	if subtitle == "" {
		dc.DrawStringAnchored(heading, cx, cy, 0.5, 0.5)
		return dc.Image(), nil
	}
	dc.DrawStringAnchored(heading, cx, cy-base*0.6, 0.5, 0.5)

	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(truetype.NewFace(regular, &truetype.Options{Size: base * 0.5}))
	dc.DrawStringWrapped(subtitle, cx, cy+base*0.6, 0.5, 0, float64(width)*0.8, 1.3, gg.AlignCenter)
	return dc.Image(), nil
}

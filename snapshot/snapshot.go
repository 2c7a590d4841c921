// Package snapshot renders the simulated display's text grid as a picture,
// white on black, using the 7x13 fixed font.
package snapshot

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"
)

// Character cell size in pixels at scale 1.
const (
	CellWidth  = 7
	CellHeight = 13
)

// Render draws lines one per text row. The picture is as wide as the longest
// line. scale enlarges every pixel into a scale x scale square.
func Render(lines []string, scale int) image.Image {
	if scale < 1 {
		scale = 1
	}
	cols := 1
	for _, l := range lines {
		if len(l) > cols {
			cols = len(l)
		}
	}
	rows := len(lines)
	if rows == 0 {
		rows = 1
	}

	face := basicfont.Face7x13
	dc := gg.NewContext(cols*CellWidth, rows*CellHeight)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetFontFace(face)
	dc.SetRGB(1, 1, 1)
	for i, l := range lines {
		dc.DrawString(l, 0, float64(i*CellHeight+face.Ascent))
	}
	if scale == 1 {
		return dc.Image()
	}

	src := dc.Image()
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(out, out.Bounds(), src, b, draw.Src, nil)
	return out
}

// SavePNG renders lines and writes the picture to path.
func SavePNG(path string, lines []string, scale int) error {
	img := Render(lines, scale)
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	log.Debugf("snapshot: %dx%d written to %s", img.Bounds().Dx(), img.Bounds().Dy(), path)
	return nil
}

package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// MarkSize is the half-length in pixels of the cross drawn for a mark.
const MarkSize = 10

// markPalette maps each mark kind to the color it is drawn in.
var markPalette = map[MarkKind]string{
	MarkBox:       "#e6194b",
	MarkCandidate: "#f58231",
	MarkChosen:    "#4363d8",
}

func markColor(kind MarkKind) color.Color {
	hex, ok := markPalette[kind]
	if !ok {
		return color.Gray{Y: 127}
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.Gray{Y: 127}
	}
	// Candidates are drawn lighter so chosen bubbles stand out on top.
	if kind == MarkCandidate {
		c = c.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.35)
	}
	return c.Clamped()
}

// Annotate renders the grid with its debug marks drawn as crosses.
func Annotate(g *Grid) *image.NRGBA {
	dst := imaging.Clone(g.Image())
	b := dst.Bounds()

	for _, m := range g.Marks() {
		c := markColor(m.Kind)
		for d := -MarkSize; d <= MarkSize; d++ {
			if p := image.Pt(m.X+d, m.Y); p.In(b) {
				dst.Set(p.X, p.Y, c)
			}
			if p := image.Pt(m.X, m.Y+d); p.In(b) {
				dst.Set(p.X, p.Y, c)
			}
		}
	}
	return dst
}

// SaveAnnotated writes the annotated page to path. The format follows the
// file extension.
func SaveAnnotated(g *Grid, path string) error {
	if err := imaging.Save(Annotate(g), path); err != nil {
		return fmt.Errorf("failed to save annotated page: %w", err)
	}
	return nil
}

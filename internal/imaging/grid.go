package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// DefaultGrayShade is the gray level below which a pixel counts as black.
const DefaultGrayShade = 127

// MarkKind classifies a debug annotation.
type MarkKind int

const (
	// MarkBox is the midpoint of an accepted anchor box.
	MarkBox MarkKind = iota
	// MarkCandidate is the center of a bubble considered while decoding.
	MarkCandidate
	// MarkChosen is the center of a bubble read as filled.
	MarkChosen
)

// Mark is a debug annotation placed on a page.
type Mark struct {
	Point
	Kind MarkKind
}

// Grid is a binary page: each pixel is either black (foreground) or white.
type Grid struct {
	width  int
	height int
	pix    []bool
	marks  []Mark
}

// NewGrid binarizes img. Pixels whose gray level is below shade become black.
func NewGrid(img image.Image, shade uint8) *Grid {
	g := &Grid{}
	g.load(img, shade)
	return g
}

// NewBlankGrid returns an all-white grid of the given size.
func NewBlankGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Grid{
		width:  width,
		height: height,
		pix:    make([]bool, width*height),
	}
}

func (g *Grid) load(img image.Image, shade uint8) {
	bw := segment.Threshold(img, shade)
	b := bw.Bounds()
	g.width, g.height = b.Dx(), b.Dy()
	g.pix = make([]bool, g.width*g.height)
	for y := 0; y < g.height; y++ {
		row := bw.Pix[y*bw.Stride : y*bw.Stride+g.width]
		for x, v := range row {
			g.pix[y*g.width+x] = v < 128
		}
	}
}

// Width returns the grid width in pixels.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in pixels.
func (g *Grid) Height() int { return g.height }

// Bounds returns the grid rectangle.
func (g *Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.width, g.height)
}

// In reports whether p lies inside the grid.
func (g *Grid) In(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}

// Black reports whether p is a foreground pixel. Points outside the grid are
// never black.
func (g *Grid) Black(p Point) bool {
	if !g.In(p) {
		return false
	}
	return g.pix[p.Y*g.width+p.X]
}

// Blackness returns the fraction of black pixels inside the disk of the
// given radius around center. Only pixels inside the grid are counted.
func (g *Grid) Blackness(center Point, radius float64) float64 {
	if radius < 0 {
		return 0
	}
	r := int(math.Ceil(radius))
	r2 := radius * radius

	x0, x1 := max(center.X-r, 0), min(center.X+r, g.width-1)
	y0, y1 := max(center.Y-r, 0), min(center.Y+r, g.height-1)

	total, black := 0, 0
	for y := y0; y <= y1; y++ {
		dy := float64(y - center.Y)
		for x := x0; x <= x1; x++ {
			dx := float64(x - center.X)
			if dx*dx+dy*dy > r2 {
				continue
			}
			total++
			if g.pix[y*g.width+x] {
				black++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(black) / float64(total)
}

// Mark records a debug annotation at p.
func (g *Grid) Mark(p Point, kind MarkKind) {
	g.marks = append(g.marks, Mark{Point: p, Kind: kind})
}

// Marks returns a copy of the recorded annotations.
func (g *Grid) Marks() []Mark {
	out := make([]Mark, len(g.marks))
	copy(out, g.marks)
	return out
}

// Image renders the grid as a black-and-white image.
func (g *Grid) Image() *image.Gray {
	img := image.NewGray(g.Bounds())
	for y := 0; y < g.height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+g.width]
		for x := range row {
			if g.pix[y*g.width+x] {
				row[x] = 0
			} else {
				row[x] = 0xFF
			}
		}
	}
	return img
}

// Rotate turns the page content counter-clockwise by rad radians about pivot
// and replaces the bitmap. The grid keeps its size; uncovered areas become
// white. The interpolated result is re-thresholded at mid-gray so every
// pixel is again strictly black or white.
func (g *Grid) Rotate(rad float64, pivot Point) {
	if rad == 0 || g.width == 0 || g.height == 0 {
		return
	}

	rotated := imaging.Rotate(g.Image(), rad*180/math.Pi, color.White)

	// imaging.Rotate turns about the image center and grows the canvas.
	// Find where the rotated canvas must sit so that pivot stays fixed.
	cx, cy := float64(g.width)/2-0.5, float64(g.height)/2-0.5
	rb := rotated.Bounds()
	rcx, rcy := float64(rb.Dx())/2-0.5, float64(rb.Dy())/2-0.5

	sin, cos := math.Sincos(rad)
	vx, vy := cx-float64(pivot.X), cy-float64(pivot.Y)
	tx := float64(pivot.X) - rcx + vx*cos + vy*sin
	ty := float64(pivot.Y) - rcy - vx*sin + vy*cos

	canvas := imaging.New(g.width, g.height, color.White)
	canvas = imaging.Paste(canvas, rotated, image.Pt(int(math.Round(tx)), int(math.Round(ty))))

	g.load(canvas, 128)
}
